// Package redis provides the Redis client and the recent chat history cache.
package redis
