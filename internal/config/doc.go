// Package config loads process configuration from the environment,
// with an optional .env file for local development.
package config
