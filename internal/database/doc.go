// Package database provides the Postgres connection pool, schema
// migrations, and the chat message repository.
package database
