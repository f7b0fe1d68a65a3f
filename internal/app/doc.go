// Package app wires the persistence pieces into the services the rest of
// the application consumes.
package app
