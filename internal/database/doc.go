// Package database persists resolved instruments in PostgreSQL.
//
// The service writes the registry after every load and reads it back on
// startup, so lookups can be served before the first venue load completes.
package database
