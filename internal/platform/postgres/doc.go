// Package postgres implements the store interfaces against the
// platform's PostgreSQL database using the pgx stdlib driver. The schema
// is owned and migrated by the web application; this package only reads
// and writes existing tables.
package postgres
