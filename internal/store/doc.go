// Package store defines the persistence interfaces the worker depends
// on. Implementations live under internal/platform. The schema itself is
// owned by the web application; these interfaces only read and write
// existing tables.
package store
