// Package config loads and validates the worker's configuration from a
// YAML file and WORKER_-prefixed environment variables. Environment
// variables take precedence over file values.
package config
