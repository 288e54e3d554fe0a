// Package config loads tasktrail settings from an optional YAML file, .env
// files and TASKTRAIL_-prefixed environment variables, applies defaults for
// the server, database, auth, jobs and redis sections, and validates the
// result before any component starts.
package config
