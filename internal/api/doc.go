// Package api holds the HTTP handlers for tasks, users, teams and sessions.
// Handlers decode and validate requests, call the services, and write the
// shared response envelope. Errors are mapped to status codes in one place
// (errors.go) so storage details never reach a client.
package api
