// Package events lets the task service announce domain events without knowing
// who reacts to them. Handlers are registered at startup; the service only
// sees the EventEmitter interface.
package events
