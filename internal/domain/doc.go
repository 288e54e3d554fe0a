// Package domain contains the core business entities of the task tracker:
// tasks, their audit history, users and teams. It holds entity validation
// and the value types shared by the service and persistence layers, and has
// no dependency on any infrastructure or delivery mechanism.
package domain
