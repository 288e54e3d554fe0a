// Package store defines the persistence contracts for tasks, task histories,
// users and teams, together with the list filter types, the DBTX abstraction
// and the sentinel errors every implementation maps its failures onto.
package store
