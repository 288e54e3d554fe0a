// Package testdb opens the PostgreSQL database used by integration tests.
// Tests that call GetTestDBWithT are skipped when no database URL is set.
package testdb
