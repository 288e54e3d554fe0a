// Package job runs durable background work out of band from the request path.
//
// Jobs are persisted before they are queued, executed by a fixed pool of
// workers under an explicit RetryPolicy, and recovered from the store when the
// process restarts. Delivery is at-least-once: a crash between executing a job
// and recording its outcome re-runs the job on the next start.
package job
