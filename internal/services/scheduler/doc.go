// Package scheduler runs named jobs on cron cadences with a small worker
// pool. Jobs are registered under a stable human-readable name so they can be
// replaced (upserted) across config reloads. The overlap policy defaults to
// skipping a tick while the previous run of the same job is still executing:
// for a daily announcement, duplicating a send is worse than dropping one.
package scheduler
