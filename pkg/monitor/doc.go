// Package monitor runs target checks.
//
// A Task performs one check: lease an account, fetch, append a snapshot,
// diff it against the previous one and stamp the target. The Orchestrator
// fans checks out over a bounded worker pool, keeps at most one check in
// flight per target and hands rendered reports to the notifier.
package monitor
