// Package poller provides the recurring-fetch layer for swarmdeck.
//
// This package is internal to swarmdeck and drives the dashboard's
// independently-timed backend feeds. Each [Subscription] runs on its own
// loop goroutine with three invariants:
//
//   - at most one request is ever in flight per subscription; a tick that
//     lands while a request is outstanding is skipped, never queued
//   - completions are applied in issue order via per-request sequence
//     numbers; stale responses are discarded
//   - failures are swallowed (counted and logged, surfaced via [Status])
//     and never stop the schedule
//
// The main components are:
//
//   - [Client]: HTTP client wrapper with timeout and size limits
//   - [Controller]: Owns subscriptions and their scheduling loops
//   - [Result] / [FetchError]: Applied completion outcomes
//   - [Status]: Per-subscription observability snapshot
//
// Users of the swarmdeck library should not need to interact with this
// package directly. Configuration is done through the main swarmdeck
// package.
package poller
