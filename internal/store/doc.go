// Package store provides the dashboard aggregator for swarmdeck.
//
// This package is internal to swarmdeck and composes the latest values of
// the polled feeds (agent set, evaluator report, chat messages) into
// immutable [Snapshot] values. It implements a publish-subscribe pattern
// so connected dashboard clients receive each rebuild in real time.
//
// The main components are:
//
//   - [Aggregator]: Pure composition of feed sections with pub/sub fan-out
//   - [Snapshot]: Immutable point-in-time composite, one new value per
//     constituent change
//
// The aggregator only reads what it is handed; it never mutates state
// owned by the polling or stream controllers. Subscribers receive updates
// via channels with non-blocking sends (slow subscribers skip
// intermediate snapshots rather than blocking the system; every snapshot
// is complete on its own).
//
// Users of the swarmdeck library should not need to interact with this
// package directly.
package store
