// Package stream manages the lifecycle of embedded live-stream viewports.
//
// This package is internal to swarmdeck. Each agent viewport is owned by
// one [Controller] holding a [Session] state machine with states Loading,
// Connected, and Error:
//
//   - Loading -> Connected on a positive load signal
//   - Loading/Connected -> Error on a positive failure signal
//   - Error -> Loading on explicit retry, with an incremented retry count
//     and a regenerated cache-busted URL
//   - Loading -> Loading (soft success) when the confirmation window
//     elapses with no signal at all: the spinner presentation is dropped
//     without claiming success or failure
//
// Cross-origin embedded viewers cannot be introspected beyond their
// load/error signals, which is why a silent viewport is treated as
// unconfirmed rather than broken.
//
// Users of the swarmdeck library should not need to interact with this
// package directly; viewports are wired up by the main swarmdeck package
// and surfaced over its HTTP API.
package stream
