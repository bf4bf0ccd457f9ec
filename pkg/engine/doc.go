// Package engine defines the contract between the streaming server and an
// audio-to-face inference engine.
//
// A Provider manufactures Bundles; a Bundle groups one model instance's
// Executor, per-track audio and emotion accumulators, and the device stream
// its results are produced on. The server feeds normalized float32 audio
// into the accumulators, drives the Executor while it reports ready tracks,
// and receives weight vectors through a results callback as device views
// that must be staged to pinned host memory and synchronized before
// reading.
//
// Implementations live in subpackages: sim is a deterministic pure-Go
// engine for development and tests; native binds an accelerator runtime
// behind a build tag.
package engine
