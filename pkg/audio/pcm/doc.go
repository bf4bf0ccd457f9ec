// Package pcm provides helpers for raw little-endian signed 16-bit PCM
// audio: sample/byte/duration arithmetic, conversion to the normalized
// float32 form consumed by inference executors, and simple test-signal
// generation.
//
// All functions treat audio as mono. Multi-channel handling, mixing, and
// resampling are out of scope; inputs at the wrong rate are the caller's
// problem to reject.
package pcm
