// Package sim is a pure-Go inference engine for development and tests.
//
// It implements the engine contract faithfully enough to stand in for an
// accelerator build: results are delivered as device views that must be
// staged with CopyToHostAsync and become readable only after the stream
// is synchronized, frame pacing follows the configured frame rate against
// the 16 kHz sample clock, and diffusion bundles emit a one-frame
// lookahead plus an empty priming result. Weights are a deterministic
// function of the frame index and the RMS energy of the frame's audio
// window, so silence produces all-zero vectors and identical input
// produces identical output.
package sim
