package engine

// ResultType says in what form an executor delivers weight vectors.
type ResultType int

const (
	// ResultHost means results arrive in host-readable memory.
	ResultHost ResultType = iota

	// ResultDevice means results arrive as device views that must be
	// staged to host memory with an asynchronous copy and read only
	// after synchronizing the producing stream.
	ResultDevice
)

func (t ResultType) String() string {
	switch t {
	case ResultHost:
		return "HOST"
	case ResultDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// BundleConfig carries the model selection for a new Bundle.
type BundleConfig struct {
	// ModelPath locates the engine's model configuration.
	ModelPath string

	// Device is the accelerator ordinal the bundle lives on.
	Device int

	// Diffusion selects the diffusion variant instead of regression.
	Diffusion bool

	// Identity is the identity index for diffusion models.
	Identity int

	// ConstantNoise fixes the diffusion noise seed.
	ConstantNoise bool

	// Execution selects which output surfaces are solved.
	Execution ExecutionOption

	// FPSNum and FPSDen set the output frame rate.
	FPSNum, FPSDen int
}

// Provider constructs bundles and manages accelerator affinity.
type Provider interface {
	// NewBundle allocates a model instance. Bundles are expensive and are
	// created once at startup, never on a hot path.
	NewBundle(cfg BundleConfig) (Bundle, error)

	// UseDevice asserts the accelerator for the calling thread. Callers
	// invoke it at the top of every operation that may touch device
	// memory, because goroutines migrate between OS threads.
	UseDevice(device int) error
}

// Bundle groups one model instance's executor, accumulators, and stream.
// A Bundle must be destroyed exactly once; all other methods are invalid
// afterwards.
type Bundle interface {
	Executor() Executor

	// AudioAccumulator returns the audio sink for a track.
	AudioAccumulator(track int) AudioAccumulator

	// EmotionAccumulator returns the emotion sink for a track.
	EmotionAccumulator(track int) EmotionAccumulator

	// Stream returns the device stream results are produced on.
	Stream() Stream

	// Channels returns the output pose names, split by surface. The
	// combined length equals the executor's weight count.
	Channels() (skin, tongue []string, err error)

	// NewHostBuffer allocates n floats of pinned host memory suitable as
	// the destination of device-to-host copies.
	NewHostBuffer(n int) (HostBuffer, error)

	// Destroy releases the bundle and everything it owns, including any
	// registered results callback.
	Destroy() error
}

// Executor drives inference for a bundle.
type Executor interface {
	// ResultType reports the delivery form. The streaming server requires
	// ResultDevice.
	ResultType() ResultType

	// SetResultsCallback registers the consumer of produced frames. The
	// callback may run inline during Execute or on an engine-owned
	// thread. A nil fn clears the registration.
	SetResultsCallback(fn ResultsFunc)

	// SamplingRate returns the audio sample rate the model consumes.
	SamplingRate() (int, error)

	// FrameRate returns the output frame rate as a rational.
	FrameRate() (num, den int, err error)

	// WeightCount returns the length of each produced weight vector.
	WeightCount() (int, error)

	// Wait blocks until in-flight work on the track has drained.
	Wait(track int) error

	// Reset returns the track to its initial state and re-enables result
	// delivery after a callback cancellation.
	Reset(track int) error

	// ReadyTracks returns how many tracks currently have work available.
	ReadyTracks() (int, error)

	// Execute runs inference for whatever is ready, invoking the results
	// callback zero or more times before returning.
	Execute() error

	// NextAudioSampleToRead returns the absolute index of the first audio
	// sample the executor still needs; everything before it may be
	// dropped from the accumulator.
	NextAudioSampleToRead(track int) (int64, error)

	// NextEmotionTimestampToRead is the emotion analogue of
	// NextAudioSampleToRead.
	NextEmotionTimestampToRead(track int) (int64, error)
}

// AudioAccumulator is a per-track sink of normalized float32 samples with
// an absolute sample clock.
type AudioAccumulator interface {
	// Accumulate appends samples at the current end of the stream.
	Accumulate(samples []float32) error

	// Close marks the stream complete, releasing any tail the executor
	// was holding back.
	Close() error

	// Reset discards all state and rewinds the sample clock to zero.
	Reset() error

	// AccumulatedSamples returns the absolute number of samples ever
	// accumulated since the last Reset. Dropping does not decrease it.
	AccumulatedSamples() (int64, error)

	// DropSamplesBefore releases storage for samples below the absolute
	// index without moving the sample clock.
	DropSamplesBefore(sample int64) error
}

// EmotionAccumulator is a per-track sink of timestamped emotion vectors.
type EmotionAccumulator interface {
	// Width returns the emotion vector dimension.
	Width() int

	// Accumulate appends one emotion vector at the given timestamp.
	Accumulate(ts int64, values []float32) error

	// Close marks the emotion stream complete.
	Close() error

	// Reset discards all state.
	Reset() error

	// DropEmotionsBefore releases entries with timestamps below ts.
	DropEmotionsBefore(ts int64) error
}

// DeviceView is device-resident memory produced by an executor. It is not
// host-readable; its contents must be copied out on a stream.
type DeviceView interface {
	// Len returns the number of floats in the view. Zero-length views are
	// priming no-ops.
	Len() int

	// CopyToHostAsync queues a copy of the view into dst on the stream.
	// dst is not valid to read until the stream is synchronized.
	CopyToHostAsync(dst []float32, s Stream) error
}

// Stream orders device work.
type Stream interface {
	// Synchronize blocks until all work queued on the stream completes.
	Synchronize() error
}

// HostBuffer is pinned host memory owned by a bundle's allocator.
type HostBuffer interface {
	// Floats exposes the buffer contents.
	Floats() []float32

	// Free releases the buffer.
	Free() error
}

// DeviceResults is one callback delivery from an executor.
type DeviceResults struct {
	Track     int
	Weights   DeviceView
	Stream    Stream
	TsCurrent int64
	TsNext    int64
}

// ResultsFunc consumes executor results. Returning false cancels further
// deliveries for the track until the executor is reset.
type ResultsFunc func(r DeviceResults) bool
