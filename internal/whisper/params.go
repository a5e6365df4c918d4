package whisper

// Strategy selects the decoding search algorithm.
type Strategy int

const (
	StrategyGreedy Strategy = iota
	StrategyBeamSearch
)

// Callbacks hold optional user hooks invoked during segment processing. A
// nil field disables that hook.
type Callbacks struct {
	NewSegment    func(ctx *Context, state *State, nNew int)
	Progress      func(ctx *Context, state *State, percent int)
	EncoderBegin  func(ctx *Context, state *State) bool
	LogitsFilter  func(ctx *Context, state *State, tokens []Token, logits []float32)
	Abort         func() bool
}

// Params holds every recognized transcription option, mirroring the
// reference "full params" option set. Defaults are installed by
// DefaultParams.
type Params struct {
	Strategy Strategy

	NThreads      int
	NMaxTextCtx   int
	OffsetMs      int
	DurationMs    int
	Translate     bool
	NoContext     bool
	SingleSegment bool

	TokenTimestamps bool
	TholdPT         float32
	TholdPTSum      float32
	MaxLen          int
	SplitOnWord     bool
	MaxTokens       int

	AudioCtx         int
	SpeakerTurnEnable bool

	InitialPrompt string
	PromptTokens  []int32

	Language       string // ISO code, or "auto"
	DetectLanguage bool

	SuppressBlank          bool
	SuppressNonSpeechTokens bool

	Temperature    float32
	MaxInitialTS   float32
	LengthPenalty  float32
	TemperatureInc float32
	EntropyThold   float32
	LogprobThold   float32
	NoSpeechThold  float32

	BestOf    int
	BeamSize  int
	Patience  float32

	Callbacks Callbacks
}

// DefaultParams returns Params populated with the documented defaults for
// the given strategy. hwConcurrency should be runtime.NumCPU() or
// equivalent; NThreads is capped at 4 regardless of larger hardware.
func DefaultParams(strategy Strategy, hwConcurrency int) Params {
	nThreads := hwConcurrency
	if nThreads < 1 {
		nThreads = 1
	}

	if nThreads > 4 {
		nThreads = 4
	}

	return Params{
		Strategy:    strategy,
		NThreads:    nThreads,
		NMaxTextCtx: 16384,

		SuppressBlank:           true,
		SuppressNonSpeechTokens: false,

		Temperature:    0,
		TemperatureInc: 0.4,
		EntropyThold:   2.4,
		LogprobThold:   -1.0,
		MaxInitialTS:   1.0,
		LengthPenalty:  -1,
		NoSpeechThold:  0.6,

		BestOf:   2,
		BeamSize: 2,
		Patience: 0,

		Language: "en",
	}
}
