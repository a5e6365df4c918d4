package whisper

// Token is one emitted unit: an id plus its scoring/timestamp detail.
type Token struct {
	ID               int32
	ForcedTimestampID int32
	P                float32
	PTimestamp       float32
	SumPTimestamp    float32
	T0               int64 // centiseconds
	T1               int64
	VoiceLength      float32
}

// Sequence is one decoder's growing hypothesis.
type Sequence struct {
	Tokens         []Token
	ResultLen      int
	SumLogprobsAll float32
	SumLogprobs    float32
	AvgLogprobs    float32
	Entropy        float32
	Score          float32
}

// lastTwoAreTimestamps reports whether the last token and the second-to-last
// token are timestamp ids; a missing second-to-last token counts as a
// timestamp (the "penult_was_ts" test from the logits processor's pairing
// rule).
func (s *Sequence) lastTwoAreTimestamps(begTS int32) (lastIsTS, penultIsTS bool) {
	n := len(s.Tokens)
	if n == 0 {
		return false, true
	}

	lastIsTS = s.Tokens[n-1].ID >= begTS
	penultIsTS = n < 2 || s.Tokens[n-2].ID >= begTS

	return lastIsTS, penultIsTS
}

// decoderState is one active decode hypothesis's full working state during a
// window's decode loop.
type decoderState struct {
	self       *selfKVCache
	seq        Sequence
	seekDelta  int64
	failed     bool
	completed  bool
	hasTS      bool
	speakerNext bool
	logits     []float32
	logprobs   []float32
	probs      []float32
}

// Segment is one emitted transcription unit.
type Segment struct {
	T0              int64 // centiseconds
	T1              int64
	Text            string
	Tokens          []Token
	SpeakerTurnNext bool
}
