package whisper

import "math"

// nonSpeechSymbols is the fixed punctuation/symbol list suppressed when
// non-speech suppression is enabled, tried both with and without a leading
// space, plus the two standalone variants below.
var nonSpeechSymbols = []string{
	"\"", "#", "(", ")", "*", "+", "/", ":", ";", "<", "=", ">", "@", "[", "\\",
	"]", "^", "_", "`", "{", "|", "}", "~", "「", "」", "『", "』",
}

// LogitsProcessor applies the structural masks, log-softmax, and timestamp
// preference rule described by the logits processing contract, turning raw
// decoder output into masked logits plus logprobs/probs.
type LogitsProcessor struct {
	vocab    *vocabView
	audioCtx int32

	nonSpeechIDs []int32
	blankIDs     []int32
}

// vocabView is the minimal slice of ggmlmodel.Vocab the logits processor
// needs, kept narrow so this package does not otherwise depend on loader
// internals.
type vocabView struct {
	NVocab            int32
	TokenToID         map[string]int32
	TokenEOT          int32
	TokenSOT          int32
	TokenTranslate    int32
	TokenTranscribe   int32
	TokenSolm         int32
	TokenNoSpeech     int32
	TokenNotimestamp  int32
	TokenBegTimestamp int32
}

func newLogitsProcessor(v *vocabView, audioCtx int32) *LogitsProcessor {
	lp := &LogitsProcessor{vocab: v, audioCtx: audioCtx}

	for _, sym := range nonSpeechSymbols {
		if id, ok := v.TokenToID[sym]; ok {
			lp.nonSpeechIDs = append(lp.nonSpeechIDs, id)
		}

		if id, ok := v.TokenToID[" "+sym]; ok {
			lp.nonSpeechIDs = append(lp.nonSpeechIDs, id)
		}
	}

	for _, sym := range []string{" -", " '"} {
		if id, ok := v.TokenToID[sym]; ok {
			lp.nonSpeechIDs = append(lp.nonSpeechIDs, id)
		}
	}

	if id, ok := v.TokenToID[" "]; ok {
		lp.blankIDs = append(lp.blankIDs, id)
	}

	lp.blankIDs = append(lp.blankIDs, v.TokenEOT)

	return lp
}

// processOpts bundles the window/decoder state the mask rules read.
type processOpts struct {
	temperature        float32
	seq                *Sequence
	hasTS              bool
	seekDelta          int64
	speakerTurnEnabled bool
	suppressBlank      bool
	suppressNonSpeech  bool
	maxInitialTS       float32
	filter             func(logits []float32)
}

// Process mutates logits in place and returns logprobs/probs of equal
// length, per the five-step contract: temperature divide, structural masks,
// log-softmax, timestamp preference masking, probability extraction.
func (lp *LogitsProcessor) Process(logits []float32, o processOpts) (logprobs, probs []float32) {
	if o.temperature > 0 {
		inv := 1 / o.temperature
		for i := range logits {
			logits[i] *= inv
		}
	}

	if o.filter != nil {
		o.filter(logits)
	}

	negInf := float32(math.Inf(-1))

	mask := func(id int32) {
		if id >= 0 && int(id) < len(logits) {
			logits[id] = negInf
		}
	}

	mask(lp.vocab.TokenNotimestamp)
	mask(lp.vocab.TokenSOT)
	mask(lp.vocab.TokenNoSpeech)
	mask(lp.vocab.TokenTranslate)
	mask(lp.vocab.TokenTranscribe)

	if !o.speakerTurnEnabled {
		mask(lp.vocab.TokenSolm)
	}

	if len(o.seq.Tokens) == 0 && o.suppressBlank {
		for _, id := range lp.blankIDs {
			mask(id)
		}
	}

	if o.suppressNonSpeech {
		for _, id := range lp.nonSpeechIDs {
			mask(id)
		}
	}

	begTS := lp.vocab.TokenBegTimestamp

	lastIsTS, penultIsTS := o.seq.lastTwoAreTimestamps(begTS)
	switch {
	case lastIsTS && penultIsTS:
		for id := begTS; int(id) < len(logits); id++ {
			mask(id)
		}
	case lastIsTS && !penultIsTS:
		for id := int32(0); id < begTS; id++ {
			mask(id)
		}
	}

	if len(o.seq.Tokens) == 0 {
		maxInitial := o.maxInitialTS
		if maxInitial <= 0 {
			maxInitial = 1.0
		}

		step := float32(30) / float32(lp.audioCtx)
		maxID := begTS + int32(math.Ceil(float64(maxInitial/step)))

		for id := maxID + 1; int(id) < len(logits); id++ {
			mask(id)
		}
	}

	if o.hasTS {
		floorID := begTS + int32(o.seekDelta/2)
		for id := begTS; id < floorID && int(id) < len(logits); id++ {
			mask(id)
		}
	}

	logprobs = logSoftmax(logits)

	tsSum := logSumExp(logprobs[begTS:])

	textMax := float32(math.Inf(-1))
	for i := int32(0); i < begTS && int(i) < len(logprobs); i++ {
		if logprobs[i] > textMax {
			textMax = logprobs[i]
		}
	}

	if tsSum > textMax {
		for i := int32(0); i < begTS && int(i) < len(logits); i++ {
			logits[i] = negInf
			logprobs[i] = negInf
		}
	}

	probs = make([]float32, len(logprobs))
	for i, lpv := range logprobs {
		if math.IsInf(float64(lpv), -1) {
			probs[i] = 0
			continue
		}

		probs[i] = float32(math.Exp(float64(lpv)))
	}

	return logprobs, probs
}

// logSoftmax computes log(softmax(x)) numerically: subtract max before
// exponentiating.
func logSoftmax(x []float32) []float32 {
	out := make([]float32, len(x))

	maxV := float32(math.Inf(-1))
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
	}

	if math.IsInf(float64(maxV), -1) {
		copy(out, x)
		return out
	}

	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - maxV))
	}

	logSum := math.Log(sum)

	for i, v := range x {
		out[i] = v - maxV - float32(logSum)
	}

	return out
}

// logSumExp computes log(sum(exp(x))) numerically.
func logSumExp(x []float32) float32 {
	maxV := float32(math.Inf(-1))
	for _, v := range x {
		if v > maxV {
			maxV = v
		}
	}

	if math.IsInf(float64(maxV), -1) {
		return maxV
	}

	var sum float64
	for _, v := range x {
		sum += math.Exp(float64(v - maxV))
	}

	return maxV + float32(math.Log(sum))
}
