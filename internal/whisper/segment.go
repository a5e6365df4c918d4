package whisper

import "fmt"

// centisecondsPerSecond is the unit conversion used throughout the window
// state machine: one mel column == one centisecond (hop size 160 samples at
// 16kHz == 10ms).
const centisecondsPerSecond = 100

// Full drives the full 30-second sliding-window transcription state
// machine described by the segment controller: encode, decode-loop with
// temperature fallback, emit, advance. Returns 0 on success (matching the
// reference "non-zero integer code on unrecoverable failure" contract);
// any segments produced before a failure remain on state.
func Full(ctx *Context, state *State, params Params, samples []float32) (int, error) {
	state.segments = nil

	if len(samples) == 0 {
		return 0, nil
	}

	nThreads := params.NThreads
	if nThreads < 1 {
		nThreads = 1
	}

	if err := state.PCMToMel(samples, nThreads); err != nil {
		return 1, err
	}

	if err := resolveLanguage(ctx, state, &params, nThreads); err != nil {
		return 1, err
	}

	seek := params.OffsetMs / 10
	seekEnd := state.spec.NLenOriginal

	if params.DurationMs > 0 {
		if end := seek + params.DurationMs/10; end < seekEnd {
			seekEnd = end
		}
	}

	if seekEnd-seek < centisecondsPerSecond {
		return 0, nil
	}

	audioCtx := int(ctx.hparams.AudioCtx)
	if params.AudioCtx > 0 && params.AudioCtx > audioCtx {
		return 1, newErr(KindAudioContextExceeded, "Full", fmt.Errorf("requested %d > model %d", params.AudioCtx, audioCtx))
	}

	temps := temperatureSchedule(params.Temperature, params.TemperatureInc)

	promptPast, err := initialPromptTokens(ctx, params)
	if err != nil {
		return 1, err
	}

	nAudioCtx := audioCtx

	for seek+centisecondsPerSecond < seekEnd {
		if params.Callbacks.Abort != nil && params.Callbacks.Abort() {
			break
		}

		if params.Callbacks.EncoderBegin != nil && !params.Callbacks.EncoderBegin(ctx, state) {
			break
		}

		if err := state.Encode(seek, nThreads); err != nil {
			return 1, err
		}

		if params.SingleSegment {
			// A single-segment call still honors the encoder's fixed
			// window; seekEnd is just clamped to one window's worth.
			if end := seek + 2*audioCtx; end < seekEnd {
				seekEnd = end
			}
		}

		nDec := chooseDecoders(params, temps[0])
		if nDec > maxDecoders {
			return 1, newErr(KindDecoderTooMany, "Full", fmt.Errorf("%d exceeds max %d", nDec, maxDecoders))
		}

		var chosen *decoderState

		for ti, T := range temps {
			firstTemp := ti == 0
			nDec = chooseDecoders(params, T)

			resetDecoders(state, nDec)

			prompt := buildPrompt(ctx, &params, promptPast, firstTemp)

			if err := runDecodeLoop(ctx, state, &params, nDec, prompt, T, seek, seekEnd, nAudioCtx); err != nil {
				return 1, err
			}

			chosen = selectBest(state, nDec, &params)

			if !chosen.failed && chosen.seq.AvgLogprobs >= params.LogprobThold {
				break
			}

			if seekEnd-seek <= 3*centisecondsPerSecond {
				break
			}
		}

		if chosen == nil {
			break
		}

		emitSegments(ctx, state, chosen, &params, seek)

		if params.Callbacks.NewSegment != nil {
			params.Callbacks.NewSegment(ctx, state, len(state.segments))
		}

		delta := chosen.seekDelta
		if delta <= 0 {
			delta = int64(seekEnd - seek)
		}

		seek += int(delta)

		if seekEnd-seek < centisecondsPerSecond {
			promptPast = nil
		} else if !params.NoContext {
			promptPast = committedTokenIDs(ctx, chosen.seq)
		}

		if params.SingleSegment {
			break
		}
	}

	return 0, nil
}

// chooseDecoders returns how many decoder slots this temperature/strategy
// combination activates: beam search always uses beam_size; greedy uses
// best_of only once stochastic sampling is in play (T>0), else a single
// deterministic decoder suffices.
func chooseDecoders(params Params, t float32) int {
	if params.Strategy == StrategyBeamSearch {
		n := params.BeamSize
		if n < 1 {
			n = 1
		}

		return n
	}

	if t > 0 {
		n := params.BestOf
		if n < 1 {
			n = 1
		}

		return n
	}

	return 1
}

// temperatureSchedule returns [t0, t0+inc, t0+2inc, ...] up to <= 1+eps.
func temperatureSchedule(t0, inc float32) []float32 {
	temps := []float32{t0}

	if inc <= 0 {
		return temps
	}

	const eps = 1e-6

	for t := t0 + inc; t <= 1+eps; t += inc {
		temps = append(temps, t)
	}

	return temps
}

func resetDecoders(state *State, nDec int) {
	for i := 0; i < nDec && i < len(state.decoders); i++ {
		ds := state.decoders[i]
		ds.self.Reset()
		ds.seq = Sequence{}
		ds.seekDelta = 0
		ds.failed = false
		ds.completed = false
		ds.hasTS = false
		ds.speakerNext = false
		ds.logits = nil
		ds.logprobs = nil
		ds.probs = nil
	}
}

// initialPromptTokens tokenizes params.InitialPrompt if no explicit
// PromptTokens were supplied.
func initialPromptTokens(ctx *Context, params Params) ([]int32, error) {
	if len(params.PromptTokens) > 0 {
		return params.PromptTokens, nil
	}

	if params.InitialPrompt == "" {
		return nil, nil
	}

	ids, err := ctx.Tokenize(params.InitialPrompt)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// buildPrompt prepends token_prev + truncated prompt-past (only on the
// first temperature) to the task prefix.
func buildPrompt(ctx *Context, params *Params, promptPast []int32, includePast bool) []int32 {
	v := ctx.model.Vocab

	var prompt []int32

	if includePast && len(promptPast) > 0 && !params.NoContext {
		maxPast := params.NMaxTextCtx
		if half := int(ctx.hparams.TextCtx) / 2; half < maxPast {
			maxPast = half
		}

		if maxPast > len(promptPast) {
			maxPast = len(promptPast)
		}

		past := promptPast[len(promptPast)-maxPast:]

		prompt = append(prompt, v.TokenPrev)
		prompt = append(prompt, past...)
	}

	prompt = append(prompt, v.TokenSOT)

	if v.Multilingual {
		langID := int32(state0LangID(params, ctx))
		prompt = append(prompt, v.LangTag(langID))

		if params.Translate {
			prompt = append(prompt, v.TokenTranslate)
		} else {
			prompt = append(prompt, v.TokenTranscribe)
		}
	}

	return prompt
}

func state0LangID(params *Params, ctx *Context) int {
	if id := ctx.LangID(params.Language); id >= 0 {
		return id
	}

	return 0 // english
}

// resolveLanguage runs auto-detection when requested, and forces English on
// non-multilingual models per the boundary-behavior rule.
func resolveLanguage(ctx *Context, state *State, params *Params, nThreads int) error {
	if !ctx.Multilingual() {
		if params.Language != "" && params.Language != "en" && params.Language != "auto" {
			params.Language = "en"
		}

		params.Translate = false
		state.lang = 0

		return nil
	}

	if params.DetectLanguage || params.Language == "auto" {
		id, err := detectLanguage(ctx, state, 0, nThreads)
		if err != nil {
			return err
		}

		state.lang = int32(id)
		params.Language = langCode(id)

		return nil
	}

	if id := ctx.LangID(params.Language); id >= 0 {
		state.lang = int32(id)
	}

	return nil
}

// detectLanguage runs the encoder once at offsetFrames, decodes a single
// token_sot prompt, and returns argmax over the per-language tag logits.
func detectLanguage(ctx *Context, state *State, offsetFrames, nThreads int) (int, error) {
	if !ctx.Multilingual() {
		return -1, newErr(KindLanguageDetect, "detectLanguage", fmt.Errorf("model is not multilingual"))
	}

	if state.spec == nil {
		return -1, newErr(KindLanguageDetect, "detectLanguage", fmt.Errorf("no mel spectrogram computed"))
	}

	if offsetFrames < 0 {
		return -1, newErr(KindLanguageDetect, "detectLanguage", fmt.Errorf("negative offset"))
	}

	if err := state.Encode(offsetFrames, nThreads); err != nil {
		return -1, newErr(KindLanguageDetect, "detectLanguage", err)
	}

	v := ctx.model.Vocab

	logits, err := state.Decode(0, []int32{v.TokenSOT}, 0)
	if err != nil {
		return -1, newErr(KindLanguageDetect, "detectLanguage", err)
	}

	state.decoders[0].self.Reset()

	best := -1
	bestLogit := float32(0)

	for id := 0; id < int(v.NLangs); id++ {
		tag := v.LangTag(int32(id))
		if int(tag) >= len(logits) {
			continue
		}

		if best == -1 || logits[tag] > bestLogit {
			best = id
			bestLogit = logits[tag]
		}
	}

	if best == -1 {
		return -1, newErr(KindLanguageDetect, "detectLanguage", fmt.Errorf("no language tags in vocabulary"))
	}

	return best, nil
}

// DetectLanguage is the public, terminal language-detection operation: runs
// the encoder at offsetMs and returns the detected language table index.
func DetectLanguage(ctx *Context, state *State, offsetMs, nThreads int) (int, error) {
	return detectLanguage(ctx, state, offsetMs/10, nThreads)
}

// committedTokenIDs returns the non-timestamp token ids of seq, used to
// seed the next window's prompt-past context.
func committedTokenIDs(ctx *Context, seq Sequence) []int32 {
	begTS := ctx.model.Vocab.TokenBegTimestamp

	ids := make([]int32, 0, seq.ResultLen)

	for _, t := range seq.Tokens {
		if t.ID >= begTS {
			continue
		}

		ids = append(ids, t.ID)
	}

	return ids
}
