package whisper

import "sort"

// slotResult holds one active decoder's per-step logits/logprobs/probs.
type slotResult struct {
	logits, logprobs, probs []float32
}

// runDecodeLoop drives nDec active decoders from prompt through up to
// n_text_ctx/2-4 token-generation steps, applying the logits-processing
// contract and either independent sampling (greedy/best_of) or pooled
// candidate gathering with KV-cache reshuffling (beam search).
func runDecodeLoop(ctx *Context, state *State, params *Params, nDec int, prompt []int32, temperature float32, seek, seekEnd, audioCtx int) error {
	maxIters := int(ctx.hparams.TextCtx)/2 - 4
	if maxIters < 1 {
		maxIters = 1
	}

	if params.MaxTokens > 0 && params.MaxTokens < maxIters {
		maxIters = params.MaxTokens
	}

	vocab := ctx.vocab

	nPast := make([]int, nDec)
	feed := make([][]int32, nDec)

	for i := 0; i < nDec; i++ {
		feed[i] = append([]int32(nil), prompt...)
	}

	windowLen := int64(seekEnd - seek)

	for step := 0; step < maxIters; step++ {
		lastStep := step == maxIters-1

		if allDecodersDone(state, nDec) {
			break
		}

		if params.Callbacks.Abort != nil && params.Callbacks.Abort() {
			break
		}

		sl := make([]slotResult, nDec)

		for i := 0; i < nDec; i++ {
			ds := state.decoders[i]
			if ds.failed || ds.completed {
				continue
			}

			logits, err := state.Decode(i, feed[i], nPast[i])
			if err != nil {
				ds.failed = true
				continue
			}

			nPast[i] += len(feed[i])

			logprobs, probs := state.lp.Process(logits, processOpts{
				temperature:        temperature,
				seq:                &ds.seq,
				hasTS:              ds.hasTS,
				seekDelta:          ds.seekDelta,
				speakerTurnEnabled: params.SpeakerTurnEnable,
				suppressBlank:      params.SuppressBlank,
				suppressNonSpeech:  params.SuppressNonSpeechTokens,
				maxInitialTS:       params.MaxInitialTS,
				filter: func(l []float32) {
					if params.Callbacks.LogitsFilter != nil {
						params.Callbacks.LogitsFilter(ctx, state, ds.seq.Tokens, l)
					}
				},
			})

			sl[i] = slotResult{logits: logits, logprobs: logprobs, probs: probs}
		}

		if params.Strategy == StrategyBeamSearch {
			if err := beamStep(state, nDec, sl, vocab, windowLen, params.LengthPenalty, nPast, feed, step); err != nil {
				return newErr(KindKVCacheInit, "runDecodeLoop", err)
			}
		} else {
			independentStep(state, nDec, sl, temperature, vocab, windowLen, params.LengthPenalty, feed, step)
		}

		for i := 0; i < nDec; i++ {
			ds := state.decoders[i]
			if ds.failed || ds.completed {
				continue
			}

			if len(ds.seq.Tokens) == 0 {
				continue
			}

			lastTok := ds.seq.Tokens[len(ds.seq.Tokens)-1]

			endOfWindow := ds.hasTS && int64(seek)+ds.seekDelta+100 >= int64(seekEnd)
			maxTokensHit := params.MaxTokens > 0 && step >= params.MaxTokens

			if lastTok.ID == vocab.TokenEOT || maxTokensHit || endOfWindow {
				if ds.seq.ResultLen == 0 {
					if endOfWindow {
						ds.seq.ResultLen = step + 1
					} else {
						ds.failed = true
						continue
					}
				}

				if params.SingleSegment {
					ds.seq.ResultLen = step + 1
					ds.seekDelta = windowLen
				}

				ds.completed = true

				continue
			}

			if lastStep {
				if ds.seq.ResultLen == 0 || ds.seekDelta < int64(audioCtx) {
					ds.failed = true
				} else {
					ds.completed = true
				}

				continue
			}

			if ds.seq.ResultLen > 32 && ds.seq.Entropy < params.EntropyThold {
				ds.failed = true
			}
		}
	}

	return nil
}

func allDecodersDone(state *State, nDec int) bool {
	for i := 0; i < nDec; i++ {
		if !state.decoders[i].failed && !state.decoders[i].completed {
			return false
		}
	}

	return true
}

// independentStep samples each active decoder on its own, used for greedy
// (temperature==0) and best_of (temperature>0, independent stochastic
// draws — no pooling across slots).
func independentStep(state *State, nDec int, sl []slotResult, temperature float32, vocab *vocabView, windowLen int64, lengthAlpha float32, feed [][]int32, step int) {
	for i := 0; i < nDec; i++ {
		ds := state.decoders[i]
		if ds.failed || ds.completed {
			continue
		}

		var (
			id int32
			p  float32
		)

		if temperature > 0 {
			id, p = state.sampler.stochastic(sl[i].probs)
		} else {
			id, p = state.sampler.greedy(sl[i].probs)
		}

		applyToken(ds, id, p, sl[i].logprobs, vocab, windowLen, lengthAlpha, step)
		feed[i] = []int32{id}
	}
}

// beamCandidate is one pooled expansion considered during beam selection.
type beamCandidate struct {
	srcSlot int
	id      int32
	p       float32
	sumAll  float32
}

// beamStep pools top-k expansions from every active decoder, ranks by
// cumulative sum_logprobs_all, and keeps the top nDec as the next
// generation's decoder states, reshuffling the self-attention KV caches to
// match.
func beamStep(state *State, nDec int, sl []slotResult, vocab *vocabView, windowLen int64, lengthAlpha float32, nPast []int, feed [][]int32, step int) error {
	oldSeqs := make([]Sequence, nDec)
	oldNPast := make([]int, nDec)

	var pool []beamCandidate

	for i := 0; i < nDec; i++ {
		ds := state.decoders[i]
		oldSeqs[i] = ds.seq
		oldNPast[i] = nPast[i]

		if ds.failed || ds.completed {
			continue
		}

		for _, c := range topK(sl[i].logits, sl[i].probs, nDec) {
			lp := float32(0)
			if int(c.ID) < len(sl[i].logprobs) {
				lp = sl[i].logprobs[c.ID]
			}

			pool = append(pool, beamCandidate{
				srcSlot: i,
				id:      c.ID,
				p:       c.P,
				sumAll:  ds.seq.SumLogprobsAll + lp,
			})
		}
	}

	if len(pool) == 0 {
		return nil
	}

	sort.Slice(pool, func(a, b int) bool { return pool[a].sumAll > pool[b].sumAll })

	if len(pool) > nDec {
		pool = pool[:nDec]
	}

	caches := make([]*selfKVCache, nDec)
	for i := 0; i < nDec; i++ {
		caches[i] = state.decoders[i].self
	}

	srcIdx := make([]int, nDec)

	for i := range srcIdx {
		if i < len(pool) {
			srcIdx[i] = pool[i].srcSlot
		} else {
			srcIdx[i] = i
		}
	}

	if err := reshuffleSelfCaches(caches, srcIdx); err != nil {
		return err
	}

	newNPast := make([]int, nDec)

	for i := 0; i < nDec; i++ {
		state.decoders[i].self = caches[i]
		newNPast[i] = oldNPast[srcIdx[i]]

		if i >= len(pool) {
			continue
		}

		c := pool[i]
		ds := state.decoders[i]
		ds.seq = oldSeqs[c.srcSlot]
		ds.failed = false
		ds.completed = false
		ds.hasTS = false
		ds.speakerNext = false

		applyToken(ds, c.id, c.p, sl[c.srcSlot].logprobs, vocab, windowLen, lengthAlpha, step)
		feed[i] = []int32{c.id}
	}

	copy(nPast, newNPast)

	return nil
}

// applyToken appends id to ds's sequence, updating the running scores and
// timestamp bookkeeping per the scoring contract. step is the current
// generation step index (0-based), used to reject a timestamp that would
// walk the window backwards.
func applyToken(ds *decoderState, id int32, p float32, logprobs []float32, vocab *vocabView, windowLen int64, lengthAlpha float32, step int) {
	lp := float32(0)
	if int(id) < len(logprobs) {
		lp = logprobs[id]
	}

	tok := Token{ID: id, P: p}

	isTS := id >= vocab.TokenBegTimestamp
	if isTS {
		ts := int64(2 * (id - vocab.TokenBegTimestamp))

		// Do not allow the window to walk backwards: a timestamp earlier
		// than one already committed, before result_len catches up, fails
		// the decoder rather than corrupting the window.
		if ds.hasTS && ds.seekDelta > ts && int64(ds.seq.ResultLen) < int64(step) {
			ds.failed = true
		} else {
			ds.seekDelta = ts
			ds.hasTS = true
		}

		tok.T0 = ts
		tok.T1 = ts
	}

	if id == vocab.TokenSolm {
		ds.speakerNext = true
	}

	ds.seq.Tokens = append(ds.seq.Tokens, tok)
	ds.seq.SumLogprobsAll += lp

	switch {
	case id == vocab.TokenEOT:
		// end-of-text marks no committed content of its own.
	case !isTS:
		ds.seq.SumLogprobs += lp
		ds.seq.ResultLen++
	}

	ds.seq.AvgLogprobs = ds.seq.SumLogprobs / float32(atLeastOne(ds.seq.ResultLen))
	ds.seq.Entropy = sequenceEntropy(ds.seq.Tokens)
	ds.seq.Score = sequenceScore(ds.seq.SumLogprobs, ds.seq.ResultLen, lengthAlpha)

	if ds.seekDelta <= 0 && windowLen > 0 {
		ds.seekDelta = windowLen
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}

	return n
}

// selectBest ranks the nDec decoders that finished this temperature's
// decode loop and returns the winner: completed decoders beat failed ones,
// ties broken by score.
func selectBest(state *State, nDec int, params *Params) *decoderState {
	var best *decoderState

	for i := 0; i < nDec; i++ {
		ds := state.decoders[i]

		switch {
		case best == nil:
			best = ds
		case ds.failed && !best.failed:
			// keep best
		case !ds.failed && best.failed:
			best = ds
		case ds.seq.Score > best.seq.Score:
			best = ds
		}
	}

	return best
}
