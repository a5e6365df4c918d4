package whisper

// emitSegments walks the winning decoder's committed tokens, splitting on
// timestamp-token pairs into segments with absolute (seek-relative)
// centisecond bounds, and appends them to state.segments.
func emitSegments(ctx *Context, state *State, ds *decoderState, params *Params, seek int) {
	begTS := ctx.model.Vocab.TokenBegTimestamp
	eot := ctx.model.Vocab.TokenEOT

	tokens := ds.seq.Tokens

	var (
		cur       []Token
		haveStart bool
		t0        int64
	)

	flush := func(t1 int64) {
		if len(cur) == 0 && !haveStart {
			return
		}

		ids := make([]int32, len(cur))
		for i, t := range cur {
			ids[i] = t.ID
		}

		text := ctx.DetokenizeText(ids)

		for _, line := range wrapText(text, params.MaxLen, params.SplitOnWord) {
			state.segments = append(state.segments, Segment{
				T0:   int64(seek) + t0,
				T1:   int64(seek) + t1,
				Text: line,
			})
		}

		if len(state.segments) > 0 {
			state.segments[len(state.segments)-1].Tokens = append([]Token(nil), cur...)
		}

		cur = nil
	}

	for _, tok := range tokens {
		if tok.ID == eot {
			continue
		}

		if tok.ID >= begTS {
			ts := int64(2 * (tok.ID - begTS))

			if !haveStart {
				t0 = ts
				haveStart = true

				continue
			}

			flush(ts)
			haveStart = false

			continue
		}

		cur = append(cur, tok)
	}

	if len(cur) > 0 {
		end := t0
		if ds.seekDelta > 0 {
			end = ds.seekDelta
		}

		flush(end)
	}

	if n := len(state.segments); n > 0 {
		state.segments[n-1].SpeakerTurnNext = ds.speakerNext
	}
}
