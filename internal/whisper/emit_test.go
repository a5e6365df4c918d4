package whisper

import (
	"testing"

	"github.com/example/whispergo/internal/ggmlmodel"
)

func newEmitTestContext(begTS, eot int32, idToText map[int32]string) *Context {
	return &Context{
		model: &ggmlmodel.Model{
			Vocab: &ggmlmodel.Vocab{
				TokenBegTimestamp: begTS,
				TokenEOT:          eot,
				IDToToken:         idToText,
			},
		},
	}
}

func TestEmitSegments_SingleTimestampSpan(t *testing.T) {
	// Tokens: [ts+0, "hi", " there", ts+50] -> one segment spanning 0..100cs.
	begTS := int32(100)
	eot := int32(99)

	idToText := map[int32]string{10: "hi", 11: " there"}
	ctx := newEmitTestContext(begTS, eot, idToText)

	state := &State{}
	ds := &decoderState{
		seq: Sequence{Tokens: []Token{
			{ID: begTS + 0},
			{ID: 10},
			{ID: 11},
			{ID: begTS + 50},
		}},
	}

	params := &Params{MaxLen: 0}

	emitSegments(ctx, state, ds, params, 0)

	if len(state.segments) != 1 {
		t.Fatalf("len(segments) = %d; want 1", len(state.segments))
	}

	seg := state.segments[0]
	if seg.Text != "hi there" {
		t.Errorf("Text = %q; want %q", seg.Text, "hi there")
	}
	if seg.T0 != 0 || seg.T1 != 100 {
		t.Errorf("T0,T1 = %d,%d; want 0,100", seg.T0, seg.T1)
	}
}

func TestEmitSegments_SkipsEOT(t *testing.T) {
	begTS := int32(100)
	eot := int32(99)

	idToText := map[int32]string{10: "hi"}
	ctx := newEmitTestContext(begTS, eot, idToText)

	state := &State{}
	ds := &decoderState{
		seq: Sequence{Tokens: []Token{
			{ID: begTS},
			{ID: 10},
			{ID: eot},
			{ID: begTS + 10},
		}},
	}

	emitSegments(ctx, state, ds, &Params{}, 0)

	if len(state.segments) != 1 {
		t.Fatalf("len(segments) = %d; want 1", len(state.segments))
	}
	if state.segments[0].Text != "hi" {
		t.Errorf("Text = %q; want %q", state.segments[0].Text, "hi")
	}
}

func TestEmitSegments_SeekOffsetAppliedToBounds(t *testing.T) {
	begTS := int32(100)
	eot := int32(99)

	idToText := map[int32]string{10: "ok"}
	ctx := newEmitTestContext(begTS, eot, idToText)

	state := &State{}
	ds := &decoderState{
		seq: Sequence{Tokens: []Token{
			{ID: begTS},
			{ID: 10},
			{ID: begTS + 5},
		}},
	}

	emitSegments(ctx, state, ds, &Params{}, 1000)

	if len(state.segments) != 1 {
		t.Fatalf("len(segments) = %d; want 1", len(state.segments))
	}
	if state.segments[0].T0 != 1000 || state.segments[0].T1 != 1010 {
		t.Errorf("T0,T1 = %d,%d; want 1000,1010", state.segments[0].T0, state.segments[0].T1)
	}
}

func TestEmitSegments_SpeakerTurnSetOnLastSegment(t *testing.T) {
	begTS := int32(100)
	eot := int32(99)

	idToText := map[int32]string{10: "ok"}
	ctx := newEmitTestContext(begTS, eot, idToText)

	state := &State{}
	ds := &decoderState{
		speakerNext: true,
		seq: Sequence{Tokens: []Token{
			{ID: begTS},
			{ID: 10},
			{ID: begTS + 5},
		}},
	}

	emitSegments(ctx, state, ds, &Params{}, 0)

	if len(state.segments) == 0 {
		t.Fatal("expected at least one segment")
	}
	if !state.segments[len(state.segments)-1].SpeakerTurnNext {
		t.Error("SpeakerTurnNext should propagate from the decoder state")
	}
}
