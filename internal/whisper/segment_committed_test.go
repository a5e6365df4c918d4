package whisper

import (
	"testing"

	"github.com/example/whispergo/internal/ggmlmodel"
)

func newTestContextForTokens(begTS int32) *Context {
	return &Context{
		model: &ggmlmodel.Model{
			Vocab: &ggmlmodel.Vocab{TokenBegTimestamp: begTS},
		},
	}
}

func TestCommittedTokenIDs_DropsTimestamps(t *testing.T) {
	ctx := newTestContextForTokens(50)

	seq := Sequence{Tokens: []Token{
		{ID: 10}, {ID: 51}, {ID: 20}, {ID: 60},
	}}

	got := committedTokenIDs(ctx, seq)
	want := []int32{10, 20}

	if len(got) != len(want) {
		t.Fatalf("committedTokenIDs = %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d; want %d", i, got[i], want[i])
		}
	}
}

func TestCommittedTokenIDs_EmptySequence(t *testing.T) {
	ctx := newTestContextForTokens(50)

	got := committedTokenIDs(ctx, Sequence{})
	if len(got) != 0 {
		t.Errorf("committedTokenIDs(empty) = %v; want empty", got)
	}
}

func TestCommittedTokenIDs_AllTimestamps(t *testing.T) {
	ctx := newTestContextForTokens(50)

	seq := Sequence{Tokens: []Token{{ID: 51}, {ID: 52}}}
	got := committedTokenIDs(ctx, seq)
	if len(got) != 0 {
		t.Errorf("committedTokenIDs(all ts) = %v; want empty", got)
	}
}
