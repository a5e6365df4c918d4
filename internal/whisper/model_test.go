package whisper

import (
	"testing"

	"github.com/example/whispergo/internal/ggmlmodel"
)

func TestContextClose_SafeToCallTwice(t *testing.T) {
	ctx := &Context{
		model: &ggmlmodel.Model{Vocab: &ggmlmodel.Vocab{}},
		vocab: &vocabView{},
	}

	if err := ctx.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := ctx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if ctx.model != nil || ctx.vocab != nil {
		t.Error("Close did not release model/vocab references")
	}
}
