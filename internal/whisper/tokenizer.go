package whisper

import (
	"fmt"

	"github.com/example/whispergo/internal/ggmlmodel"
)

// tokenize performs a greedy longest-match encode over the loaded
// vocabulary: at each position, try the longest remaining prefix that is a
// known vocabulary entry, falling back one byte at a time. This mirrors the
// reference byte-level BPE vocabulary's round-trip property (concatenating
// token text reproduces the input) without requiring the original merge
// table, which this runtime does not load.
func tokenize(v *ggmlmodel.Vocab, text string) ([]int32, error) {
	b := []byte(text)

	ids := make([]int32, 0, len(b)/2+1)

	maxTokenLen := 0
	for tok := range v.TokenToID {
		if len(tok) > maxTokenLen {
			maxTokenLen = len(tok)
		}
	}

	for i := 0; i < len(b); {
		matched := false

		hi := maxTokenLen
		if i+hi > len(b) {
			hi = len(b) - i
		}

		for l := hi; l >= 1; l-- {
			cand := string(b[i : i+l])
			if id, ok := v.TokenToID[cand]; ok {
				ids = append(ids, id)
				i += l
				matched = true

				break
			}
		}

		if !matched {
			return nil, fmt.Errorf("whisper: tokenize: no vocabulary entry covers byte 0x%02x at position %d", b[i], i)
		}
	}

	return ids, nil
}
