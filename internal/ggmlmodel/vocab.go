package ggmlmodel

import "fmt"

// Vocab is a bidirectional token/id map plus the reserved control ids that
// the decoder and logits processor key off of.
type Vocab struct {
	TokenToID map[string]int32
	IDToToken map[int32]string

	NVocab int32

	TokenEOT        int32
	TokenSOT        int32
	TokenPrev       int32
	TokenSolm       int32 // speaker-turn marker ("start of lm")
	TokenNoSpeech   int32
	TokenNotimestamp int32
	TokenBegTimestamp int32
	TokenTranslate  int32
	TokenTranscribe int32

	Multilingual bool
	NLangs       int32
}

// numBaseLangs is the language-tag table size baked into the multilingual
// reserved-id layout (Whisper's fixed language list).
const numBaseLangs = 99

func loadVocab(rd *reader, nVocabOnDisk int32, nVocabHparam int32) (*Vocab, error) {
	v := &Vocab{
		TokenToID: make(map[string]int32, nVocabOnDisk),
		IDToToken: make(map[int32]string, nVocabOnDisk),
		NVocab:    nVocabHparam,
	}

	v.Multilingual = nVocabHparam == 51865

	for i := int32(0); i < nVocabOnDisk; i++ {
		tok, err := rd.string()
		if err != nil {
			return nil, err
		}

		v.TokenToID[tok] = i
		v.IDToToken[i] = tok
	}

	v.assignReserved()

	// Synthesize any ids between nVocabOnDisk and nVocabHparam that were not
	// present on disk: timestamp placeholders first (token_beg_ts upward),
	// then opaque extra-token slots.
	for i := nVocabOnDisk; i < nVocabHparam; i++ {
		if _, ok := v.IDToToken[i]; ok {
			continue
		}

		var name string
		if i >= v.TokenBegTimestamp {
			name = fmt.Sprintf("[_TT_%d]", i-v.TokenBegTimestamp)
		} else {
			name = fmt.Sprintf("[_extra_token_%d]", i)
		}

		v.TokenToID[name] = i
		v.IDToToken[i] = name
	}

	return v, nil
}

// assignReserved lays out the reserved control ids immediately above
// NVocab-1, per the multilingual increment rule: a multilingual model's
// reserved block is shifted up by one slot to make room for the extra
// language tag relative to the English-only layout.
func (v *Vocab) assignReserved() {
	n := v.NVocab

	v.TokenEOT = n
	v.TokenSOT = n + 1
	// sot+1 .. sot+NLangs are per-language tags; transcribe/translate/solm/
	// prev/nospeech/notimestamp follow, then the timestamp range begins.
	if v.Multilingual {
		v.NLangs = numBaseLangs
	} else {
		v.NLangs = 0
	}

	langBase := v.TokenSOT + 1
	v.TokenTranslate = langBase + v.NLangs
	v.TokenTranscribe = v.TokenTranslate + 1
	v.TokenSolm = v.TokenTranscribe + 1
	v.TokenPrev = v.TokenSolm + 1
	v.TokenNoSpeech = v.TokenPrev + 1
	v.TokenNotimestamp = v.TokenNoSpeech + 1
	v.TokenBegTimestamp = v.TokenNotimestamp + 1
}

// LangTag returns the per-language tag id for a language table index.
func (v *Vocab) LangTag(langIdx int32) int32 {
	return v.TokenSOT + 1 + langIdx
}

// TokenText returns the display text for id, or "" if unknown.
func (v *Vocab) TokenText(id int32) string {
	return v.IDToToken[id]
}
