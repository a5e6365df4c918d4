package whisper

import (
	"fmt"
	"io"

	"github.com/example/whispergo/internal/ggmlmodel"
	"github.com/example/whispergo/internal/mel"
)

// maxDecoders is the compile-time ceiling on best_of/beam_size. Requests
// above this are rejected with KindDecoderTooMany.
const maxDecoders = 8

// Context is the immutable, shareable result of loading a model: weights,
// vocabulary, and the encoder/decoder graphs built over them.
type Context struct {
	model   *ggmlmodel.Model
	vocab   *vocabView
	encoder *Encoder
	decoder *Decoder
	fb      mel.Filterbank

	hparams ggmlmodel.Hyperparameters
}

// Load parses a model stream and builds the encoder/decoder graphs over it.
func Load(r io.Reader) (*Context, error) {
	m, err := ggmlmodel.Load(r)
	if err != nil {
		return nil, newErr(KindModelLoad, "Load", err)
	}

	enc, err := loadEncoder(m.Tensors, &m.Hparams)
	if err != nil {
		return nil, newErr(KindModelLoad, "Load", fmt.Errorf("encoder: %w", err))
	}

	dec, err := loadDecoder(m.Tensors, &m.Hparams)
	if err != nil {
		return nil, newErr(KindModelLoad, "Load", fmt.Errorf("decoder: %w", err))
	}

	vv := &vocabView{
		NVocab:            m.Vocab.NVocab,
		TokenToID:         m.Vocab.TokenToID,
		TokenEOT:          m.Vocab.TokenEOT,
		TokenSOT:          m.Vocab.TokenSOT,
		TokenTranslate:    m.Vocab.TokenTranslate,
		TokenTranscribe:   m.Vocab.TokenTranscribe,
		TokenSolm:         m.Vocab.TokenSolm,
		TokenNoSpeech:     m.Vocab.TokenNoSpeech,
		TokenNotimestamp:  m.Vocab.TokenNotimestamp,
		TokenBegTimestamp: m.Vocab.TokenBegTimestamp,
	}

	return &Context{
		model:   m,
		vocab:   vv,
		encoder: enc,
		decoder: dec,
		fb:      mel.Filterbank{NMel: int(m.Hparams.Mels), NFreqBins: m.FilterbankCols, Data: m.Filterbank},
		hparams: m.Hparams,
	}, nil
}

// Close releases the loaded model weights and graphs. Safe to call multiple
// times; a Context is unusable afterwards.
func (c *Context) Close() error {
	c.model = nil
	c.vocab = nil
	c.encoder = nil
	c.decoder = nil
	c.fb = mel.Filterbank{}

	return nil
}

// Multilingual reports whether the loaded model carries the extra language
// tag block.
func (c *Context) Multilingual() bool { return c.model.Vocab.Multilingual }

// Vocab exposes the read-only vocabulary for tokenize/detokenize callers.
func (c *Context) Vocab() *ggmlmodel.Vocab { return c.model.Vocab }

// Hparams returns the loaded hyperparameters.
func (c *Context) Hparams() ggmlmodel.Hyperparameters { return c.hparams }

// LangMaxID returns the highest valid language table index.
func (c *Context) LangMaxID() int { return len(languages) - 1 }

// LangID resolves a language name or code to its table index, or -1.
func (c *Context) LangID(nameOrCode string) int {
	if id := langIDByCode(nameOrCode); id >= 0 {
		return id
	}

	for i, l := range languages {
		if l.name == nameOrCode {
			return i
		}
	}

	return -1
}

// LangStr returns the ISO code for a table index.
func (c *Context) LangStr(id int) string { return langCode(id) }

// Tokenize converts text to token ids using a greedy longest-prefix match
// over the loaded vocabulary. Unknown runs fall back to per-byte ids drawn
// from the vocabulary's byte-token entries when present.
func (c *Context) Tokenize(text string) ([]int32, error) {
	return tokenize(c.model.Vocab, text)
}

// DetokenizeText joins the display text of ids, skipping every id at or
// above the end-of-text token (the special and timestamp ids), matching the
// tokenizer round-trip property.
func (c *Context) DetokenizeText(ids []int32) string {
	var out []byte

	for _, id := range ids {
		if id >= c.model.Vocab.TokenEOT {
			continue
		}

		out = append(out, c.model.Vocab.TokenText(id)...)
	}

	return string(out)
}

// State owns everything mutable for one transcription run: mel buffer,
// per-decoder self-attention caches, the shared cross-attention cache, and
// the result segment list. A State is single-writer; Context is shared
// read-only across States (§5 resource model).
type State struct {
	ctx *Context

	spec  *mel.Spectrogram
	cross *crossKVCache

	decoders [maxDecoders]*decoderState
	nActive  int

	segments []Segment

	sampler *sampler
	lp      *LogitsProcessor

	promptPast []int32
	lang       int32
}

// NewState allocates a fresh State for ctx: one shared cross-attention cache
// and maxDecoders self-attention caches (only the first N are used by any
// single full() call).
func NewState(ctx *Context) (*State, error) {
	cross, err := ctx.decoder.NewCrossKVCache(int(ctx.hparams.AudioCtx))
	if err != nil {
		return nil, newErr(KindKVCacheInit, "NewState", err)
	}

	s := &State{
		ctx:     ctx,
		cross:   cross,
		sampler: newSampler(1),
		lp:      newLogitsProcessor(ctx.vocab, ctx.hparams.AudioCtx),
		lang:    0,
	}

	for i := range s.decoders {
		self, err := ctx.decoder.NewSelfKVCache()
		if err != nil {
			return nil, newErr(KindKVCacheInit, "NewState", err)
		}

		s.decoders[i] = &decoderState{self: self}
	}

	return s, nil
}

// SetMel installs an externally computed spectrogram, bypassing PCMToMel.
func (s *State) SetMel(data []float32, nLen, nMelIn int) error {
	if nMelIn != s.ctx.fb.NMel {
		return newErr(KindMel, "SetMel", fmt.Errorf("n_mel %d != model n_mel %d", nMelIn, s.ctx.fb.NMel))
	}

	s.spec = &mel.Spectrogram{NMel: nMelIn, NLenTotal: nLen, NLenOriginal: nLen, Data: data}

	return nil
}

// PCMToMel computes the log-mel spectrogram for samples.
func (s *State) PCMToMel(samples []float32, nThreads int) error {
	spec, err := mel.Compute(samples, s.ctx.fb, nThreads)
	if err != nil {
		return newErr(KindMel, "PCMToMel", err)
	}

	s.spec = spec

	return nil
}

// Encode runs the encoder over a 2*n_audio_ctx mel window starting at
// offsetFrames (mel columns, 10ms each) and precomputes the cross-attention
// cache for every decoder layer.
func (s *State) Encode(offsetFrames, nThreads int) error {
	if s.spec == nil {
		return newErr(KindEncode, "Encode", fmt.Errorf("no mel spectrogram computed"))
	}

	window := 2 * int(s.ctx.hparams.AudioCtx)

	melWin, err := sliceMelWindow(s.spec, offsetFrames, window)
	if err != nil {
		return newErr(KindAudioContextExceeded, "Encode", err)
	}

	enc, err := s.ctx.encoder.Encode(melWin)
	if err != nil {
		return newErr(KindEncode, "Encode", err)
	}

	if err := s.ctx.decoder.PrecomputeCrossKV(enc, s.cross); err != nil {
		return newErr(KindEncode, "Encode", err)
	}

	return nil
}

// Decode runs the decoder for one active slot, writing new self-KV rows and
// bumping occupancy by len(tokens) on success.
func (s *State) Decode(decoderIdx int, tokens []int32, nPast int) ([]float32, error) {
	if decoderIdx < 0 || decoderIdx >= len(s.decoders) {
		return nil, newErr(KindDecoderTooMany, "Decode", fmt.Errorf("index %d", decoderIdx))
	}

	ds := s.decoders[decoderIdx]

	logits, err := s.ctx.decoder.Decode(tokens, nPast, ds.self, s.cross)
	if err != nil {
		return nil, newErr(KindDecode, "Decode", err)
	}

	ds.self.n = nPast + len(tokens)

	return logits.Data(), nil
}

// Segments returns the segments emitted by the most recent full() call.
func (s *State) Segments() []Segment { return s.segments }

// Language returns the id detected (or forced) by the most recent run.
func (s *State) Language() int32 { return s.lang }
