package whisper

import (
	"fmt"

	"github.com/example/whispergo/internal/ggmlmodel"
	"github.com/example/whispergo/internal/runtime/ops"
	"github.com/example/whispergo/internal/runtime/tensor"
)

type decoderAttnBlock struct {
	ln    *layerNorm
	query *linear
	key   *linear
	value *linear
	out   *linear
}

type decoderCrossAttnBlock struct {
	ln    *layerNorm
	query *linear
	key   *linear
	value *linear
	out   *linear
}

type decoderMLPBlock struct {
	ln *layerNorm
	l0 *linear
	l2 *linear
}

type decoderBlock struct {
	attn      decoderAttnBlock
	crossAttn decoderCrossAttnBlock
	mlp       decoderMLPBlock
}

// Decoder runs masked self-attention and cross-attention over cached audio
// context to produce next-token logits.
type Decoder struct {
	tokenEmbedding *tensor.Tensor // [n_vocab, n_state], tied to the output projection
	posEmbedding   *tensor.Tensor // [n_text_ctx, n_state]
	blocks         []decoderBlock
	ln             *layerNorm

	nVocab int
	nCtx   int
	nState int
	nHead  int
}

func loadDecoder(tm *ggmlmodel.TensorMap, h *ggmlmodel.Hyperparameters) (*Decoder, error) {
	dtm := tm.Path("decoder")

	tokEmb, err := dtm.Tensor("token_embedding.weight")
	if err != nil {
		return nil, err
	}

	posEmb, err := dtm.Tensor("positional_embedding")
	if err != nil {
		return nil, err
	}

	ln, err := loadLayerNorm(dtm, "ln")
	if err != nil {
		return nil, err
	}

	dec := &Decoder{
		tokenEmbedding: tokEmb,
		posEmbedding:   posEmb,
		ln:             ln,
		nVocab:         int(h.VocabSize),
		nCtx:           int(h.TextCtx),
		nState:         int(h.TextState),
		nHead:          int(h.TextHead),
	}

	dec.blocks = make([]decoderBlock, h.TextLayer)
	for i := range dec.blocks {
		prefix := dtm.Path("blocks", fmt.Sprintf("%d", i))

		attnLN, err := loadLayerNorm(prefix, "attn_ln")
		if err != nil {
			return nil, err
		}

		q, err := loadLinear(prefix, "attn.query", true)
		if err != nil {
			return nil, err
		}

		k, err := loadLinear(prefix, "attn.key", false)
		if err != nil {
			return nil, err
		}

		v, err := loadLinear(prefix, "attn.value", true)
		if err != nil {
			return nil, err
		}

		o, err := loadLinear(prefix, "attn.out", true)
		if err != nil {
			return nil, err
		}

		crossLN, err := loadLayerNorm(prefix, "cross_attn_ln")
		if err != nil {
			return nil, err
		}

		cq, err := loadLinear(prefix, "cross_attn.query", true)
		if err != nil {
			return nil, err
		}

		ck, err := loadLinear(prefix, "cross_attn.key", false)
		if err != nil {
			return nil, err
		}

		cv, err := loadLinear(prefix, "cross_attn.value", true)
		if err != nil {
			return nil, err
		}

		co, err := loadLinear(prefix, "cross_attn.out", true)
		if err != nil {
			return nil, err
		}

		mlpLN, err := loadLayerNorm(prefix, "mlp_ln")
		if err != nil {
			return nil, err
		}

		l0, err := loadLinear(prefix, "mlp.0", true)
		if err != nil {
			return nil, err
		}

		l2, err := loadLinear(prefix, "mlp.2", true)
		if err != nil {
			return nil, err
		}

		dec.blocks[i] = decoderBlock{
			attn:      decoderAttnBlock{ln: attnLN, query: q, key: k, value: v, out: o},
			crossAttn: decoderCrossAttnBlock{ln: crossLN, query: cq, key: ck, value: cv, out: co},
			mlp:       decoderMLPBlock{ln: mlpLN, l0: l0, l2: l2},
		}
	}

	return dec, nil
}

// NewSelfKVCache allocates a fresh self-attention cache sized for this
// decoder's layer count, context length, and state width.
func (d *Decoder) NewSelfKVCache() (*selfKVCache, error) {
	return newSelfKVCache(len(d.blocks), d.nCtx, d.nState)
}

// NewCrossKVCache allocates a shared cross-attention cache sized for this
// decoder's layer count, the encoder's context length, and this decoder's
// state width (cross_attn projects encoder output into decoder state space).
func (d *Decoder) NewCrossKVCache(audioCtx int) (*crossKVCache, error) {
	return newCrossKVCache(len(d.blocks), audioCtx, d.nState)
}

// PrecomputeCrossKV runs every layer's cross-attention key/value projection
// once over the encoder output and installs the result into cache, per the
// "cross-KV pre-compute" contract: the cross cache is then read-only until
// the next window.
func (d *Decoder) PrecomputeCrossKV(enc *tensor.Tensor, cache *crossKVCache) error {
	for i := range d.blocks {
		k, err := d.blocks[i].crossAttn.key.forward(enc)
		if err != nil {
			return fmt.Errorf("whisper: cross kv precompute layer %d key: %w", i, err)
		}

		v, err := d.blocks[i].crossAttn.value.forward(enc)
		if err != nil {
			return fmt.Errorf("whisper: cross kv precompute layer %d value: %w", i, err)
		}

		if err := cache.writeLayer(i, k.RawData(), v.RawData()); err != nil {
			return fmt.Errorf("whisper: cross kv precompute layer %d: %w", i, err)
		}
	}

	return nil
}

// Decode runs tokens (nPast already cached) through every block and returns
// logits over the full vocabulary for the last position only. self and cross
// must have been sized by this decoder's New*KVCache constructors. On
// success the caller must bump self.n by len(tokens).
func (d *Decoder) Decode(tokens []int32, nPast int, self *selfKVCache, cross *crossKVCache) (*tensor.Tensor, error) {
	nTokens := len(tokens)
	if nTokens == 0 {
		return nil, fmt.Errorf("whisper: decode requires at least one token")
	}

	if nPast+nTokens > d.nCtx {
		return nil, fmt.Errorf("whisper: decode exceeds text context: %d+%d > %d", nPast, nTokens, d.nCtx)
	}

	ids := make([]int64, nTokens)
	for i, t := range tokens {
		ids[i] = int64(t)
	}

	tokRows, err := d.tokenEmbedding.Gather(0, ids)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode token embedding gather: %w", err)
	}

	posRows, err := d.posEmbedding.Narrow(0, int64(nPast), int64(nTokens))
	if err != nil {
		return nil, fmt.Errorf("whisper: decode positional slice: %w", err)
	}

	x, err := tensor.BroadcastAdd(tokRows, posRows)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode embed add: %w", err)
	}

	for i := range d.blocks {
		x, err = d.runBlock(i, &d.blocks[i], x, nPast, self, cross)
		if err != nil {
			return nil, fmt.Errorf("whisper: decode block %d: %w", i, err)
		}
	}

	x, err = d.ln.forward(x)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode final layernorm: %w", err)
	}

	lastRow, err := x.Narrow(0, int64(nTokens-1), 1)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode slice last row: %w", err)
	}

	logits, err := tensor.Linear(lastRow, d.tokenEmbedding, nil)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode output projection: %w", err)
	}

	return logits, nil
}

func (d *Decoder) runBlock(layer int, b *decoderBlock, x *tensor.Tensor, nPast int, self *selfKVCache, cross *crossKVCache) (*tensor.Tensor, error) {
	normed, err := b.attn.ln.forward(x)
	if err != nil {
		return nil, err
	}

	attnOut, err := d.selfAttention(layer, &b.attn, normed, nPast, self)
	if err != nil {
		return nil, fmt.Errorf("self attn: %w", err)
	}

	x, err = tensor.BroadcastAdd(x, attnOut)
	if err != nil {
		return nil, fmt.Errorf("self attn residual: %w", err)
	}

	crossNormed, err := b.crossAttn.ln.forward(x)
	if err != nil {
		return nil, err
	}

	crossOut, err := d.crossAttention(layer, &b.crossAttn, crossNormed, cross)
	if err != nil {
		return nil, fmt.Errorf("cross attn: %w", err)
	}

	x, err = tensor.BroadcastAdd(x, crossOut)
	if err != nil {
		return nil, fmt.Errorf("cross attn residual: %w", err)
	}

	normed2, err := b.mlp.ln.forward(x)
	if err != nil {
		return nil, err
	}

	mlpOut, err := ops.MLPGelu(normed2, b.mlp.l0.weight, b.mlp.l0.bias, b.mlp.l2.weight, b.mlp.l2.bias)
	if err != nil {
		return nil, fmt.Errorf("mlp: %w", err)
	}

	x, err = tensor.BroadcastAdd(x, mlpOut)
	if err != nil {
		return nil, fmt.Errorf("mlp residual: %w", err)
	}

	return x, nil
}

func (d *Decoder) selfAttention(layer int, b *decoderAttnBlock, x *tensor.Tensor, nPast int, cache *selfKVCache) (*tensor.Tensor, error) {
	q, err := b.query.forward(x)
	if err != nil {
		return nil, fmt.Errorf("query proj: %w", err)
	}

	newK, err := b.key.forward(x)
	if err != nil {
		return nil, fmt.Errorf("key proj: %w", err)
	}

	newV, err := b.value.forward(x)
	if err != nil {
		return nil, fmt.Errorf("value proj: %w", err)
	}

	nTokens := x.Shape()[0]

	if err := cache.write(layer, nPast, newK.RawData(), newV.RawData()); err != nil {
		return nil, fmt.Errorf("kv write: %w", err)
	}

	total := nPast + int(nTokens)
	kFlat, vFlat := cache.windowUpTo(layer, total)

	kFull, err := tensor.New(kFlat, []int64{int64(total), int64(d.nState)})
	if err != nil {
		return nil, err
	}

	vFull, err := tensor.New(vFlat, []int64{int64(total), int64(d.nState)})
	if err != nil {
		return nil, err
	}

	qh, err := splitHeads(q, d.nHead)
	if err != nil {
		return nil, err
	}

	kh, err := splitHeads(kFull, d.nHead)
	if err != nil {
		return nil, err
	}

	vh, err := splitHeads(vFull, d.nHead)
	if err != nil {
		return nil, err
	}

	attnOut, err := ops.Attention(qh, kh, vh, true, int64(nPast))
	if err != nil {
		return nil, fmt.Errorf("attention: %w", err)
	}

	merged, err := mergeHeads(attnOut)
	if err != nil {
		return nil, err
	}

	return b.out.forward(merged)
}

func (d *Decoder) crossAttention(layer int, b *decoderCrossAttnBlock, x *tensor.Tensor, cache *crossKVCache) (*tensor.Tensor, error) {
	q, err := b.query.forward(x)
	if err != nil {
		return nil, fmt.Errorf("query proj: %w", err)
	}

	kFlat, vFlat := cache.view(layer)

	kFull, err := tensor.New(kFlat, []int64{int64(cache.nCtx), int64(cache.nState)})
	if err != nil {
		return nil, err
	}

	vFull, err := tensor.New(vFlat, []int64{int64(cache.nCtx), int64(cache.nState)})
	if err != nil {
		return nil, err
	}

	qh, err := splitHeads(q, d.nHead)
	if err != nil {
		return nil, err
	}

	kh, err := splitHeads(kFull, d.nHead)
	if err != nil {
		return nil, err
	}

	vh, err := splitHeads(vFull, d.nHead)
	if err != nil {
		return nil, err
	}

	attnOut, err := ops.Attention(qh, kh, vh, false, 0)
	if err != nil {
		return nil, fmt.Errorf("attention: %w", err)
	}

	merged, err := mergeHeads(attnOut)
	if err != nil {
		return nil, err
	}

	return b.out.forward(merged)
}
