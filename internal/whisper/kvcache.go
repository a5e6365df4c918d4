package whisper

import (
	"fmt"

	"github.com/example/whispergo/internal/runtime/tensor"
)

// selfKVCache holds one decoder's self-attention key/value history, shaped
// [n_layer, n_ctx, n_state]. n tracks how many leading context positions are
// occupied; Reset drops occupancy without reallocating.
type selfKVCache struct {
	k, v   *tensor.Tensor
	nLayer int
	nCtx   int
	nState int
	n      int
}

func newSelfKVCache(nLayer, nCtx, nState int) (*selfKVCache, error) {
	k, err := tensor.Zeros([]int64{int64(nLayer), int64(nCtx), int64(nState)})
	if err != nil {
		return nil, fmt.Errorf("whisper: alloc self kv: %w", err)
	}

	v, err := tensor.Zeros([]int64{int64(nLayer), int64(nCtx), int64(nState)})
	if err != nil {
		return nil, fmt.Errorf("whisper: alloc self kv: %w", err)
	}

	return &selfKVCache{k: k, v: v, nLayer: nLayer, nCtx: nCtx, nState: nState}, nil
}

func (c *selfKVCache) Reset() {
	c.n = 0
}

// layerSlice returns the [nCtx, nState] window for one layer's key or value
// tensor, reshaped for read/write against a fixed number of cached rows.
func (c *selfKVCache) layerSlice(data []float32, layer int) []float32 {
	stride := c.nCtx * c.nState
	base := layer * stride

	return data[base : base+stride]
}

// write stores newK/newV (each [n_tokens, n_state]) for layer starting at
// row n_past, per the write policy: exactly n_tokens new rows land at
// [n_past, n_past+n_tokens).
func (c *selfKVCache) write(layer, nPast int, newK, newV []float32) error {
	nTokens := len(newK) / c.nState
	if nTokens*c.nState != len(newK) || len(newK) != len(newV) {
		return fmt.Errorf("whisper: self kv write: malformed k/v payload")
	}

	if nPast+nTokens > c.nCtx {
		return fmt.Errorf("whisper: self kv write: %d+%d exceeds context %d", nPast, nTokens, c.nCtx)
	}

	kSlice := c.layerSlice(c.k.RawData(), layer)
	vSlice := c.layerSlice(c.v.RawData(), layer)

	copy(kSlice[nPast*c.nState:(nPast+nTokens)*c.nState], newK)
	copy(vSlice[nPast*c.nState:(nPast+nTokens)*c.nState], newV)

	return nil
}

// view returns the occupied [n, n_state] K/V window for layer, suitable for
// feeding directly into attention as the key/value sequence.
func (c *selfKVCache) view(layer int) (k, v []float32) {
	kSlice := c.layerSlice(c.k.RawData(), layer)
	vSlice := c.layerSlice(c.v.RawData(), layer)

	return kSlice[:c.n*c.nState], vSlice[:c.n*c.nState]
}

// windowUpTo returns the [total, n_state] K/V prefix for layer regardless of
// c.n, used mid-call after write() has placed new rows but before the
// caller has bumped occupancy.
func (c *selfKVCache) windowUpTo(layer, total int) (k, v []float32) {
	kSlice := c.layerSlice(c.k.RawData(), layer)
	vSlice := c.layerSlice(c.v.RawData(), layer)

	return kSlice[:total*c.nState], vSlice[:total*c.nState]
}

// cloneFrom deep-copies src's occupied region into c, used when a beam
// decoder's state is not a simple pointer-swappable permutation target.
func (c *selfKVCache) cloneFrom(src *selfKVCache) {
	copy(c.k.RawData(), src.k.RawData())
	copy(c.v.RawData(), src.v.RawData())
	c.n = src.n
}

// crossKVCache holds the shared, read-only (after encode) cross-attention
// K/V produced once per window by the encoder, shaped
// [n_layer, n_audio_ctx, n_state]. All decoders read the same cache.
type crossKVCache struct {
	k, v   *tensor.Tensor
	nLayer int
	nCtx   int
	nState int
}

func newCrossKVCache(nLayer, nCtx, nState int) (*crossKVCache, error) {
	k, err := tensor.Zeros([]int64{int64(nLayer), int64(nCtx), int64(nState)})
	if err != nil {
		return nil, fmt.Errorf("whisper: alloc cross kv: %w", err)
	}

	v, err := tensor.Zeros([]int64{int64(nLayer), int64(nCtx), int64(nState)})
	if err != nil {
		return nil, fmt.Errorf("whisper: alloc cross kv: %w", err)
	}

	return &crossKVCache{k: k, v: v, nLayer: nLayer, nCtx: nCtx, nState: nState}, nil
}

// writeLayer installs the pre-computed K/V (each [n_audio_ctx, n_state]) for
// one decoder layer into the shared cache slot [layer*n_ctx, layer*n_ctx+n_ctx).
func (c *crossKVCache) writeLayer(layer int, k, v []float32) error {
	stride := c.nCtx * c.nState
	if len(k) != stride || len(v) != stride {
		return fmt.Errorf("whisper: cross kv write: expected %d elements, got k=%d v=%d", stride, len(k), len(v))
	}

	base := layer * stride
	copy(c.k.RawData()[base:base+stride], k)
	copy(c.v.RawData()[base:base+stride], v)

	return nil
}

func (c *crossKVCache) view(layer int) (k, v []float32) {
	stride := c.nCtx * c.nState
	base := layer * stride

	return c.k.RawData()[base : base+stride], c.v.RawData()[base : base+stride]
}

// reshuffleSelfCaches rearranges decoder self-KV caches per a beam-search
// selection: dst[i] must end up holding what src[srcIdx[i]] held. When
// srcIdx is a permutation, disjoint cycles are realized with pointer swaps
// instead of copies; a source reused by more than one destination (the
// common beam-search case, where a strong candidate is cloned into several
// slots) cannot be satisfied by swaps alone and falls back to a buffered
// deep copy from a pre-reshuffle snapshot.
func reshuffleSelfCaches(caches []*selfKVCache, srcIdx []int) error {
	if len(caches) != len(srcIdx) {
		return fmt.Errorf("whisper: reshuffle: caches/indices length mismatch")
	}

	n := len(caches)

	srcCount := make([]int, n)
	for _, s := range srcIdx {
		if s < 0 || s >= n {
			return fmt.Errorf("whisper: reshuffle: source index %d out of range", s)
		}

		srcCount[s]++
	}

	isPermutation := true
	for _, c := range srcCount {
		if c != 1 {
			isPermutation = false
			break
		}
	}

	if !isPermutation {
		kBuf := make([][]float32, n)
		vBuf := make([][]float32, n)
		nBuf := make([]int, n)

		for s, c := range srcCount {
			if c == 0 {
				continue
			}

			kBuf[s] = append([]float32(nil), caches[s].k.RawData()...)
			vBuf[s] = append([]float32(nil), caches[s].v.RawData()...)
			nBuf[s] = caches[s].n
		}

		for dst, src := range srcIdx {
			if dst == src {
				continue
			}

			copy(caches[dst].k.RawData(), kBuf[src])
			copy(caches[dst].v.RawData(), vBuf[src])
			caches[dst].n = nBuf[src]
		}

		return nil
	}

	visited := make([]bool, n)
	for i := range n {
		if visited[i] {
			continue
		}

		cycle := []int{i}
		visited[i] = true

		for j := srcIdx[i]; j != i; j = srcIdx[j] {
			visited[j] = true
			cycle = append(cycle, j)
		}

		if len(cycle) == 1 {
			continue
		}

		tmp := caches[cycle[0]]
		for k := 0; k < len(cycle)-1; k++ {
			caches[cycle[k]] = caches[cycle[k+1]]
		}

		caches[cycle[len(cycle)-1]] = tmp
	}

	return nil
}
