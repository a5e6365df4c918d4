package whisper

import (
	"fmt"

	"github.com/example/whispergo/internal/ggmlmodel"
	"github.com/example/whispergo/internal/runtime/tensor"
)

// linear is a loaded weight/bias pair resolved from the model's tensor map,
// adapted from the generic Linear/VarBuilder pattern used elsewhere in this
// runtime for the fixed encoder.*/decoder.* naming convention.
type linear struct {
	weight *tensor.Tensor // [out, in]
	bias   *tensor.Tensor // optional [out]
}

func loadLinear(tm *ggmlmodel.TensorMap, name string, withBias bool) (*linear, error) {
	w, err := tm.Tensor(name + ".weight")
	if err != nil {
		return nil, err
	}

	var b *tensor.Tensor
	if withBias {
		b, err = tm.Tensor(name + ".bias")
		if err != nil {
			return nil, err
		}
	}

	return &linear{weight: w, bias: b}, nil
}

func (l *linear) forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.Linear(x, l.weight, l.bias)
}

type layerNorm struct {
	weight *tensor.Tensor
	bias   *tensor.Tensor
	eps    float32
}

func loadLayerNorm(tm *ggmlmodel.TensorMap, name string) (*layerNorm, error) {
	w, err := tm.Tensor(name + ".weight")
	if err != nil {
		return nil, err
	}

	b, err := tm.Tensor(name + ".bias")
	if err != nil {
		return nil, err
	}

	return &layerNorm{weight: w, bias: b, eps: 1e-5}, nil
}

func (ln *layerNorm) forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.LayerNorm(x, ln.weight, ln.bias, ln.eps)
	if err != nil {
		return nil, fmt.Errorf("whisper: layernorm: %w", err)
	}

	return out, nil
}

// splitHeads reshapes a [ctx, n_state] tensor into [1, n_head, ctx, head_dim]
// for consumption by ops.Attention's batched 4-D fast path.
func splitHeads(x *tensor.Tensor, nHead int) (*tensor.Tensor, error) {
	shape := x.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("whisper: splitHeads expects rank 2, got %v", shape)
	}

	ctx := shape[0]
	state := shape[1]

	if state%int64(nHead) != 0 {
		return nil, fmt.Errorf("whisper: state %d not divisible by n_head %d", state, nHead)
	}

	headDim := state / int64(nHead)

	r, err := x.Reshape([]int64{ctx, int64(nHead), headDim})
	if err != nil {
		return nil, fmt.Errorf("whisper: splitHeads reshape: %w", err)
	}

	t, err := r.Transpose(0, 1)
	if err != nil {
		return nil, fmt.Errorf("whisper: splitHeads transpose: %w", err)
	}

	out, err := t.Reshape([]int64{1, int64(nHead), ctx, headDim})
	if err != nil {
		return nil, fmt.Errorf("whisper: splitHeads batch reshape: %w", err)
	}

	return out, nil
}

// mergeHeads is the inverse of splitHeads: [1, n_head, ctx, head_dim] back
// to [ctx, n_state].
func mergeHeads(x *tensor.Tensor) (*tensor.Tensor, error) {
	shape := x.Shape()
	if len(shape) != 4 || shape[0] != 1 {
		return nil, fmt.Errorf("whisper: mergeHeads expects shape [1,h,ctx,d], got %v", shape)
	}

	nHead, ctx, headDim := shape[1], shape[2], shape[3]

	r, err := x.Reshape([]int64{nHead, ctx, headDim})
	if err != nil {
		return nil, fmt.Errorf("whisper: mergeHeads reshape: %w", err)
	}

	t, err := r.Transpose(0, 1)
	if err != nil {
		return nil, fmt.Errorf("whisper: mergeHeads transpose: %w", err)
	}

	out, err := t.Reshape([]int64{ctx, nHead * headDim})
	if err != nil {
		return nil, fmt.Errorf("whisper: mergeHeads state reshape: %w", err)
	}

	return out, nil
}
