package ops

import (
	"fmt"
	"math"

	"github.com/example/whispergo/internal/runtime/tensor"
)

// MLP computes linear(silu(linear(x))).
func MLP(x, w1, b1, w2, b2 *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := tensor.Linear(x, w1, b1)
	if err != nil {
		return nil, fmt.Errorf("ops: mlp first linear: %w", err)
	}

	hAct := h.Clone()
	for i, v := range hAct.RawData() {
		hAct.RawData()[i] = silu(v)
	}

	out, err := tensor.Linear(hAct, w2, b2)
	if err != nil {
		return nil, fmt.Errorf("ops: mlp second linear: %w", err)
	}

	return out, nil
}

func silu(x float32) float32 {
	return x / (1 + float32(math.Exp(float64(-x))))
}

// gelu computes the exact (erf-based) Gaussian Error Linear Unit, matching
// the activation used by the Whisper transformer blocks.
func gelu(x float32) float32 {
	const invSqrt2 = 0.7071067811865476
	return 0.5 * x * (1 + float32(math.Erf(float64(x)*invSqrt2)))
}

// GELU applies the Gaussian Error Linear Unit elementwise and returns a new
// tensor.
func GELU(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x == nil {
		return nil, fmt.Errorf("ops: gelu requires non-nil input")
	}

	out := x.Clone()
	data := out.RawData()
	for i, v := range data {
		data[i] = gelu(v)
	}

	return out, nil
}

// MLPGelu computes linear(gelu(linear(x))), the feed-forward block used by
// the Whisper encoder and decoder transformer layers.
func MLPGelu(x, w1, b1, w2, b2 *tensor.Tensor) (*tensor.Tensor, error) {
	h, err := tensor.Linear(x, w1, b1)
	if err != nil {
		return nil, fmt.Errorf("ops: mlp first linear: %w", err)
	}

	hAct := h.Clone()
	for i, v := range hAct.RawData() {
		hAct.RawData()[i] = gelu(v)
	}

	out, err := tensor.Linear(hAct, w2, b2)
	if err != nil {
		return nil, fmt.Errorf("ops: mlp second linear: %w", err)
	}

	return out, nil
}
