package whisper

import (
	"fmt"

	"github.com/example/whispergo/internal/ggmlmodel"
	"github.com/example/whispergo/internal/runtime/ops"
	"github.com/example/whispergo/internal/runtime/tensor"
)

// encoderAttnBlock holds one self-attention sub-block's projections.
type encoderAttnBlock struct {
	ln    *layerNorm
	query *linear
	key   *linear // no bias
	value *linear
	out   *linear
}

// encoderMLPBlock holds one feed-forward sub-block's projections.
type encoderMLPBlock struct {
	ln *layerNorm
	l0 *linear
	l2 *linear
}

type encoderBlock struct {
	attn encoderAttnBlock
	mlp  encoderMLPBlock
}

// Encoder runs the convolutional stem and transformer stack that turns a
// window of log-mel columns into audio embeddings.
type Encoder struct {
	conv1Weight, conv1Bias *tensor.Tensor
	conv2Weight, conv2Bias *tensor.Tensor
	posEmbedding           *tensor.Tensor
	blocks                 []encoderBlock
	lnPost                 *layerNorm

	nMel   int
	nCtx   int
	nState int
	nHead  int
}

func loadEncoder(tm *ggmlmodel.TensorMap, h *ggmlmodel.Hyperparameters) (*Encoder, error) {
	etm := tm.Path("encoder")

	conv1W, err := etm.Tensor("conv1.weight")
	if err != nil {
		return nil, err
	}

	conv1B, err := etm.Tensor("conv1.bias")
	if err != nil {
		return nil, err
	}

	conv2W, err := etm.Tensor("conv2.weight")
	if err != nil {
		return nil, err
	}

	conv2B, err := etm.Tensor("conv2.bias")
	if err != nil {
		return nil, err
	}

	posEmb, err := etm.Tensor("positional_embedding")
	if err != nil {
		return nil, err
	}

	lnPost, err := loadLayerNorm(etm, "ln_post")
	if err != nil {
		return nil, err
	}

	enc := &Encoder{
		conv1Weight: conv1W, conv1Bias: conv1B,
		conv2Weight: conv2W, conv2Bias: conv2B,
		posEmbedding: posEmb,
		lnPost:       lnPost,
		nMel:         int(h.Mels),
		nCtx:         int(h.AudioCtx),
		nState:       int(h.AudioState),
		nHead:        int(h.AudioHead),
	}

	enc.blocks = make([]encoderBlock, h.AudioLayer)
	for i := range enc.blocks {
		prefix := etm.Path("blocks", fmt.Sprintf("%d", i))

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

		enc.blocks[i] = encoderBlock{
			attn: encoderAttnBlock{ln: attnLN, query: q, key: k, value: v, out: o},
			mlp:  encoderMLPBlock{ln: mlpLN, l0: l0, l2: l2},
		}
	}

	return enc, nil
}

// Encode runs the conv stem, positional add, and transformer blocks over a
// [n_mel, 2*n_audio_ctx] window of mel columns, returning [n_audio_ctx,
// n_audio_state] audio embeddings.
func (e *Encoder) Encode(melWindow *tensor.Tensor) (*tensor.Tensor, error) {
	shape := melWindow.Shape()
	if len(shape) != 2 || int(shape[0]) != e.nMel {
		return nil, fmt.Errorf("whisper: encoder expects [%d, L] mel window, got %v", e.nMel, shape)
	}

	length := shape[1]

	x3, err := melWindow.Reshape([]int64{1, int64(e.nMel), length})
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder reshape input: %w", err)
	}

	h1, err := ops.Conv1D(x3, e.conv1Weight, e.conv1Bias, 1, 1, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder conv1: %w", err)
	}

	h1g, err := ops.GELU(h1)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder conv1 gelu: %w", err)
	}

	h2, err := ops.Conv1D(h1g, e.conv2Weight, e.conv2Bias, 2, 1, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder conv2: %w", err)
	}

	h2g, err := ops.GELU(h2)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder conv2 gelu: %w", err)
	}

	convShape := h2g.Shape()
	if convShape[0] != 1 {
		return nil, fmt.Errorf("whisper: encoder conv output unexpected batch %v", convShape)
	}

	flat, err := h2g.Reshape([]int64{convShape[1], convShape[2]})
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder drop batch dim: %w", err)
	}

	x, err := flat.Transpose(0, 1)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder transpose to [ctx,state]: %w", err)
	}

	if x.Shape()[0] != int64(e.nCtx) {
		return nil, fmt.Errorf("whisper: encoder produced ctx %d, want %d", x.Shape()[0], e.nCtx)
	}

	x, err = tensor.BroadcastAdd(x, e.posEmbedding)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder positional add: %w", err)
	}

	for i := range e.blocks {
		x, err = e.runBlock(&e.blocks[i], x)
		if err != nil {
			return nil, fmt.Errorf("whisper: encoder block %d: %w", i, err)
		}
	}

	x, err = e.lnPost.forward(x)
	if err != nil {
		return nil, fmt.Errorf("whisper: encoder final layernorm: %w", err)
	}

	return x, nil
}

func (e *Encoder) runBlock(b *encoderBlock, x *tensor.Tensor) (*tensor.Tensor, error) {
	normed, err := b.attn.ln.forward(x)
	if err != nil {
		return nil, err
	}

	attnOut, err := e.selfAttention(&b.attn, normed)
	if err != nil {
		return nil, err
	}

	x, err = tensor.BroadcastAdd(x, attnOut)
	if err != nil {
		return nil, fmt.Errorf("attn residual: %w", err)
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

// selfAttention runs query/key/value/out projections for one encoder block.
// The (n_state/n_head)^(-1/4) symmetric q/k scale from the reference
// implementation is a numerical-precision trick for fp16 accumulation; it is
// mathematically equivalent to the single 1/sqrt(head_dim) scale that
// ops.Attention already applies, so no separate pre-scale step is needed.
func (e *Encoder) selfAttention(b *encoderAttnBlock, x *tensor.Tensor) (*tensor.Tensor, error) {
	q, err := b.query.forward(x)
	if err != nil {
		return nil, fmt.Errorf("query proj: %w", err)
	}

	k, err := b.key.forward(x)
	if err != nil {
		return nil, fmt.Errorf("key proj: %w", err)
	}

	v, err := b.value.forward(x)
	if err != nil {
		return nil, fmt.Errorf("value proj: %w", err)
	}

	qh, err := splitHeads(q, e.nHead)
	if err != nil {
		return nil, err
	}

	kh, err := splitHeads(k, e.nHead)
	if err != nil {
		return nil, err
	}

	vh, err := splitHeads(v, e.nHead)
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

	out, err := b.out.forward(merged)
	if err != nil {
		return nil, fmt.Errorf("out proj: %w", err)
	}

	return out, nil
}
