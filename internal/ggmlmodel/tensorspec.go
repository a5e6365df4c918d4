package ggmlmodel

import "fmt"

// tensorSpec is the expected shape for one registered tensor name, built
// from the hyperparameters before any tensor record is read. Incoming
// records are validated against this registry per §4.1's "pre-registered
// tensor in the name map" contract.
type tensorSpec struct {
	shape []int64
}

// buildRegistry returns the full set of tensor names a model of this shape
// must supply, mirroring the whisper.cpp on-disk naming convention:
// encoder.{positional_embedding,conv1,conv2,ln_post,blocks.N.*} and the
// matching decoder.* names, including decoder.blocks.N.cross_attn.*.
func buildRegistry(h *Hyperparameters) map[string]tensorSpec {
	reg := make(map[string]tensorSpec, 64+32*int(h.AudioLayer+h.TextLayer))

	aState := int64(h.AudioState)
	aCtx := int64(h.AudioCtx)
	mels := int64(h.Mels)

	reg["encoder.positional_embedding"] = tensorSpec{[]int64{aCtx, aState}}
	reg["encoder.conv1.weight"] = tensorSpec{[]int64{aState, mels, 3}}
	reg["encoder.conv1.bias"] = tensorSpec{[]int64{aState}}
	reg["encoder.conv2.weight"] = tensorSpec{[]int64{aState, aState, 3}}
	reg["encoder.conv2.bias"] = tensorSpec{[]int64{aState}}
	reg["encoder.ln_post.weight"] = tensorSpec{[]int64{aState}}
	reg["encoder.ln_post.bias"] = tensorSpec{[]int64{aState}}

	for i := int64(0); i < int64(h.AudioLayer); i++ {
		addAttnBlock(reg, fmt.Sprintf("encoder.blocks.%d", i), aState, aState)
		addMLPBlock(reg, fmt.Sprintf("encoder.blocks.%d", i), aState)
	}

	tState := int64(h.TextState)
	tCtx := int64(h.TextCtx)
	nVocab := int64(h.VocabSize)

	reg["decoder.positional_embedding"] = tensorSpec{[]int64{tCtx, tState}}
	reg["decoder.token_embedding.weight"] = tensorSpec{[]int64{nVocab, tState}}
	reg["decoder.ln.weight"] = tensorSpec{[]int64{tState}}
	reg["decoder.ln.bias"] = tensorSpec{[]int64{tState}}

	for i := int64(0); i < int64(h.TextLayer); i++ {
		prefix := fmt.Sprintf("decoder.blocks.%d", i)
		addAttnBlock(reg, prefix, tState, tState)
		addCrossAttnBlock(reg, prefix, tState, aState)
		addMLPBlock(reg, prefix, tState)
	}

	return reg
}

func addAttnBlock(reg map[string]tensorSpec, prefix string, dim, kvDim int64) {
	reg[prefix+".attn_ln.weight"] = tensorSpec{[]int64{dim}}
	reg[prefix+".attn_ln.bias"] = tensorSpec{[]int64{dim}}
	reg[prefix+".attn.query.weight"] = tensorSpec{[]int64{dim, dim}}
	reg[prefix+".attn.query.bias"] = tensorSpec{[]int64{dim}}
	reg[prefix+".attn.key.weight"] = tensorSpec{[]int64{kvDim, dim}}
	reg[prefix+".attn.value.weight"] = tensorSpec{[]int64{kvDim, dim}}
	reg[prefix+".attn.value.bias"] = tensorSpec{[]int64{kvDim}}
	reg[prefix+".attn.out.weight"] = tensorSpec{[]int64{dim, dim}}
	reg[prefix+".attn.out.bias"] = tensorSpec{[]int64{dim}}
}

func addCrossAttnBlock(reg map[string]tensorSpec, prefix string, dim, encDim int64) {
	reg[prefix+".cross_attn_ln.weight"] = tensorSpec{[]int64{dim}}
	reg[prefix+".cross_attn_ln.bias"] = tensorSpec{[]int64{dim}}
	reg[prefix+".cross_attn.query.weight"] = tensorSpec{[]int64{dim, dim}}
	reg[prefix+".cross_attn.query.bias"] = tensorSpec{[]int64{dim}}
	reg[prefix+".cross_attn.key.weight"] = tensorSpec{[]int64{dim, encDim}}
	reg[prefix+".cross_attn.value.weight"] = tensorSpec{[]int64{dim, encDim}}
	reg[prefix+".cross_attn.value.bias"] = tensorSpec{[]int64{dim}}
	reg[prefix+".cross_attn.out.weight"] = tensorSpec{[]int64{dim, dim}}
	reg[prefix+".cross_attn.out.bias"] = tensorSpec{[]int64{dim}}
}

func addMLPBlock(reg map[string]tensorSpec, prefix string, dim int64) {
	hidden := dim * 4
	reg[prefix+".mlp_ln.weight"] = tensorSpec{[]int64{dim}}
	reg[prefix+".mlp_ln.bias"] = tensorSpec{[]int64{dim}}
	reg[prefix+".mlp.0.weight"] = tensorSpec{[]int64{hidden, dim}}
	reg[prefix+".mlp.0.bias"] = tensorSpec{[]int64{hidden}}
	reg[prefix+".mlp.2.weight"] = tensorSpec{[]int64{dim, hidden}}
	reg[prefix+".mlp.2.bias"] = tensorSpec{[]int64{dim}}
}
