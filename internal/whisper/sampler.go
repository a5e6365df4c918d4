package whisper

import (
	"math"
	"math/rand"
	"sort"
)

// sampler draws tokens from a probability distribution using a private RNG,
// so two States never share mutable sampling state.
type sampler struct {
	rng *rand.Rand
}

func newSampler(seed int64) *sampler {
	return &sampler{rng: rand.New(rand.NewSource(seed))}
}

// greedy returns argmax(probs).
func (s *sampler) greedy(probs []float32) (id int32, p float32) {
	best := 0
	bestP := float32(math.Inf(-1))

	for i, v := range probs {
		if v > bestP {
			bestP = v
			best = i
		}
	}

	return int32(best), bestP
}

// stochastic draws a categorical sample from probs.
func (s *sampler) stochastic(probs []float32) (id int32, p float32) {
	r := s.rng.Float64()

	var cum float64
	for i, v := range probs {
		cum += float64(v)
		if r <= cum {
			return int32(i), v
		}
	}

	last := len(probs) - 1

	return int32(last), probs[last]
}

// candidate is one top-k expansion: an id with its logit/prob.
type candidate struct {
	ID    int32
	Logit float32
	P     float32
}

// topK partial-sorts logits descending and returns the k highest entries
// with their softmax probability under the already-computed probs.
func topK(logits, probs []float32, k int) []candidate {
	cands := make([]candidate, len(logits))
	for i := range logits {
		cands[i] = candidate{ID: int32(i), Logit: logits[i], P: probs[i]}
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Logit != cands[j].Logit {
			return cands[i].Logit > cands[j].Logit
		}
		// Shared timestamp tie-breaker: prefer the lower id deterministically.
		return cands[i].ID < cands[j].ID
	})

	if k > len(cands) {
		k = len(cands)
	}

	return cands[:k]
}

// lengthPenalty implements length_penalty = ((5+L)/6)^alpha if alpha>0,
// else L.
func lengthPenalty(l int, alpha float32) float32 {
	if alpha > 0 {
		return float32(math.Pow((5+float64(l))/6, float64(alpha)))
	}

	return float32(l)
}

// sequenceScore computes sum_logprobs / length_penalty(L, alpha), with L the
// result-committed token count.
func sequenceScore(sumLogprobs float32, l int, alpha float32) float32 {
	lp := lengthPenalty(l, alpha)
	if lp == 0 {
		return sumLogprobs
	}

	return sumLogprobs / lp
}

// sequenceEntropy computes -sum(p*log(p)) over the empirical id-frequency
// distribution of the last min(32, len(tokens)) tokens.
func sequenceEntropy(tokens []Token) float32 {
	n := len(tokens)
	if n == 0 {
		return 0
	}

	window := 32
	if n < window {
		window = n
	}

	counts := make(map[int32]int, window)
	for _, t := range tokens[n-window:] {
		counts[t.ID]++
	}

	var entropy float64

	for _, c := range counts {
		p := float64(c) / float64(window)
		entropy -= p * math.Log(p)
	}

	return float32(entropy)
}
