package memutest

import (
	"hash/fnv"
	"math"
	"strings"
)

// dimensions of the fake embedding space.
const dimensions = 64

// embed produces a deterministic unit vector for text.
//
// Each lower-cased word seeds a pseudo-random vector and the vectors are
// summed, so texts sharing words land close together. This is enough to make
// the fake rank plausibly without a model.
func embed(text string) []float32 {
	vec := make([]float32, dimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:'\"()")
		if word == "" {
			continue
		}

		h := fnv.New64a()
		h.Write([]byte(word))
		seed := h.Sum64()
		for i := range vec {
			// Simple LCG (Linear Congruential Generator)
			seed = seed*6364136223846793005 + 1442695040888963407
			vec[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}
	return normalize(vec)
}

// normalize converts vec to a unit vector. The zero vector gets a fixed
// direction so cosine similarity stays defined.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		out := make([]float32, len(vec))
		out[0] = 1
		return out
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}
