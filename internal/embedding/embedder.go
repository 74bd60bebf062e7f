// Package embedding provides the text-to-vector capability used by the categorizer.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Embedder maps feature blobs to fixed-dimension vectors. Implementations must
// return exactly one vector per input, in input order, all of the same dimension,
// and must be safe for concurrent use.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EncoderFunc adapts a plain function into an Embedder.
type EncoderFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Encode calls f.
func (f EncoderFunc) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// Model reports a fixed name for function-backed embedders.
func (f EncoderFunc) Model() string {
	return "func"
}

// CheckBatch verifies that vectors line up with the request: same count, uniform dimension.
func CheckBatch(texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding result size mismatch: got %d want %d", len(vectors), len(texts))
	}
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, vec := range vectors {
		if vec == nil {
			return fmt.Errorf("missing embedding for index %d", i)
		}
		if len(vec) != dim {
			return fmt.Errorf("embedding dimension mismatch at index %d: got %d want %d", i, len(vec), dim)
		}
	}
	return nil
}

// encodeNonBlank sends only non-blank texts to encode and fills blank positions with
// zero vectors of the returned dimension. Backends reject or embed empty prompts
// inconsistently; a zero vector is similar to nothing and ends up as noise.
func encodeNonBlank(texts []string, encode func([]string) ([][]float32, error)) ([][]float32, error) {
	idxMap := make([]int, 0, len(texts))
	inputs := make([]string, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		idxMap = append(idxMap, i)
		inputs = append(inputs, text)
	}

	out := make([][]float32, len(texts))
	dim := 0
	if len(inputs) > 0 {
		vectors, err := encode(inputs)
		if err != nil {
			return nil, err
		}
		if err := CheckBatch(inputs, vectors); err != nil {
			return nil, err
		}
		dim = len(vectors[0])
		for i, vec := range vectors {
			out[idxMap[i]] = vec
		}
	}
	for i := range out {
		if out[i] == nil {
			out[i] = make([]float32, dim)
		}
	}
	return out, nil
}
