package embedding

import (
	"context"

	"supportrag/internal/domain"
)

// Pad returns vec right-padded with zeros to exactly dim values. Values are
// copied unchanged. A vector longer than dim is rejected rather than truncated.
func Pad(vec []float32, dim int) ([]float32, error) {
	if len(vec) > dim {
		return nil, domain.Errorf(domain.KindInternal, "pad embedding", "vector has %d values, index dimension is %d", len(vec), dim)
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out, nil
}

// Fitted wraps an Embedder so every vector matches the index dimension.
type Fitted struct {
	inner     domain.Embedder
	dimension int
}

// Fit pads the output of e to dimension values.
func Fit(e domain.Embedder, dimension int) *Fitted {
	return &Fitted{inner: e, dimension: dimension}
}

// Name returns the identifier of the wrapped embedder.
func (f *Fitted) Name() string { return f.inner.Name() }

// Dimension returns the padded vector length.
func (f *Fitted) Dimension() int { return f.dimension }

// Embed embeds text and pads the result.
func (f *Fitted) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := f.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return Pad(vec, f.dimension)
}
