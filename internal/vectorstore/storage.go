package vectorstore

import (
	"context"
	"fmt"

	"supportrag/internal/domain"
)

// DefaultDimension is the vector length of the support index. Ingestion and
// query both pad embeddings to this size.
const DefaultDimension = 3072

// CheckDimension verifies once that the index was created with the expected
// dimensionality.
func CheckDimension(ctx context.Context, idx domain.Index, want int) error {
	got, err := idx.Dimension(ctx)
	if err != nil {
		return fmt.Errorf("describe index: %w", err)
	}
	if got != want {
		return domain.Errorf(domain.KindInternal, "check dimension", "index dimension is %d, configured %d", got, want)
	}
	return nil
}
