package ports

import (
	"context"

	"goseldon/domain/dataset"
)

// DatasetReader loads a dataset once, before any tree evaluation
type DatasetReader interface {
	Read(ctx context.Context, path string, meta dataset.Meta) (*dataset.Dataset, error)
}
