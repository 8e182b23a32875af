package ports

import (
	"context"

	"goseldon/domain/core"
	"goseldon/domain/run"
)

// RunRepository persists algorithm runs
type RunRepository interface {
	SaveRun(ctx context.Context, record *run.Record) error
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*run.Record, error)
}
