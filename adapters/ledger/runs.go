// Package ledger records algorithm runs in a SQL database through sqlx.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"goseldon/domain/core"
	"goseldon/domain/run"
	"goseldon/internal/errors"
	"goseldon/internal/migration"
	"goseldon/ports"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Open connects to the ledger database and applies migrations. An empty
// SQLite URL opens a private in-memory database.
func Open(ctx context.Context, driver, url string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if url == "" {
			url = ":memory:"
		}
	case DriverPostgres:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported ledger driver %q", driver))
	}
	db, err := sqlx.ConnectContext(ctx, driver, url)
	if err != nil {
		return nil, errors.DatabaseError(err, "connect %s ledger", driver)
	}
	if driver == DriverSQLite {
		// an in-memory database lives as long as its single connection
		db.SetMaxOpenConns(1)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// RunRepository implements ports.RunRepository on sqlx
type RunRepository struct {
	db *sqlx.DB
}

var _ ports.RunRepository = (*RunRepository)(nil)

// NewRunRepository creates a repository on a migrated database
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

type runRow struct {
	ID          string `db:"id"`
	Experiment  string `db:"experiment"`
	Passed      bool   `db:"passed"`
	Failure     string `db:"failure"`
	Reason      string `db:"reason"`
	Solution    string `db:"solution"`
	Candidate   string `db:"candidate"`
	Constraints string `db:"constraint_reports"`
	NCandidate  int    `db:"n_candidate"`
	NSafety     int    `db:"n_safety"`
	Seed        int64  `db:"seed"`
	DurationNs  int64  `db:"duration_ns"`
	CreatedAtNs int64  `db:"created_at_ns"`
}

const runColumns = `id, experiment, passed, failure, reason, solution, candidate, constraint_reports,
	n_candidate, n_safety, seed, duration_ns, created_at_ns`

func toRow(r *run.Record) (*runRow, error) {
	solution, err := json.Marshal(nonNil(r.Solution))
	if err != nil {
		return nil, errors.Wrap(err, "encode solution")
	}
	candidate, err := json.Marshal(nonNil(r.Candidate))
	if err != nil {
		return nil, errors.Wrap(err, "encode candidate")
	}
	constraints := r.Constraints
	if constraints == nil {
		constraints = []run.ConstraintReport{}
	}
	reports, err := json.Marshal(constraints)
	if err != nil {
		return nil, errors.Wrap(err, "encode constraint reports")
	}
	return &runRow{
		ID:          r.ID.String(),
		Experiment:  r.Experiment,
		Passed:      r.Passed,
		Failure:     string(r.Failure),
		Reason:      r.Reason,
		Solution:    string(solution),
		Candidate:   string(candidate),
		Constraints: string(reports),
		NCandidate:  r.NCandidate,
		NSafety:     r.NSafety,
		Seed:        r.Seed,
		DurationNs:  int64(r.Duration),
		CreatedAtNs: r.CreatedAt.UnixNano(),
	}, nil
}

func (row *runRow) record() (*run.Record, error) {
	out := &run.Record{
		ID:         core.RunID(row.ID),
		Experiment: row.Experiment,
		Passed:     row.Passed,
		Failure:    run.FailureKind(row.Failure),
		Reason:     row.Reason,
		NCandidate: row.NCandidate,
		NSafety:    row.NSafety,
		Seed:       row.Seed,
		Duration:   time.Duration(row.DurationNs),
		CreatedAt:  time.Unix(0, row.CreatedAtNs).UTC(),
	}
	if err := json.Unmarshal([]byte(row.Solution), &out.Solution); err != nil {
		return nil, errors.DatabaseError(err, "decode solution of run %s", row.ID)
	}
	if err := json.Unmarshal([]byte(row.Candidate), &out.Candidate); err != nil {
		return nil, errors.DatabaseError(err, "decode candidate of run %s", row.ID)
	}
	if err := json.Unmarshal([]byte(row.Constraints), &out.Constraints); err != nil {
		return nil, errors.DatabaseError(err, "decode constraint reports of run %s", row.ID)
	}
	if len(out.Solution) == 0 {
		out.Solution = nil
	}
	if len(out.Candidate) == 0 {
		out.Candidate = nil
	}
	return out, nil
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

// SaveRun inserts a run; saving an existing id fails
func (r *RunRepository) SaveRun(ctx context.Context, record *run.Record) error {
	row, err := toRow(record)
	if err != nil {
		return err
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (:id, :experiment, :passed, :failure, :reason, :solution, :candidate, :constraint_reports,
			:n_candidate, :n_safety, :seed, :duration_ns, :created_at_ns)
	`, row)
	if err != nil {
		return errors.DatabaseError(err, "insert run %s", record.ID)
	}
	return nil
}

// GetRun returns core.ErrRunNotFound for unknown ids
func (r *RunRepository) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id.String())
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, errors.DatabaseError(err, "get run %s", id)
	}
	return row.record()
}

// ListRuns returns runs newest first
func (r *RunRepository) ListRuns(ctx context.Context, limit, offset int) ([]*run.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT `+runColumns+` FROM runs
		ORDER BY created_at_ns DESC, id DESC
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, errors.DatabaseError(err, "list runs")
	}
	out := make([]*run.Record, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
