package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goseldon/adapters/ledger"
	"goseldon/app"
	"goseldon/internal/bounds"
	"goseldon/internal/candidate"
	"goseldon/internal/config"
	"goseldon/internal/logging"
	"goseldon/ports"
)

// env holds what every command needs
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *sqlx.DB
}

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "goseldon",
		Short:         "Train models with high-confidence behavioral constraints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newParseCmd(),
		newRunCmd(),
		newSafetyFracCmd(),
		newRunsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

// ledger opens the run ledger; a SQLite ledger without a URL lives only for
// the duration of the command
func (e *env) ledger(ctx context.Context) (ports.RunRepository, error) {
	if e.db == nil {
		db, err := ledger.Open(ctx, e.cfg.Ledger.Driver, e.cfg.Ledger.URL)
		if err != nil {
			return nil, err
		}
		e.db = db
	}
	return ledger.NewRunRepository(e.db), nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	_ = e.log.Sync()
}

// applyDefaults fills unset spec fields from configuration
func (e *env) applyDefaults(spec *app.Spec) {
	alg, opt := e.cfg.Algorithm, e.cfg.Optimizer
	if spec.Delta == 0 {
		spec.Delta = alg.Delta
	}
	if spec.FracSafety == 0 {
		spec.FracSafety = alg.FracSafety
	}
	if spec.BoundMethod == "" {
		spec.BoundMethod = bounds.Method(alg.BoundMethod)
	}
	if spec.Barrier == "" {
		spec.Barrier = candidate.Barrier(alg.Barrier)
	}
	if spec.Tolerance == 0 {
		spec.Tolerance = alg.Tolerance
	}
	spec.Parallel = spec.Parallel || alg.Parallel

	if spec.Hyper.Method == "" {
		spec.Hyper.Method = opt.Method
	}
	if spec.Hyper.LearningRate == 0 {
		spec.Hyper.LearningRate = opt.LearningRate
	}
	if spec.Hyper.MaxIterations == 0 {
		spec.Hyper.MaxIterations = opt.MaxIterations
	}
	if spec.Hyper.Tolerance == 0 {
		spec.Hyper.Tolerance = opt.Tolerance
	}
}
