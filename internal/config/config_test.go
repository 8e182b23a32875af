package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goseldon/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Algorithm.Delta)
	assert.Equal(t, 0.6, cfg.Algorithm.FracSafety)
	assert.Equal(t, "gradient_descent", cfg.Optimizer.Method)
	assert.Equal(t, "sqlite", cfg.Ledger.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SELDON_DELTA", "0.1")
	t.Setenv("SELDON_PARALLEL", "true")
	t.Setenv("OPTIMIZER_METHOD", "bfgs")
	t.Setenv("OPTIMIZER_MAX_ITERATIONS", "notanumber")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.1, cfg.Algorithm.Delta)
	assert.True(t, cfg.Algorithm.Parallel)
	assert.Equal(t, "bfgs", cfg.Optimizer.Method)
	assert.Equal(t, 500, cfg.Optimizer.MaxIterations)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"delta above one", "SELDON_DELTA", "1.5"},
		{"unknown method", "OPTIMIZER_METHOD", "newton"},
		{"unknown bound", "SELDON_BOUND_METHOD", "bernstein"},
		{"postgres without url", "LEDGER_DRIVER", "postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.CodeFor(err))
		})
	}
}
