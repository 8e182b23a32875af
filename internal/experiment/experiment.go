// Package experiment loads YAML experiment files describing a dataset, a
// model and the constraints a run must satisfy.
package experiment

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"goseldon/adapters/models"
	"goseldon/app"
	"goseldon/domain/dataset"
	"goseldon/internal/bounds"
	"goseldon/internal/candidate"
	"goseldon/internal/errors"
	"goseldon/internal/hyperparam"
	"goseldon/ports"
)

// Dataset locates the data of an experiment
type Dataset struct {
	Path  string       `yaml:"path" validate:"required"`
	Sheet string       `yaml:"sheet"`
	Meta  dataset.Meta `yaml:"meta"`
}

// Model selects a statistic provider
type Model struct {
	Kind    string         `yaml:"kind" validate:"required,oneof=linear_regression logistic_regression softmax_policy"`
	Options models.Options `yaml:"options"`
}

// Search configures the safety fraction search
type Search struct {
	Fracs    []float64 `yaml:"fracs" validate:"required,min=1,dive,gt=0,lt=1"`
	Trials   int       `yaml:"trials" validate:"gte=0"`
	Workers  int       `yaml:"workers" validate:"gte=0"`
	Interval string    `yaml:"interval" validate:"omitempty,oneof=ttest clopper-pearson"`
	Alpha    float64   `yaml:"alpha" validate:"gte=0,lt=1"`
	Pooled   bool      `yaml:"pooled"`
}

// Experiment is the on-disk description of a run
type Experiment struct {
	Name        string    `yaml:"name" validate:"required"`
	Dataset     Dataset   `yaml:"dataset"`
	Model       Model     `yaml:"model"`
	Constraints []string  `yaml:"constraints" validate:"required,min=1,dive,required"`
	Deltas      []float64 `yaml:"deltas" validate:"dive,gt=0,lt=1"`
	Delta       float64   `yaml:"delta" validate:"gte=0,lt=1"`

	Primary  string `yaml:"primary" validate:"required"`
	Maximize bool   `yaml:"maximize"`

	FracSafety float64 `yaml:"frac_safety" validate:"gte=0,lt=1"`
	Shuffle    bool    `yaml:"shuffle"`
	Stratify   string  `yaml:"stratify"`
	Seed       int64   `yaml:"seed"`

	BoundMethod string  `yaml:"bound_method" validate:"omitempty,oneof=ttest hoeffding"`
	Inflation   float64 `yaml:"inflation" validate:"gte=0"`
	Tolerance   float64 `yaml:"tolerance" validate:"gte=0"`
	Barrier     string  `yaml:"barrier" validate:"omitempty,oneof=softplus hinge2 hard"`
	Parallel    bool    `yaml:"parallel"`

	Optimizer    ports.Hyperparameters `yaml:"optimizer"`
	InitialTheta []float64             `yaml:"initial_theta"`

	Search *Search `yaml:"search"`
}

// Load reads and validates an experiment file. A relative dataset path is
// resolved against the file's directory.
func Load(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("read experiment: %w", err))
	}
	exp, err := Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "experiment %s", path)
	}
	if !filepath.IsAbs(exp.Dataset.Path) {
		exp.Dataset.Path = filepath.Join(filepath.Dir(path), exp.Dataset.Path)
	}
	return exp, nil
}

// Parse decodes and validates YAML. Unknown keys are rejected.
func Parse(raw []byte) (*Experiment, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var exp Experiment
	if err := dec.Decode(&exp); err != nil {
		return nil, errors.ValidationError(err, "decode experiment")
	}
	if err := validator.New().Struct(&exp); err != nil {
		return nil, errors.ValidationError(err, "invalid experiment")
	}
	return &exp, nil
}

// Spec converts the experiment into an algorithm spec
func (e *Experiment) Spec() (app.Spec, error) {
	method, err := bounds.ParseMethod(e.BoundMethod)
	if err != nil {
		return app.Spec{}, err
	}
	barrier, err := candidate.ParseBarrier(e.Barrier)
	if err != nil {
		return app.Spec{}, err
	}
	return app.Spec{
		Name:         e.Name,
		Constraints:  e.Constraints,
		Deltas:       e.Deltas,
		Delta:        e.Delta,
		Primary:      e.Primary,
		Maximize:     e.Maximize,
		FracSafety:   e.FracSafety,
		Shuffle:      e.Shuffle,
		Stratify:     e.Stratify,
		Seed:         e.Seed,
		BoundMethod:  method,
		Inflation:    e.Inflation,
		Tolerance:    e.Tolerance,
		Barrier:      barrier,
		Parallel:     e.Parallel,
		Hyper:        e.Optimizer,
		InitialTheta: e.InitialTheta,
	}, nil
}

// Provider builds the configured statistic provider
func (e *Experiment) Provider() (ports.StatisticProvider, error) {
	return models.New(e.Model.Kind, e.Model.Options)
}

// SearchConfig returns the safety fraction search settings
func (e *Experiment) SearchConfig() (hyperparam.Config, error) {
	if e.Search == nil {
		return hyperparam.Config{}, fmt.Errorf("experiment %q has no search section", e.Name)
	}
	interval, err := hyperparam.ParseIntervalType(e.Search.Interval)
	if err != nil {
		return hyperparam.Config{}, err
	}
	return hyperparam.Config{
		Fracs:    e.Search.Fracs,
		Trials:   e.Search.Trials,
		Workers:  e.Search.Workers,
		Interval: interval,
		Alpha:    e.Search.Alpha,
		Pooled:   e.Search.Pooled,
		Seed:     e.Seed,
	}, nil
}
