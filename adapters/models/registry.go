package models

import (
	"fmt"

	"goseldon/ports"
)

// Provider kinds accepted by New
const (
	KindLinear   = "linear_regression"
	KindLogistic = "logistic_regression"
	KindPolicy   = "softmax_policy"
)

// Options size providers that need it
type Options struct {
	Observations int `json:"observations" yaml:"observations"`
	Actions      int `json:"actions" yaml:"actions"`
}

// New builds a provider by kind
func New(kind string, opts Options) (ports.StatisticProvider, error) {
	switch kind {
	case KindLinear:
		return LinearRegression{}, nil
	case KindLogistic:
		return LogisticRegression{}, nil
	case KindPolicy:
		return NewSoftmaxPolicy(opts.Observations, opts.Actions)
	}
	return nil, fmt.Errorf("unknown model %q", kind)
}
