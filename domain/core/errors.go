package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Constraint errors
	ErrParse                = errors.New("constraint parse error")
	ErrBoundComputation     = errors.New("bound computation error")
	ErrUnsupportedStatistic = errors.New("unsupported statistic")

	// Optimisation errors
	ErrOptimizerDivergence = errors.New("optimizer diverged")

	// Data errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrInvalidDataset   = errors.New("invalid dataset")

	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)
)

// ParseError reports a malformed constraint string.
type ParseError struct {
	Constraint string
	Pos        int
	Msg        string
}

func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("parse %q at offset %d: %s", e.Constraint, e.Pos, e.Msg)
	}
	return fmt.Sprintf("parse %q: %s", e.Constraint, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError creates a ParseError; pos < 0 means no position is known
func NewParseError(constraint string, pos int, format string, args ...interface{}) error {
	return &ParseError{Constraint: constraint, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// NewBoundError wraps ErrBoundComputation with the node that failed
func NewBoundError(node string, format string, args ...interface{}) error {
	return fmt.Errorf("%w at %s: %s", ErrBoundComputation, node, fmt.Sprintf(format, args...))
}

// NewUnsupportedStatisticError reports a statistic a provider cannot compute
func NewUnsupportedStatisticError(provider, name string) error {
	return fmt.Errorf("%w: %s does not provide %q", ErrUnsupportedStatistic, provider, name)
}

// NewDivergenceError wraps ErrOptimizerDivergence
func NewDivergenceError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrOptimizerDivergence, fmt.Sprintf(format, args...))
}

// Error checking helpers
func IsParseError(err error) bool {
	return errors.Is(err, ErrParse)
}

func IsBoundError(err error) bool {
	return errors.Is(err, ErrBoundComputation)
}
