package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound      = errors.New("resource not found")
	ErrInputNotFound = fmt.Errorf("%w: input file", ErrNotFound)

	ErrMalformedInput = errors.New("malformed input")
	ErrMissingColumn  = errors.New("missing required column")
	ErrNonNumeric     = errors.New("column is not numeric")

	ErrInsufficientData    = errors.New("insufficient data for analysis")
	ErrNotPositiveDefinite = errors.New("covariance matrix is not positive definite")
	ErrNotConverged        = errors.New("estimation did not converge")
	ErrInvalidModel        = errors.New("invalid model specification")
	ErrNotIdentified       = errors.New("model is not identified")
)

// NewMissingColumnError reports every absent column at once
func NewMissingColumnError(columns []string) error {
	return fmt.Errorf("%w: %v", ErrMissingColumn, columns)
}

// NewNonNumericError reports a column that must be numeric but is not
func NewNonNumericError(column string) error {
	return fmt.Errorf("%w: %s", ErrNonNumeric, column)
}

// NewModelSyntaxError reports a problem in one line of a model description
func NewModelSyntaxError(line int, reason string) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidModel, line, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSelectionError(err error) bool {
	return errors.Is(err, ErrMissingColumn) || errors.Is(err, ErrNonNumeric)
}

func IsComputationError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNotPositiveDefinite) ||
		errors.Is(err, ErrNotConverged) ||
		errors.Is(err, ErrNotIdentified)
}
