package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound         = errors.New("resource not found")
	ErrArtifactNotFound = fmt.Errorf("%w: artifact", ErrNotFound)

	// Input errors
	ErrEmptyTopic     = errors.New("topic cannot be empty")
	ErrUnknownSource  = errors.New("unknown data source")
	ErrInvalidMetrics = errors.New("invalid validation metrics")

	// Gate errors
	ErrEthicsGateFailed = errors.New("ethics gate failed")
)

// NewNotFoundError reports a missing resource by kind and id
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// NewValidationError reports an invalid input field
func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInputError reports whether err was caused by caller-supplied input
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptyTopic) ||
		errors.Is(err, ErrUnknownSource) ||
		errors.Is(err, ErrInvalidMetrics)
}

// IsGateError reports whether err is an ethics refusal. Policy and criteria
// rejections of a full run are Outcome values, not errors.
func IsGateError(err error) bool {
	return errors.Is(err, ErrEthicsGateFailed)
}
