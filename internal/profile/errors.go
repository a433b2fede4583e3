package profile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProfileNotFound is returned when no profile of a name is registered.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfile is returned when a profile definition is malformed.
	ErrInvalidProfile = errors.New("invalid profile")
)

// NotFoundError reports an unknown profile name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("profile not found: %q", e.Name)
}

func (e *NotFoundError) Unwrap() error { return ErrProfileNotFound }

// InvalidError reports every problem found while decoding one profile.
type InvalidError struct {
	Name     string
	Problems []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid profile %q:\n  - %s", e.Name, strings.Join(e.Problems, "\n  - "))
}

func (e *InvalidError) Unwrap() error { return ErrInvalidProfile }
