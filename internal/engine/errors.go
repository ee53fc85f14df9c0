package engine

import (
	"errors"
	"fmt"
)

var ErrNotAuthenticated = errors.New("not authenticated with the calendar service")

// ValidationError is bad caller input. It is never retried automatically.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// FetchError is a failed call to an external source.
type FetchError struct {
	Source string
	Email  string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Email == "" {
		return fmt.Sprintf("fetching %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("fetching %s for %s: %v", e.Source, e.Email, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ShapeError is data from a collaborator that does not have the expected
// structure.
type ShapeError struct {
	Source string
	Detail string
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unexpected %s data: %s", e.Source, e.Detail)
	}
	return fmt.Sprintf("unexpected %s data: %s: %v", e.Source, e.Detail, e.Err)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}
