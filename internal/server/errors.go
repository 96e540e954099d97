package server

import (
	"errors"
	"fmt"
)

var (
	ErrServerStopped = errors.New("chat server stopped")
	ErrNotMember     = errors.New("not a member of this guild")
	ErrNoSession     = errors.New("session not registered")
)

// LookupError reports that room membership could not be resolved because
// the persistence layer failed.
type LookupError struct {
	UserId int
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("resolve rooms for user %d: %v", e.UserId, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

type InvalidStatusError struct {
	Status string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q", e.Status)
}
