package resource

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a handle, key or name absent from a cache or scene.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedKind reports a load for a kind with no registered decoder.
	ErrUnsupportedKind = errors.New("unsupported kind")
	// ErrLoadFailure reports a failed fetch or decode.
	ErrLoadFailure = errors.New("load failed")
	// ErrInvalidEnvironment reports an operation that needs a live rendering
	// context when none exists.
	ErrInvalidEnvironment = errors.New("no live rendering context")
	// ErrCancelled reports a load whose scene generation ended before it completed.
	ErrCancelled = errors.New("load cancelled")
)

func notFound(kind Kind, h Handle) error {
	return fmt.Errorf("%s %s: %w", kind, h, ErrNotFound)
}

// wrapLoadErr tags err as a load failure unless it already describes a
// cancellation, which callers treat differently.
func wrapLoadErr(kind Kind, key string, err error) error {
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrLoadFailure) {
		return err
	}
	return fmt.Errorf("%s %q: %w: %w", kind, key, ErrLoadFailure, err)
}
