package e

import (
	"context"
	"errors"
	"fmt"
)

func Wrap(message string, err error) error {
	return fmt.Errorf("%s: %w", message, err)
}

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrDeadline         = errors.New("deadline exceeded")
	ErrCanceled         = errors.New("context canceled")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNoLocation       = errors.New("no location obtainable")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrNotRegistered    = errors.New("connection not registered")
	ErrMalformedEvent   = errors.New("malformed event")
	ErrMissingRequired  = errors.New("missing required field")
)

func WrapError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrDeadline)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, ErrCanceled)
	}
	if errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNoLocation) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrNotRegistered) ||
		errors.Is(err, ErrMissingRequired) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, ErrInternal)
}
