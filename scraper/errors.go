package scraper

import (
	"context"
	"errors"
	"fmt"
)

// ErrDetailTimeout indicates a detail session did not stabilise in time.
type ErrDetailTimeout struct {
	Err error
}

func (e ErrDetailTimeout) Error() string {
	return fmt.Errorf("detail timeout: %w", e.Err).Error()
}

func (e ErrDetailTimeout) Unwrap() error {
	return e.Err
}

// ErrNavigation indicates a detail session could not be opened or navigated.
type ErrNavigation struct {
	Err error
}

func (e ErrNavigation) Error() string {
	return fmt.Errorf("navigation: %w", e.Err).Error()
}

func (e ErrNavigation) Unwrap() error {
	return e.Err
}

// ErrListing indicates the listing surface itself failed, which ends the
// traversal rather than a single item.
type ErrListing struct {
	Err error
}

func (e ErrListing) Error() string {
	return fmt.Errorf("listing: %w", e.Err).Error()
}

func (e ErrListing) Unwrap() error {
	return e.Err
}

func classifyItemError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrDetailTimeout{Err: err}
	}
	var timeout ErrDetailTimeout
	if errors.As(err, &timeout) {
		return err
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return err
	}
	return ErrNavigation{Err: err}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var timeout ErrDetailTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var nav ErrNavigation
	if errors.As(err, &nav) {
		return "navigation"
	}
	var listing ErrListing
	if errors.As(err, &listing) {
		return "listing"
	}
	return "other"
}
