// Package apperr defines the error taxonomy shared by the retrieval pipeline.
package apperr

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter marks caller mistakes: bad segmentation config, empty
// questions, non-positive topK.
var ErrInvalidParameter = errors.New("invalid parameter")

// InvalidParameter returns an error wrapping ErrInvalidParameter.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// ProviderError reports a failed call to an embedding or generation service.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err. A nil err yields nil.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// IndexError reports an unavailable vector index or a failed upsert/query.
type IndexError struct {
	Backend string
	Op      string
	Err     error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// NewIndexError wraps err. A nil err yields nil.
func NewIndexError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *IndexError
	if errors.As(err, &ie) {
		return err
	}
	return &IndexError{Backend: backend, Op: op, Err: err}
}

// IsInvalidParameter reports whether err wraps ErrInvalidParameter.
func IsInvalidParameter(err error) bool {
	return errors.Is(err, ErrInvalidParameter)
}

// IsProvider reports whether err contains a *ProviderError.
func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// IsIndex reports whether err contains an *IndexError.
func IsIndex(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}
