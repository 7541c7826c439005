package apperr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers branch on these with errors.Is; the detail
// text is for logs and responses, never for matching.
var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrInvalidQuery         = errors.New("invalid query")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrNotFound             = errors.New("not found")
	ErrStorageUnavailable   = errors.New("storage unavailable")
	ErrDuplicateFile        = errors.New("duplicate file")
	ErrFileTooLarge         = errors.New("file too large")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
)

// New attaches a detail message to a sentinel kind.
func New(kind error, detail string) error {
	return fmt.Errorf("%w: %s", kind, detail)
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Wrap attaches both a kind and an underlying cause. errors.Is matches
// either one, so callers can branch on the kind while still inspecting the
// cause.
func Wrap(kind error, detail string, cause error) error {
	return fmt.Errorf("%w: %s: %w", kind, detail, cause)
}
