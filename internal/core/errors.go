package core

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField         = errors.New("missing field")
	ErrUnsupportedImageType = errors.New("unsupported image type")
	ErrUnsupportedScanType  = errors.New("unsupported scan type")
	ErrUnsupportedRegion    = errors.New("unsupported region")
	ErrImageTooLarge        = errors.New("image too large")
	ErrImageDimensions      = errors.New("image dimensions too large")
)

// ValidationError rejects an upload candidate. Reason is one of the Err* sentinels
// above; nothing is stored when it is returned.
type ValidationError struct {
	Field  string
	Reason error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}
