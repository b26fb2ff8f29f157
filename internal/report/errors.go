package report

import (
	"errors"
	"fmt"
)

// ErrExport matches every ExportError via errors.Is.
var ErrExport = errors.New("export failed")

// ExportError reports that a scan could not be turned into a document. It never
// affects stored data.
type ExportError struct {
	ScanID string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export of scan %s failed: %v", e.ScanID, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func (e *ExportError) Is(target error) bool {
	return target == ErrExport
}
