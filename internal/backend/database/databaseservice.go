package database

import "context"

// ScanStore is the durable, ordered scan collection of one namespace.
type ScanStore interface {
	// Append adds the record to the end of the collection as a single atomic step.
	Append(ctx context.Context, record *ScanRecord) error
	// ListAll returns every record in insertion order; an empty collection yields an empty slice.
	ListAll(ctx context.Context) ([]*ScanRecord, error)
	// GetByID returns ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*ScanRecord, error)
	Close() error
}
