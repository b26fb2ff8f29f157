package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestRecord(i int) *ScanRecord {
	id := NewID()
	return &ScanRecord{
		ID:          id,
		PatientName: fmt.Sprintf("Patient %d", i),
		PatientID:   fmt.Sprintf("P-%03d", i),
		ScanType:    "RGB",
		Region:      "Upper Arch",
		ImageURL:    "/scans/" + id + "/image",
		UploadDate:  time.Date(2024, 5, 1, 10, 0, i, 123000, time.UTC),
		ImageType:   "image/png",
		Image:       []byte{0x89, 'P', 'N', 'G', byte(i)},
	}
}

func assertSameRecord(t *testing.T, want, got *ScanRecord) {
	t.Helper()
	if got.ID != want.ID || got.PatientName != want.PatientName || got.PatientID != want.PatientID ||
		got.ScanType != want.ScanType || got.Region != want.Region || got.ImageURL != want.ImageURL ||
		got.ImageType != want.ImageType {
		t.Fatalf("record mismatch:\nwant %+v\ngot  %+v", want, got)
	}
	if !got.UploadDate.Equal(want.UploadDate) {
		t.Fatalf("upload date mismatch: want %v, got %v", want.UploadDate, got.UploadDate)
	}
	if !bytes.Equal(got.Image, want.Image) {
		t.Fatalf("image bytes mismatch for %s", want.ID)
	}
}

// runScanStoreContract checks the behaviour every ScanStore backend must share.
func runScanStoreContract(t *testing.T, newStore func(t *testing.T) ScanStore) {
	t.Run("EmptyListIsNotAnError", func(t *testing.T) {
		s := newStore(t)
		records, err := s.ListAll(context.Background())
		if err != nil {
			t.Fatalf("ListAll error: %v", err)
		}
		if records == nil || len(records) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", records)
		}
	})

	t.Run("InsertionOrderPreserved", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		var want []*ScanRecord
		for i := 0; i < 5; i++ {
			r := newTestRecord(i)
			if err := s.Append(ctx, r); err != nil {
				t.Fatalf("Append #%d error: %v", i, err)
			}
			want = append(want, r)
		}
		got, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll error: %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("expected %d records, got %d", len(want), len(got))
		}
		for i := range want {
			assertSameRecord(t, want[i], got[i])
		}
		// reads do not reorder
		again, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("second ListAll error: %v", err)
		}
		for i := range want {
			if again[i].ID != want[i].ID {
				t.Fatalf("order changed between reads at %d", i)
			}
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first, second := newTestRecord(1), newTestRecord(2)
		for _, r := range []*ScanRecord{first, second} {
			if err := s.Append(ctx, r); err != nil {
				t.Fatalf("Append error: %v", err)
			}
		}
		got, err := s.GetByID(ctx, second.ID)
		if err != nil {
			t.Fatalf("GetByID error: %v", err)
		}
		assertSameRecord(t, second, got)

		if _, err := s.GetByID(ctx, "non-existent-id"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DuplicateIDRejected", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		r := newTestRecord(1)
		if err := s.Append(ctx, r); err != nil {
			t.Fatalf("Append error: %v", err)
		}
		err := s.Append(ctx, r)
		if !errors.Is(err, ErrStorage) {
			t.Fatalf("expected storage error for duplicate id, got %v", err)
		}
		records, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record after rejected duplicate, got %d", len(records))
		}
	})

	t.Run("ConcurrentAppendsAreNotLost", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		const n = 40
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- s.Append(ctx, newTestRecord(i))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent Append error: %v", err)
			}
		}
		records, err := s.ListAll(ctx)
		if err != nil {
			t.Fatalf("ListAll error: %v", err)
		}
		if len(records) != n {
			t.Fatalf("expected %d records, got %d", n, len(records))
		}
	})
}
