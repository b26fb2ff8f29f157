package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS scans (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	collection   TEXT NOT NULL,
	id           TEXT NOT NULL UNIQUE,
	patient_name TEXT NOT NULL,
	patient_id   TEXT NOT NULL,
	scan_type    TEXT NOT NULL,
	region       TEXT NOT NULL,
	image_url    TEXT NOT NULL,
	upload_date  TEXT NOT NULL,
	image_type   TEXT NOT NULL,
	image        BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_collection_seq ON scans (collection, seq);`

type SQLiteDatabase struct {
	db        *sql.DB
	namespace string
}

func NewSQLiteDatabase(ctx context.Context, connectionString, namespace string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, storageError("open", err)
	}
	// one connection: a single writer, and ":memory:" stays one database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteDatabase{db: db, namespace: namespace}
	if err := s.createDatabase(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDatabase) createDatabase(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return storageError("init", fmt.Errorf("failed to execute %q: %w", pragma, err))
		}
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return storageError("init", fmt.Errorf("failed to create schema: %w", err))
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) Append(ctx context.Context, r *ScanRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans
		(collection, id, patient_name, patient_id, scan_type, region, image_url, upload_date, image_type, image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.namespace, r.ID, r.PatientName, r.PatientID, r.ScanType, r.Region, r.ImageURL,
		r.UploadDate.UTC().Format(time.RFC3339Nano), r.ImageType, r.Image,
	)
	return storageError("append", err)
}

const sqliteColumns = `id, patient_name, patient_id, scan_type, region, image_url, upload_date, image_type, image`

func (s *SQLiteDatabase) ListAll(ctx context.Context) ([]*ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM scans WHERE collection = ? ORDER BY seq`, s.namespace)
	if err != nil {
		return nil, storageError("list", err)
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	records := make([]*ScanRecord, 0)
	for rows.Next() {
		r, err := scanSQLiteRow(rows)
		if err != nil {
			return nil, storageError("list", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("list", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) GetByID(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM scans WHERE collection = ? AND id = ?`, s.namespace, id)
	r, err := scanSQLiteRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("get", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRow(row rowScanner) (*ScanRecord, error) {
	var r ScanRecord
	var uploadDate string
	if err := row.Scan(&r.ID, &r.PatientName, &r.PatientID, &r.ScanType, &r.Region,
		&r.ImageURL, &uploadDate, &r.ImageType, &r.Image); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, uploadDate)
	if err != nil {
		return nil, fmt.Errorf("invalid upload date %q for scan %s: %w", uploadDate, r.ID, err)
	}
	r.UploadDate = t
	return &r, nil
}
