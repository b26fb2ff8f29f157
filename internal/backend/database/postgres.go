package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS scans (
	seq          BIGSERIAL PRIMARY KEY,
	collection   TEXT NOT NULL,
	id           TEXT NOT NULL UNIQUE,
	patient_name TEXT NOT NULL,
	patient_id   TEXT NOT NULL,
	scan_type    TEXT NOT NULL,
	region       TEXT NOT NULL,
	image_url    TEXT NOT NULL,
	upload_date  TIMESTAMPTZ NOT NULL,
	image_type   TEXT NOT NULL,
	image        BYTEA NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_collection_seq ON scans (collection, seq);`

type PostgresDatabase struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewPostgresDatabase(ctx context.Context, connectionString, namespace string) (*PostgresDatabase, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, storageError("open", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storageError("open", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, storageError("init", fmt.Errorf("failed to create schema: %w", err))
	}
	return &PostgresDatabase{pool: pool, namespace: namespace}, nil
}

func (s *PostgresDatabase) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresDatabase) Append(ctx context.Context, r *ScanRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scans
		(collection, id, patient_name, patient_id, scan_type, region, image_url, upload_date, image_type, image)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.namespace, r.ID, r.PatientName, r.PatientID, r.ScanType, r.Region, r.ImageURL,
		r.UploadDate.UTC(), r.ImageType, r.Image,
	)
	return storageError("append", err)
}

const postgresColumns = `id, patient_name, patient_id, scan_type, region, image_url, upload_date, image_type, image`

func (s *PostgresDatabase) ListAll(ctx context.Context) ([]*ScanRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresColumns+` FROM scans WHERE collection = $1 ORDER BY seq`, s.namespace)
	if err != nil {
		return nil, storageError("list", err)
	}
	defer rows.Close()

	records := make([]*ScanRecord, 0)
	for rows.Next() {
		r, err := scanPostgresRow(rows)
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

func (s *PostgresDatabase) GetByID(ctx context.Context, id string) (*ScanRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresColumns+` FROM scans WHERE collection = $1 AND id = $2`, s.namespace, id)
	r, err := scanPostgresRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("get", err)
	}
	return r, nil
}

func scanPostgresRow(row pgx.Row) (*ScanRecord, error) {
	var r ScanRecord
	if err := row.Scan(&r.ID, &r.PatientName, &r.PatientID, &r.ScanType, &r.Region,
		&r.ImageURL, &r.UploadDate, &r.ImageType, &r.Image); err != nil {
		return nil, err
	}
	r.UploadDate = r.UploadDate.UTC()
	return &r, nil
}
