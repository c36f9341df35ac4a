package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps blobs in the document_blobs table.
type Postgres struct {
	db      queryable
	maxSize int64
}

func NewPostgres(db queryable, maxSize int64) *Postgres {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Postgres{db: db, maxSize: maxSize}
}

func (p *Postgres) Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content, p.maxSize)
	if err != nil {
		return nil, err
	}
	_, err = p.db.Exec(ctx, `
		INSERT INTO document_blobs (id, patient_id, filename, content_type, size, checksum, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		meta.ID, meta.PatientID, meta.FileName, meta.ContentType, meta.Size, meta.Checksum, data, meta.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert blob: %w", err)
	}
	return &meta, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (io.ReadCloser, *Metadata, error) {
	var meta Metadata
	var data []byte
	err := p.db.QueryRow(ctx, `
		SELECT id, patient_id, filename, content_type, size, checksum, data, created_at
		FROM document_blobs WHERE id = $1`, id).
		Scan(&meta.ID, &meta.PatientID, &meta.FileName, &meta.ContentType, &meta.Size, &meta.Checksum, &data, &meta.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("select blob: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), &meta, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM document_blobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlobNotFound
	}
	return nil
}

func (p *Postgres) DeleteByPatient(ctx context.Context, patientID string) (int, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM document_blobs WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, fmt.Errorf("delete patient blobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
