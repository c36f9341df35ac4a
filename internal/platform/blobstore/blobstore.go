// Package blobstore stores uploaded document content. Metadata that the
// dashboard shows lives with the patient record; this package only keeps
// the bytes plus enough metadata to serve them back.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrMissingPatient     = errors.New("patient id is required")
	ErrIncompleteContent  = errors.New("content could not be read")
)

// DefaultMaxSize is used when a store is built with a zero limit.
const DefaultMaxSize = 25 << 20

// AllowedContentTypes matches the upload picker: PDF, Word, JPEG and PNG.
var AllowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/png":  true,
}

type Metadata struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
}

type BlobStore interface {
	Put(ctx context.Context, meta Metadata, content io.Reader) (*Metadata, error)
	Get(ctx context.Context, id string) (io.ReadCloser, *Metadata, error)
	Delete(ctx context.Context, id string) error
	DeleteByPatient(ctx context.Context, patientID string) (int, error)
}

// NormalizeContentType strips parameters ("; charset=...") and lowercases.
func NormalizeContentType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// prepare validates meta and reads at most maxSize bytes of content.
func prepare(meta Metadata, content io.Reader, maxSize int64) (Metadata, []byte, error) {
	if meta.FileName == "" {
		return meta, nil, ErrMissingFileName
	}
	if meta.PatientID == "" {
		return meta, nil, ErrMissingPatient
	}
	meta.ContentType = NormalizeContentType(meta.ContentType)
	if !AllowedContentTypes[meta.ContentType] {
		return meta, nil, fmt.Errorf("%w: %s", ErrInvalidContentType, meta.ContentType)
	}

	data, err := io.ReadAll(io.LimitReader(content, maxSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("%w: %w", ErrIncompleteContent, err)
	}
	if int64(len(data)) > maxSize {
		return meta, nil, ErrFileTooLarge
	}

	sum := sha256.Sum256(data)
	meta.ID = uuid.NewString()
	meta.Size = int64(len(data))
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

type storedBlob struct {
	meta    Metadata
	content []byte
}

// Memory keeps blobs in process memory.
type Memory struct {
	mu      sync.RWMutex
	blobs   map[string]*storedBlob
	maxSize int64
}

func NewMemory(maxSize int64) *Memory {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Memory{blobs: make(map[string]*storedBlob), maxSize: maxSize}
}

func (s *Memory) Put(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content, s.maxSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.blobs[meta.ID] = &storedBlob{meta: meta, content: data}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *Memory) Get(_ context.Context, id string) (io.ReadCloser, *Metadata, error) {
	s.mu.RLock()
	blob, ok := s.blobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := blob.meta
	return io.NopCloser(bytes.NewReader(blob.content)), &meta, nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, id)
	return nil
}

func (s *Memory) DeleteByPatient(_ context.Context, patientID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, b := range s.blobs {
		if b.meta.PatientID == patientID {
			delete(s.blobs, id)
			n++
		}
	}
	return n, nil
}
