package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Dir stores each blob as <dir>/<id>.bin next to a <id>.json metadata file.
type Dir struct {
	dir     string
	maxSize int64
}

func NewDir(dir string, maxSize int64) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Dir{dir: dir, maxSize: maxSize}, nil
}

func (d *Dir) paths(id string) (string, string, error) {
	if id == "" || filepath.Base(id) != id {
		return "", "", ErrBlobNotFound
	}
	return filepath.Join(d.dir, id+".bin"), filepath.Join(d.dir, id+".json"), nil
}

func (d *Dir) Put(_ context.Context, meta Metadata, content io.Reader) (*Metadata, error) {
	meta, data, err := prepare(meta, content, d.maxSize)
	if err != nil {
		return nil, err
	}
	binPath, metaPath, _ := d.paths(meta.ID)

	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(binPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if err := os.WriteFile(metaPath, raw, 0o600); err != nil {
		os.Remove(binPath)
		return nil, fmt.Errorf("write metadata: %w", err)
	}
	return &meta, nil
}

func (d *Dir) readMeta(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	return &meta, nil
}

func (d *Dir) Get(_ context.Context, id string) (io.ReadCloser, *Metadata, error) {
	binPath, metaPath, err := d.paths(id)
	if err != nil {
		return nil, nil, err
	}
	meta, err := d.readMeta(metaPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(binPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, meta, nil
}

func (d *Dir) Delete(_ context.Context, id string) error {
	binPath, metaPath, err := d.paths(id)
	if err != nil {
		return err
	}
	if err := os.Remove(metaPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBlobNotFound
		}
		return err
	}
	if err := os.Remove(binPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *Dir) DeleteByPatient(ctx context.Context, patientID string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(d.dir, "*.json"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, path := range matches {
		meta, err := d.readMeta(path)
		if err != nil || meta.PatientID != patientID {
			continue
		}
		if err := d.Delete(ctx, meta.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
