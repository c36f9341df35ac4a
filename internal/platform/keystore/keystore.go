// Package keystore persists small JSON documents under well-known keys.
// Every value is replaced wholesale; there are no partial updates.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Well-known keys.
const (
	KeyPatients = "patients"
	KeyUsers    = "users"
	KeyToken    = "token"
)

var ErrKeyNotFound = errors.New("keystore: key not found")

// Store is a key/value store for whole JSON documents.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("keystore: key is required")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("keystore: invalid key %q", key)
	}
	return nil
}
