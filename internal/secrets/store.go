// Package secrets implements the confidential key/value store that holds
// project credentials and rule records. Every value is sealed with AES-GCM
// before it reaches a backend, so no backend ever sees plaintext.
package secrets

import (
	"context"
	"errors"
	"fmt"

	apperrors "supamon-backend/internal/errors"
)

// ErrNotFound is returned by backends and the Store when a key is absent.
var ErrNotFound = apperrors.ErrNotFound

// Backend persists opaque blobs by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Store seals values on write and opens them on read.
type Store struct {
	backend Backend
	sealer  *Sealer
}

// NewStore wraps backend with encryption keyed by secret.
func NewStore(backend Backend, secret string) (*Store, error) {
	if backend == nil {
		return nil, errors.New("secret store backend is nil")
	}
	sealer, err := NewSealer(secret)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, sealer: sealer}, nil
}

// Get returns the plaintext stored under key. Absent keys yield ErrNotFound;
// blobs that fail authentication yield ErrStorageCorrupt.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.sealer.Open(key, sealed)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageCorrupt, fmt.Sprintf("open %s", key))
	}
	return plain, nil
}

// Set seals and stores value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.sealer.Seal(key, value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.backend.Put(ctx, key, sealed)
}

// Delete removes key; deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Ping checks that the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
