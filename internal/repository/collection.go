// Package repository keeps ordered record collections in the secret store,
// one JSON array blob per collection.
//
// Each Collection serializes its read-modify-write cycles behind a mutex, so
// concurrent callers in one process never lose updates. Two processes sharing
// a backend are still last-write-wins over the whole blob; the service assumes
// a single writer process.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	apperrors "supamon-backend/internal/errors"
)

// Record is anything with a stable identifier.
type Record interface {
	RecordID() string
}

// SecretStore is the confidential blob store collections persist into.
type SecretStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Collection is an ordered list of records stored under a single key.
type Collection[T Record] struct {
	store SecretStore
	key   string
	mu    sync.Mutex
}

// NewCollection returns a collection persisted under key.
func NewCollection[T Record](store SecretStore, key string) *Collection[T] {
	return &Collection[T]{store: store, key: key}
}

// Key returns the storage key of the collection.
func (c *Collection[T]) Key() string {
	return c.key
}

// load returns the stored records. Absent or undecodable state yields an empty
// list; only an unreachable store is reported as an error.
func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, err := c.store.Get(ctx, c.key)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrNotFound):
		return []T{}, nil
	case errors.Is(err, apperrors.ErrStorageCorrupt):
		c.logCorrupt(err)
		return []T{}, nil
	default:
		return nil, apperrors.Wrap(err, apperrors.CodeStorageUnavailable, fmt.Sprintf("load %s", c.key))
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		c.logCorrupt(err)
		return []T{}, nil
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

func (c *Collection[T]) logCorrupt(err error) {
	logrus.WithFields(logrus.Fields{
		"collection": c.key,
		"code":       apperrors.CodeStorageCorrupt,
	}).Warnf("Discarding unreadable collection state: %v", err)
}

func (c *Collection[T]) save(ctx context.Context, records []T) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	if err := c.store.Set(ctx, c.key, raw); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageUnavailable, fmt.Sprintf("save %s", c.key))
	}
	return nil
}

// List returns records accepted by keep (all records when keep is nil), in stored order.
func (c *Collection[T]) List(ctx context.Context, keep func(T) bool) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if keep == nil {
		return records, nil
	}
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns the first record with id; ok is false when there is none.
func (c *Collection[T]) Get(ctx context.Context, id string) (record T, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return record, false, err
	}
	for _, r := range records {
		if r.RecordID() == id {
			return r, true, nil
		}
	}
	return record, false, nil
}

// Upsert replaces the record with the same id in place, or appends it.
func (c *Collection[T]) Upsert(ctx context.Context, record T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range records {
		if records[i].RecordID() == record.RecordID() {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	return c.save(ctx, records)
}

// Remove drops every record with id. Absent ids leave the store untouched.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if r.RecordID() != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	return c.save(ctx, kept)
}

// Update applies mutate to the first record with id and writes the set back.
// It reports false, without writing, when the id is absent.
func (c *Collection[T]) Update(ctx context.Context, id string, mutate func(*T)) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	for i := range records {
		if records[i].RecordID() == id {
			mutate(&records[i])
			return true, c.save(ctx, records)
		}
	}
	return false, nil
}
