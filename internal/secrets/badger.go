package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// BadgerConfig holds settings for the embedded badger backend.
type BadgerConfig struct {
	// Path is ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// BadgerBackend stores sealed blobs in an embedded badger database.
type BadgerBackend struct {
	db *badger.DB
}

// badgerLogger routes badger's own logging through logrus.
type badgerLogger struct {
	entry *logrus.Entry
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.entry.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.entry.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.entry.Debugf(format, args...) }

// NewBadgerBackend opens (creating when needed) a badger database.
func NewBadgerBackend(cfg BadgerConfig) (*BadgerBackend, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent badger database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{entry: logrus.WithField("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return out, nil
}

func (b *BadgerBackend) Put(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger set: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete: %w", err)
	}
	return nil
}

func (b *BadgerBackend) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
