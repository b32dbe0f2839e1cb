// internal/common/database/badger.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quiz-recommender/internal/common/config"

	"github.com/dgraph-io/badger/v4"
)

// BadgerClient is an embedded key-value store for device-local state.
type BadgerClient struct {
	DB *badger.DB
}

// OpenBadger opens the store at cfg.Path, or an in-memory store when cfg.InMemory is set.
func OpenBadger(cfg config.BadgerConfig) (*BadgerClient, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("badger path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerClient{DB: db}, nil
}

func (c *BadgerClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Get retrieves a value by key; a missing key yields ErrNotFound.
func (c *BadgerClient) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := c.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("badger get %s: %w", key, err)
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set stores value; a positive ttl expires the entry.
func (c *BadgerClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	return c.DB.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		if err := txn.SetEntry(e); err != nil {
			return fmt.Errorf("badger set %s: %w", key, err)
		}
		return nil
	})
}

func (c *BadgerClient) Del(_ context.Context, keys ...string) error {
	return c.DB.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("badger delete %s: %w", k, err)
			}
		}
		return nil
	})
}
