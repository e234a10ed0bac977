// Package settings defines the key-value store that holds serialized
// payments. Values are opaque strings; keys are payment names.
package settings

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("setting not found")
	ErrDuplicateKey = errors.New("setting already exists")
)

type (
	// Entry is one stored key and its raw value.
	Entry struct {
		Key   string
		Value string
	}

	// Store is the persistence port. Implementations must be safe for
	// concurrent use.
	Store interface {
		// Init prepares the store. It is idempotent.
		Init(ctx context.Context) error
		// Ping checks the store answers without changing it.
		Ping(ctx context.Context) error
		// Create fails with ErrDuplicateKey when key exists.
		Create(ctx context.Context, key, value string) error
		// Save inserts or replaces.
		Save(ctx context.Context, key, value string) error
		// Get returns ErrNotFound when key is missing.
		Get(ctx context.Context, key string) (string, error)
		// GetAll returns every entry ordered by key.
		GetAll(ctx context.Context) ([]Entry, error)
		// Update replaces an existing value, or returns ErrNotFound.
		Update(ctx context.Context, key, value string) error
		// Delete returns ErrNotFound when key is missing.
		Delete(ctx context.Context, key string) error
		DeleteAll(ctx context.Context) error
	}

	// Versioned is implemented by stores with a migrated schema. dirty is
	// true when a migration failed halfway.
	Versioned interface {
		Version() (version uint, dirty bool, err error)
	}
)
