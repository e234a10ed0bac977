// Package payments is the typed repository over the settings store. Each
// payment is stored as JSON under its name.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paymanager/internal/core"
	"paymanager/internal/settings"
)

// Snapshot is the full collection as read at one instant. Records that could
// not be decoded are reported in Skipped instead of failing the read.
type Snapshot struct {
	Payments []core.Payment
	Skipped  []*ParseError
}

type Store struct {
	kv settings.Store
}

func NewStore(kv settings.Store) *Store {
	return &Store{kv: kv}
}

func (s *Store) Init(ctx context.Context) error {
	if err := s.kv.Init(ctx); err != nil {
		return &PersistenceError{Op: "init", Err: err}
	}
	return nil
}

// Ping checks the backend answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.kv.Ping(ctx); err != nil {
		return &PersistenceError{Op: "ping", Err: err}
	}
	return nil
}

// SchemaVersion reports the migration version of a migrated backend. ok is
// false for backends without a schema.
func (s *Store) SchemaVersion() (version uint, ok bool, err error) {
	v, ok := s.kv.(settings.Versioned)
	if !ok {
		return 0, false, nil
	}
	version, dirty, err := v.Version()
	if err != nil {
		return 0, true, &PersistenceError{Op: "schema version", Err: err}
	}
	if dirty {
		return version, true, &PersistenceError{Op: "schema version", Err: fmt.Errorf("%w: version %d", ErrDirtySchema, version)}
	}
	return version, true, nil
}

// Create stores a new payment. A taken name yields *DuplicateKeyError and the
// existing record is left as is.
func (s *Store) Create(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	value, err := Encode(p)
	if err != nil {
		return err
	}
	if err := s.kv.Create(ctx, p.Name, value); err != nil {
		if errors.Is(err, settings.ErrDuplicateKey) {
			return &DuplicateKeyError{Key: p.Name}
		}
		return &PersistenceError{Op: "create", Key: p.Name, Err: err}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, name string) (core.Payment, error) {
	value, err := s.kv.Get(ctx, name)
	if errors.Is(err, settings.ErrNotFound) {
		return core.Payment{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return core.Payment{}, &PersistenceError{Op: "get", Key: name, Err: err}
	}
	return Decode(name, value)
}

// List reads every stored payment.
func (s *Store) List(ctx context.Context) (Snapshot, error) {
	entries, err := s.kv.GetAll(ctx)
	if err != nil {
		return Snapshot{}, &PersistenceError{Op: "list", Err: err}
	}
	snap := Snapshot{Payments: make([]core.Payment, 0, len(entries))}
	for _, e := range entries {
		p, err := Decode(e.Key, e.Value)
		if err != nil {
			var perr *ParseError
			if errors.As(err, &perr) {
				snap.Skipped = append(snap.Skipped, perr)
				continue
			}
			return Snapshot{}, err
		}
		snap.Payments = append(snap.Payments, p)
	}
	return snap, nil
}

// Update overwrites the stored payment named p.Name, stamping updatedAt with
// now, and returns what was written.
func (s *Store) Update(ctx context.Context, p core.Payment, now time.Time) (core.Payment, error) {
	p.UpdatedAt = now
	if p.UpdatedAt.Before(p.CreatedAt) {
		p.UpdatedAt = p.CreatedAt
	}
	if err := p.Validate(); err != nil {
		return core.Payment{}, err
	}
	value, err := Encode(p)
	if err != nil {
		return core.Payment{}, err
	}
	if err := s.kv.Update(ctx, p.Name, value); err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			return core.Payment{}, fmt.Errorf("%w: %s", ErrNotFound, p.Name)
		}
		return core.Payment{}, &PersistenceError{Op: "update", Key: p.Name, Err: err}
	}
	return p, nil
}

// Save upserts p without touching its timestamps.
func (s *Store) Save(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	value, err := Encode(p)
	if err != nil {
		return err
	}
	if err := s.kv.Save(ctx, p.Name, value); err != nil {
		return &PersistenceError{Op: "save", Key: p.Name, Err: err}
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.kv.Delete(ctx, name)
	if errors.Is(err, settings.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return &PersistenceError{Op: "delete", Key: name, Err: err}
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := s.kv.DeleteAll(ctx); err != nil {
		return &PersistenceError{Op: "delete all", Err: err}
	}
	return nil
}
