package payments

import (
	"errors"
	"fmt"

	"paymanager/internal/settings"
)

// DuplicateMessage is shown to the user when a name is already taken.
const DuplicateMessage = "A payment with this name already exists, please use another name."

var (
	ErrNotFound = errors.New("payment not found")
	// ErrDirtySchema means a migration stopped halfway and needs fixing by hand.
	ErrDirtySchema = errors.New("schema migration left dirty")
)

// DuplicateKeyError is returned by Create when the name is already stored.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string { return DuplicateMessage }

func (e *DuplicateKeyError) Unwrap() error { return settings.ErrDuplicateKey }

// PersistenceError wraps any other store failure.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s payments: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s payment %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ParseError reports a stored value that could not be decoded.
type ParseError struct {
	Key string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode payment %q: %v", e.Key, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
