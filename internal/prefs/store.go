// Package prefs provides the string-keyed preference store that placement
// data is persisted in.
//
// Every backend has the same two-phase shape: Set and Delete stage a change,
// Commit makes every staged change durable before it returns. Reads see staged
// changes. Failures of the underlying storage are reported as errors matching
// ErrStoreUnavailable; there is no retry.
package prefs

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable is matched by every error caused by the underlying
// storage being inaccessible.
var ErrStoreUnavailable = errors.New("preference store unavailable")

// Store is a string key to string value preference store.
type Store interface {
	// Get returns the value for key. ok is false when the key does not exist.
	Get(key string) (value string, ok bool, err error)
	// Set stages value under key.
	Set(key, value string) error
	// Has reports whether key exists.
	Has(key string) (bool, error)
	// Delete stages removal of key.
	Delete(key string) error
	// Commit durably writes all staged changes.
	Commit() error
	// Close releases the store. Staged, uncommitted changes are discarded.
	Close() error
}

// unavailable wraps err so that it matches ErrStoreUnavailable.
func unavailable(op, key string, err error) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%w: %s %q: %v", ErrStoreUnavailable, op, key, err)
}

// errClosed is reported by stores used after Close.
var errClosed = errors.New("store closed")

// staging holds uncommitted changes. A nil value marks a deletion.
type staging map[string]*string

func (s staging) set(key, value string) {
	v := value
	s[key] = &v
}

func (s staging) delete(key string) {
	s[key] = nil
}

// lookup reports the staged state of key: staged is false when nothing is
// staged, otherwise ok tells whether the key exists after commit.
func (s staging) lookup(key string) (value string, ok, staged bool) {
	v, staged := s[key]
	if !staged {
		return "", false, false
	}
	if v == nil {
		return "", false, true
	}
	return *v, true, true
}

func (s staging) reset() {
	for k := range s {
		delete(s, k)
	}
}
