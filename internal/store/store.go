// Package store implements the keyed record store the attendance core runs on:
// JSON records addressed by slash-separated paths, generated push keys, and
// optimistic compare-and-retry transactions scoped to a single path.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists at a path.
var ErrNotFound = errors.New("record not found")

// ErrInvalidPath is returned for empty paths or paths with empty segments.
var ErrInvalidPath = errors.New("invalid record path")

// ErrAbort may be returned from a transaction function to end the
// transaction without writing anything.
var ErrAbort = errors.New("transaction aborted")

// ErrTooManyRetries is returned when a transaction keeps losing the
// compare-and-swap race.
var ErrTooManyRetries = errors.New("transaction retry limit exceeded")

// DefaultMaxRetries bounds the compare-and-retry loop of Transaction.
const DefaultMaxRetries = 25

// Record is a stored value together with its version. The version changes on
// every write and is what compare-and-swap compares against.
type Record struct {
	Value   []byte
	Version int64
}

// Backend is the storage primitive a Store is built on. Implementations must
// make Insert and Swap atomic with respect to each other for the same path.
type Backend interface {
	// Load returns the record at path, or found=false.
	Load(ctx context.Context, path string) (rec Record, found bool, err error)
	// Insert writes value only if nothing exists at path.
	Insert(ctx context.Context, path string, value []byte) (ok bool, err error)
	// Swap replaces the record only if its version still equals version.
	Swap(ctx context.Context, path string, version int64, value []byte) (ok bool, err error)
	// Put writes value unconditionally.
	Put(ctx context.Context, path string, value []byte) error
	// Merge shallow-merges the top-level keys of the JSON object fields into
	// the record at path, creating it if absent.
	Merge(ctx context.Context, path string, fields []byte) error
	// Remove deletes the record at path. Removing a missing record is not an error.
	Remove(ctx context.Context, path string) error
}

// Store is the keyed record store.
type Store struct {
	backend    Backend
	maxRetries int
	newKey     func() (string, error)
}

// Option configures a Store.
type Option func(*Store)

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// New constructs a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		maxRetries: DefaultMaxRetries,
		newKey:     pushKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pushKey generates a time-ordered unique key, so children of one parent
// sort by creation.
func pushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return id.String(), nil
}

// Join builds a record path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

func validPath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// Get decodes the record at path into dst.
func (s *Store) Get(ctx context.Context, path string, dst any) error {
	if err := validPath(path); err != nil {
		return err
	}
	rec, found, err := s.backend.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	if !found {
		return ErrNotFound
	}
	if err := json.Unmarshal(rec.Value, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Set overwrites the record at path with v.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	if err := validPath(path); err != nil {
		return err
	}
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := s.backend.Put(ctx, path, value); err != nil {
		return fmt.Errorf("put %s: %w", path, err)
	}
	return nil
}

// Update merges fields into the top level of the record at path.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := validPath(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	value, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := s.backend.Merge(ctx, path, value); err != nil {
		return fmt.Errorf("merge %s: %w", path, err)
	}
	return nil
}

// Delete removes the record at path.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := validPath(path); err != nil {
		return err
	}
	if err := s.backend.Remove(ctx, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Push writes v under a newly generated child key of parent and returns the key.
func (s *Store) Push(ctx context.Context, parent string, v any) (string, error) {
	if err := validPath(parent); err != nil {
		return "", err
	}
	key, err := s.newKey()
	if err != nil {
		return "", err
	}
	value, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", parent, err)
	}
	path := Join(parent, key)
	ok, err := s.backend.Insert(ctx, path, value)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", path, err)
	}
	if !ok {
		return "", fmt.Errorf("insert %s: key already exists", path)
	}
	return key, nil
}

// Transaction atomically replaces the record at path with fn(current).
//
// fn receives nil when no record exists and must be a pure function of its
// input: it is called again with the fresh value whenever another writer
// changed the record between load and swap. Returning ErrAbort leaves the
// record untouched and reports committed=false with a nil error; any other
// error from fn is returned as is.
func (s *Store) Transaction(ctx context.Context, path string, fn func(current []byte) ([]byte, error)) (bool, error) {
	if err := validPath(path); err != nil {
		return false, err
	}
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		rec, found, err := s.backend.Load(ctx, path)
		if err != nil {
			return false, fmt.Errorf("load %s: %w", path, err)
		}
		var current []byte
		if found {
			current = rec.Value
		}

		next, err := fn(current)
		if errors.Is(err, ErrAbort) {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		var ok bool
		if found {
			ok, err = s.backend.Swap(ctx, path, rec.Version, next)
		} else {
			ok, err = s.backend.Insert(ctx, path, next)
		}
		if err != nil {
			return false, fmt.Errorf("commit %s: %w", path, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, fmt.Errorf("%s: %w", path, ErrTooManyRetries)
}
