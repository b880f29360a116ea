package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"
)

// Collection holds one kind of record, cached in memory and written through
// to a single JSON file. Writes replace the file atomically: the new contents
// are written to a side file which is then renamed over the original, so a
// crash mid-write never leaves a torn collection.
type Collection[T any] struct {
	path string

	// mu serializes read-modify-write cycles. Holding it across the whole
	// Update call is what closes the last-writer-wins hazard between
	// concurrent mutators of the same collection.
	mu sync.RWMutex

	recs []T
}

// openCollection loads the collection file at path, creating an empty one if
// it does not exist yet.
func openCollection[T any](path string) (*Collection[T], error) {
	c := &Collection[T]{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := c.persist(nil); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &c.recs); err != nil {
		return nil, fmt.Errorf("collection %s is corrupt: %w", path, err)
	}

	return c, nil
}

// Snapshot returns a copy of the current records. Callers may read it freely;
// mutating it has no effect on the collection.
func (c *Collection[T]) Snapshot() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.recs)
}

// Update runs fn on a copy of the current records and durably replaces the
// collection with fn's result. The collection lock is held for the entire
// cycle, so concurrent Update calls never base their result on a stale
// snapshot. If fn returns an error the update is aborted and nothing is
// written; the error is returned unchanged.
func (c *Collection[T]) Update(fn func(recs []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fn(slices.Clone(c.recs))
	if err != nil {
		return err
	}

	if err := c.persist(next); err != nil {
		return err
	}

	c.recs = next
	return nil
}

// persist marshals recs and atomically replaces the collection file.
func (c *Collection[T]) persist(recs []T) error {
	if recs == nil {
		recs = []T{}
	}

	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", c.path, err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write collection %s: %w", c.path, err)
	}

	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to replace collection %s: %w", c.path, err)
	}

	return nil
}
