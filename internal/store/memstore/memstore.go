// Package memstore is an in-memory store.Store. It keeps documents in
// insertion order and lets tests inject failures.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/store"
)

// Doc is a stored user document. A nil Credential means the field is absent.
type Doc struct {
	Key        any
	Identifier string
	Credential *string
	Profile    map[string]any
}

type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
	runs        []store.Run
	closer      store.CloseOnce
	closeCalls  int
	// LedgerErr, when set, is returned by every ledger write.
	LedgerErr error
}

func New() *Store {
	return &Store{collections: make(map[string]*Collection)}
}

// Reopen returns a new, open handle on the same collections, as a second
// connection to the same database would be. Ledger entries are not shared.
func (s *Store) Reopen() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Store{collections: s.collections}
}

// Seed creates (or extends) a collection with docs.
func (s *Store) Seed(name string, docs ...Doc) *Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &Collection{name: name, failUpdate: make(map[any]error)}
		s.collections[name] = c
	}
	c.mu.Lock()
	c.docs = append(c.docs, docs...)
	c.mu.Unlock()
	return c
}

func (s *Store) Collection(name string) (store.Collection, error) {
	if s.closer.Closed() {
		return nil, common.ErrAlreadyClosed
	}
	return s.Seed(name), nil
}

func (s *Store) Ledger() store.Ledger {
	return ledger{s: s}
}

func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closeCalls++
	s.mu.Unlock()
	return s.closer.Do(func() error { return nil })
}

// Closed reports whether the store was released.
func (s *Store) Closed() bool { return s.closer.Closed() }

// CloseCalls counts Close invocations, including rejected repeats.
func (s *Store) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeCalls
}

// Runs returns the ledger entries written so far.
func (s *Store) Runs() []store.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Run(nil), s.runs...)
}

type ledger struct{ s *Store }

func (l ledger) Record(ctx context.Context, run store.Run) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	if l.s.LedgerErr != nil {
		return l.s.LedgerErr
	}
	l.s.runs = append(l.s.runs, run)
	return nil
}

type Collection struct {
	name       string
	mu         sync.Mutex
	docs       []Doc
	failUpdate map[any]error
	scanErr    error
	updates    int
}

func (c *Collection) Name() string { return c.name }

// FailUpdate makes every update of key return err.
func (c *Collection) FailUpdate(key any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failUpdate[key] = err
}

// FailScan makes Each return err before yielding anything.
func (c *Collection) FailScan(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanErr = err
}

// Doc returns a copy of the document stored under key.
func (c *Collection) Doc(key any) (Doc, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.Key == key {
			return d, true
		}
	}
	return Doc{}, false
}

// Updates counts successful credential writes.
func (c *Collection) Updates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

func (c *Collection) Each(ctx context.Context, batchSize int, fn func(store.Record) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	c.mu.Lock()
	if c.scanErr != nil {
		c.mu.Unlock()
		return c.scanErr
	}
	c.mu.Unlock()

	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		if offset >= len(c.docs) {
			c.mu.Unlock()
			return nil
		}
		end := min(offset+batchSize, len(c.docs))
		batch := make([]store.Record, 0, end-offset)
		for _, d := range c.docs[offset:end] {
			r := store.Record{Key: d.Key, Identifier: d.Identifier}
			if d.Credential != nil {
				r.Credential = *d.Credential
				r.HasCredential = true
			}
			batch = append(batch, r)
		}
		c.mu.Unlock()

		for _, r := range batch {
			if err := fn(r); err != nil {
				return err
			}
		}
	}
}

func (c *Collection) UpdateCredential(ctx context.Context, key any, old string, hadOld bool, hashed string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err, ok := c.failUpdate[key]; ok {
		return err
	}
	for i := range c.docs {
		d := &c.docs[i]
		if d.Key != key {
			continue
		}
		if (d.Credential != nil) != hadOld || (d.Credential != nil && *d.Credential != old) {
			return common.ErrVersionConflict
		}
		v := hashed
		d.Credential = &v
		c.updates++
		return nil
	}
	return common.ErrorNotFound
}
