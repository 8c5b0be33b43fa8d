// Package store describes the document store the migrator works against:
// a Store is one acquired connection, handing out Collection handles and a
// Ledger for run summaries.
package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/common"
)

// Record is the part of a user document the migrator reads. Everything else
// in the document is left alone.
type Record struct {
	// Key identifies the document inside its collection (Mongo _id, SQL id).
	Key any
	// Identifier is the user's unique login, normally the email.
	Identifier string
	// Credential is the stored password or hash.
	Credential string
	// HasCredential is false when the field is absent or null.
	HasCredential bool
	// Err is set when the document could not be decoded into a Record.
	Err error
}

// Collection is a handle to one collection (or table) of user records.
type Collection interface {
	Name() string

	// Each streams every record to fn in the store's natural order, fetching
	// batchSize records at a time. A non-nil error from fn stops the scan and
	// is returned as is.
	Each(ctx context.Context, batchSize int, fn func(Record) error) error

	// UpdateCredential replaces the credential of the record identified by
	// key, provided it still holds old (hadOld false means the field was
	// absent). Otherwise it returns common.ErrVersionConflict.
	UpdateCredential(ctx context.Context, key any, old string, hadOld bool, hashed string) error
}

// Run is the persisted summary of migrating one collection.
type Run struct {
	RunID         string
	Target        string
	Collection    string
	TotalScanned  int
	TotalUpdated  int
	AlreadyHashed int
	TotalSkipped  int
	TotalFailed   int
	Aborted       bool
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time
	FailedRecords []string
}

// Ledger keeps a history of migration runs next to the migrated data.
type Ledger interface {
	Record(ctx context.Context, run Run) error
}

// Store is one connection to the backing database.
type Store interface {
	Collection(name string) (Collection, error)
	Ledger() Ledger
	// Close releases the connection. Only the first call reaches the
	// backend; later calls return common.ErrAlreadyClosed.
	Close(ctx context.Context) error
}

// CloseOnce guards a backend's disconnect so it happens exactly once.
type CloseOnce struct {
	once   sync.Once
	closed atomic.Bool
}

// Do runs fn on the first call only.
func (c *CloseOnce) Do(fn func() error) error {
	err := common.ErrAlreadyClosed
	c.once.Do(func() {
		c.closed.Store(true)
		err = fn()
	})
	return err
}

// Closed reports whether Do has been called.
func (c *CloseOnce) Closed() bool {
	return c.closed.Load()
}
