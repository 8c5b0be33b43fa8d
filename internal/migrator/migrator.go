// Package migrator rewrites plaintext passwords stored in user collections
// as bcrypt hashes.
//
// Records are streamed from a store.Collection one at a time. A record whose
// credential already carries the bcrypt marker is left untouched, so a
// second run over the same collection updates nothing. Records without a
// credential receive the caller's default plaintext, or are skipped when
// there is none.
package migrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/hashing"
	"github.com/dmitrijs2005/credmigrator/internal/logging"
	"github.com/dmitrijs2005/credmigrator/internal/store"
)

// Options tune a Migrator.
type Options struct {
	// BatchSize is the number of records fetched per cursor round trip.
	BatchSize int
	// RecordTimeout bounds hashing plus persisting a single record.
	RecordTimeout time.Duration
	// FailFast stops the scan at the first failing record instead of
	// recording the failure and moving on.
	FailFast bool
}

const (
	defaultBatchSize     = 100
	defaultRecordTimeout = 30 * time.Second
)

type outcome int

const (
	outcomeUpdated outcome = iota
	outcomeAlreadyHashed
	outcomeSkipped
)

type Migrator struct {
	hasher hashing.Hasher
	logger logging.Logger
	opts   Options
	now    func() time.Time
}

func New(hasher hashing.Hasher, logger logging.Logger, opts Options) *Migrator {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = defaultRecordTimeout
	}
	return &Migrator{hasher: hasher, logger: logger, opts: opts, now: time.Now}
}

// Migrate hashes every plaintext credential of coll. defaultPlaintext, when
// non-nil and non-empty, is hashed into records that have no credential.
//
// The returned report is never nil. The error is non-nil only when the scan
// was aborted: the store failed, ctx was cancelled, or FailFast is set and a
// record failed. Isolated record failures are listed in Report.Failures.
func (m *Migrator) Migrate(ctx context.Context, coll store.Collection, defaultPlaintext *string) (*Report, error) {
	log := m.logger.With("collection", coll.Name())
	report := &Report{Collection: coll.Name(), StartedAt: m.now()}

	if defaultPlaintext != nil && *defaultPlaintext == "" {
		defaultPlaintext = nil
	}

	log.Info(ctx, "migrating collection", "default_plaintext", defaultPlaintext != nil, "fail_fast", m.opts.FailFast)

	err := coll.Each(ctx, m.opts.BatchSize, func(rec store.Record) error {
		report.TotalScanned++

		res, err := m.migrateRecord(ctx, coll, rec, defaultPlaintext)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			f := Failure{Key: rec.Key, Identifier: rec.Identifier, Err: err}
			report.Failures = append(report.Failures, f)
			log.Warn(ctx, "record not migrated", "record", f.Label(), "error", err)
			if m.opts.FailFast {
				return fmt.Errorf("record %s: %w", f.Label(), err)
			}
			return nil
		}

		switch res {
		case outcomeUpdated:
			report.TotalUpdated++
			log.Debug(ctx, "credential hashed", "record", rec.Identifier)
		case outcomeAlreadyHashed:
			report.AlreadyHashed++
		case outcomeSkipped:
			report.TotalSkipped++
			log.Debug(ctx, "record has no credential, skipped", "record", rec.Identifier)
		}
		return nil
	})

	report.FinishedAt = m.now()

	summary := []any{
		"scanned", report.TotalScanned,
		"updated", report.TotalUpdated,
		"already_hashed", report.AlreadyHashed,
		"skipped", report.TotalSkipped,
		"failed", len(report.Failures),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	}

	if err != nil {
		report.Aborted = true
		report.Err = err
		log.Error(ctx, "collection migration aborted", append(summary, "error", err)...)
		return report, fmt.Errorf("%w: %s: %w", common.ErrRunAborted, coll.Name(), err)
	}

	log.Info(ctx, "collection migrated", summary...)
	return report, nil
}

func (m *Migrator) migrateRecord(ctx context.Context, coll store.Collection, rec store.Record, defaultPlaintext *string) (outcome, error) {
	if rec.Err != nil {
		return 0, rec.Err
	}

	credential := rec.Credential
	if !rec.HasCredential || credential == "" {
		if defaultPlaintext == nil {
			return outcomeSkipped, nil
		}
		credential = *defaultPlaintext
	}

	if hashing.IsHashed(credential) {
		return outcomeAlreadyHashed, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.opts.RecordTimeout)
	defer cancel()

	hashed, err := m.hasher.Hash(ctx, credential)
	if err != nil {
		return 0, fmt.Errorf("hash: %w", err)
	}

	if err := coll.UpdateCredential(ctx, rec.Key, rec.Credential, rec.HasCredential, hashed); err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			return 0, fmt.Errorf("credential changed during migration: %w", err)
		}
		return 0, fmt.Errorf("persist: %w", err)
	}
	return outcomeUpdated, nil
}
