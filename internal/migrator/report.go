package migrator

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/credmigrator/internal/store"
)

// Failure describes one record the migrator could not rewrite.
type Failure struct {
	Key        any
	Identifier string
	Err        error
}

// Label names the record in logs and in the ledger.
func (f Failure) Label() string {
	if f.Identifier != "" {
		return f.Identifier
	}
	return fmt.Sprint(f.Key)
}

// Report summarises migrating one collection.
type Report struct {
	Collection string

	// TotalScanned counts the records retrieved from the collection.
	TotalScanned int
	// TotalUpdated counts the records whose credential was rewritten.
	TotalUpdated int
	// AlreadyHashed counts records left alone because they carry the marker.
	AlreadyHashed int
	// TotalSkipped counts records without a credential and without a default.
	TotalSkipped int

	Failures []Failure

	// Aborted is set when the scan stopped before the end of the collection;
	// Err holds the reason. Updates made before that point stay committed.
	Aborted bool
	Err     error

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) Failed() int {
	return len(r.Failures)
}

// Complete reports whether every record was scanned and none failed.
func (r *Report) Complete() bool {
	return !r.Aborted && len(r.Failures) == 0
}

// Run converts the report into its ledger form.
func (r *Report) Run(runID, target string) store.Run {
	run := store.Run{
		RunID:         runID,
		Target:        target,
		Collection:    r.Collection,
		TotalScanned:  r.TotalScanned,
		TotalUpdated:  r.TotalUpdated,
		AlreadyHashed: r.AlreadyHashed,
		TotalSkipped:  r.TotalSkipped,
		TotalFailed:   len(r.Failures),
		Aborted:       r.Aborted,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	for _, f := range r.Failures {
		run.FailedRecords = append(run.FailedRecords, f.Label())
	}
	return run
}
