// Package pipeline orchestrates one synchronization run: for every
// entity table it ensures the definition, classifies the candidate
// snapshot against the active rows, applies the plan, and exports the
// resulting active state to the run report.
package pipeline

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/rpattn/scdsync/internal/scd"
)

// Store is the warehouse surface the pipeline depends on.
type Store interface {
	Ensure(ctx context.Context, schema scd.TableSchema) error
	ReadActive(ctx context.Context, schema scd.TableSchema) ([]scd.Record, error)
	Apply(ctx context.Context, schema scd.TableSchema, plan scd.Plan) (scd.ApplyStats, error)
}

// Reporter renders the post-run active rows of one table.
type Reporter interface {
	WriteSheet(runDate string, schema scd.TableSchema, records []scd.Record) error
}

// Table pairs an entity table declaration with its candidate snapshot
// for this run.
type Table struct {
	Schema    scd.TableSchema
	Candidate []scd.Record
}

// Result reports the outcome for one table. A run keeps going when a
// table fails, so callers see partial success per table rather than one
// merged failure.
type Result struct {
	Table string
	Stats scd.ApplyStats
	Err   error
}

// Runner executes synchronization runs.
type Runner struct {
	store    Store
	reporter Reporter
}

// NewRunner creates a pipeline runner.
func NewRunner(store Store, reporter Reporter) *Runner {
	return &Runner{store: store, reporter: reporter}
}

// Run synchronizes every table in order and returns one result per
// table. runDate names the report workbook.
func (r *Runner) Run(ctx context.Context, runDate string, tables []Table) []Result {
	runID := uuid.New()
	log.Printf("[sync] run %s starting (%d tables, date %s)", runID, len(tables), runDate)

	results := make([]Result, 0, len(tables))
	for _, table := range tables {
		result := r.syncTable(ctx, runDate, table)
		if result.Err != nil {
			log.Printf("[sync] run %s table %s failed: %v", runID, table.Schema.Name, result.Err)
		} else {
			log.Printf("[sync] run %s table %s: %d inserted, %d updated, %d expired",
				runID, table.Schema.Name, result.Stats.Inserted, result.Stats.Updated, result.Stats.Expired)
		}
		results = append(results, result)
	}

	log.Printf("[sync] run %s finished", runID)
	return results
}

func (r *Runner) syncTable(ctx context.Context, runDate string, table Table) Result {
	result := Result{Table: table.Schema.Name}

	if err := r.store.Ensure(ctx, table.Schema); err != nil {
		result.Err = err
		return result
	}

	active, err := r.store.ReadActive(ctx, table.Schema)
	if err != nil {
		result.Err = err
		return result
	}

	plan, err := scd.Classify(table.Candidate, active, table.Schema)
	if err != nil {
		result.Err = err
		return result
	}

	if !plan.Empty() {
		stats, err := r.store.Apply(ctx, table.Schema, plan)
		if err != nil {
			result.Err = err
			return result
		}
		result.Stats = stats
	}

	if r.reporter != nil {
		current, err := r.store.ReadActive(ctx, table.Schema)
		if err != nil {
			result.Err = err
			return result
		}
		if err := r.reporter.WriteSheet(runDate, table.Schema, current); err != nil {
			result.Err = err
			return result
		}
	}

	return result
}

// Failed reports whether any table in the run ended in error.
func Failed(results []Result) bool {
	for _, result := range results {
		if result.Err != nil {
			return true
		}
	}
	return false
}
