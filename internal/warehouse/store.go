// Package warehouse persists historized rows in Postgres. It ensures
// table definitions, reads the active row set, and applies diff plans
// as two transactional phases: expire, then insert.
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/scdsync/internal/db"
	"github.com/rpattn/scdsync/internal/scd"
)

// txRunner runs a function inside one transaction. *db.Connection
// satisfies it; tests substitute failing runners.
type txRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// Store is the warehouse-side implementation of the sync engine's
// storage operations. A single run is the only writer for a table; no
// cross-run locking is attempted here.
type Store struct {
	conn *db.Connection
	tx   txRunner
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for history metadata.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a warehouse store on top of an open connection.
func NewStore(conn *db.Connection, opts ...Option) *Store {
	store := &Store{
		conn: conn,
		tx:   conn,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Ensure creates the table and its surrogate key sequence if absent,
// then verifies the existing definition against the declared schema.
// Safe to call every run. An existing table that disagrees with the
// declaration is a fatal configuration error, never auto-migrated.
func (s *Store) Ensure(ctx context.Context, schema scd.TableSchema) error {
	err := s.tx.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range ensureStatements(schema) {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("execute %q: %w", firstLine(stmt), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ensure table %s: %w: %w", schema.Name, scd.ErrTransactionFailure, err)
	}

	return s.verifySchema(ctx, schema)
}

// columnProbeSQL reads the live column definitions of one table. Scoped
// to the current schema so a same-named table elsewhere in the database
// cannot leak into the comparison.
const columnProbeSQL = `SELECT column_name, data_type
   FROM information_schema.columns
  WHERE table_name = $1 AND table_schema = current_schema()
  ORDER BY ordinal_position`

// verifySchema compares the live table definition with the declaration.
func (s *Store) verifySchema(ctx context.Context, schema scd.TableSchema) error {
	rows, err := s.conn.Pool.Query(ctx, columnProbeSQL, schema.Name)
	if err != nil {
		return fmt.Errorf("inspect table %s: %w", schema.Name, err)
	}
	defer rows.Close()

	var live []liveColumn
	for rows.Next() {
		var col liveColumn
		if err := rows.Scan(&col.name, &col.dataType); err != nil {
			return fmt.Errorf("scan column definition: %w", err)
		}
		live = append(live, col)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read column definitions: %w", err)
	}
	if len(live) == 0 {
		return fmt.Errorf("table %s not found after ensure", schema.Name)
	}

	expected := expectedColumns(schema)
	if len(live) != len(expected) {
		return fmt.Errorf("%w: table %s has %d columns, declared %d",
			scd.ErrSchemaConflict, schema.Name, len(live), len(expected))
	}
	for i, want := range expected {
		if live[i].name != want.name || live[i].dataType != want.dataType {
			return fmt.Errorf("%w: table %s column %d is %s %s, declared %s %s",
				scd.ErrSchemaConflict, schema.Name, i+1,
				live[i].name, live[i].dataType, want.name, want.dataType)
		}
	}
	return nil
}

type liveColumn struct {
	name     string
	dataType string
}

// expectedColumns maps the declared schema to the column list Postgres
// reports through information_schema.
func expectedColumns(schema scd.TableSchema) []liveColumn {
	expected := make([]liveColumn, 0, len(schema.Columns)+4)
	expected = append(expected, liveColumn{schema.SurrogateKey, "bigint"})
	for _, col := range schema.Columns {
		expected = append(expected, liveColumn{col.Name, informationSchemaType(col.Type)})
	}
	expected = append(expected,
		liveColumn{scd.ColEffectiveStart, "timestamp without time zone"},
		liveColumn{scd.ColEffectiveEnd, "timestamp without time zone"},
		liveColumn{scd.ColIsActive, "boolean"},
	)
	return expected
}

func informationSchemaType(colType scd.ColumnType) string {
	switch colType {
	case scd.TypeInteger:
		return "bigint"
	case scd.TypeVarchar:
		return "character varying"
	case scd.TypeNumeric:
		return "numeric"
	case scd.TypeTimestamp:
		return "timestamp without time zone"
	case scd.TypeBoolean:
		return "boolean"
	default:
		return string(colType)
	}
}

// ReadActive returns the currently active row versions with their
// surrogate keys, scanned into canonical record values.
func (s *Store) ReadActive(ctx context.Context, schema scd.TableSchema) ([]scd.Record, error) {
	sql, args, err := buildReadActive(schema)
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("read active rows from %s: %w", schema.Name, err)
	}
	defer rows.Close()

	var records []scd.Record
	for rows.Next() {
		record, err := scanRecord(rows, schema)
		if err != nil {
			return nil, fmt.Errorf("scan active row from %s: %w", schema.Name, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read active rows from %s: %w", schema.Name, err)
	}
	return records, nil
}

func scanRecord(rows pgx.Rows, schema scd.TableSchema) (scd.Record, error) {
	holders := make([]any, 0, len(schema.Columns)+1)
	var surrogateKey int64
	holders = append(holders, &surrogateKey)
	for _, col := range schema.Columns {
		switch col.Type {
		case scd.TypeInteger:
			holders = append(holders, new(*int64))
		case scd.TypeNumeric:
			holders = append(holders, new(*float64))
		case scd.TypeVarchar:
			holders = append(holders, new(*string))
		case scd.TypeBoolean:
			holders = append(holders, new(*bool))
		case scd.TypeTimestamp:
			holders = append(holders, new(*time.Time))
		default:
			return nil, fmt.Errorf("column %s has unsupported type %s", col.Name, col.Type)
		}
	}

	if err := rows.Scan(holders...); err != nil {
		return nil, err
	}

	record := scd.Record{schema.SurrogateKey: surrogateKey}
	for i, col := range schema.Columns {
		record[col.Name] = dereference(holders[i+1])
	}
	return record, nil
}

func dereference(holder any) any {
	switch v := holder.(type) {
	case **int64:
		if *v != nil {
			return **v
		}
	case **float64:
		if *v != nil {
			return **v
		}
	case **string:
		if *v != nil {
			return **v
		}
	case **bool:
		if *v != nil {
			return **v
		}
	case **time.Time:
		if *v != nil {
			return **v
		}
	}
	return nil
}

// Apply executes a diff plan against the table. The expire phase and
// the insert phase each run in their own transaction, in that order; a
// failed expire aborts the run before any insert, so a changed entity
// can never end up with two active versions. A crash between the two
// commits can leave keys with no active row, which the next successful
// run repairs by reinserting from the candidate snapshot.
func (s *Store) Apply(ctx context.Context, schema scd.TableSchema, plan scd.Plan) (scd.ApplyStats, error) {
	runTime := s.now()

	if surrogateKeys := plan.ExpireSurrogateKeys(); len(surrogateKeys) > 0 {
		sql, args, err := buildExpire(schema, surrogateKeys, runTime)
		if err != nil {
			return scd.ApplyStats{}, err
		}
		err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, sql, args...)
			if err != nil {
				return err
			}
			if tag.RowsAffected() != int64(len(surrogateKeys)) {
				return fmt.Errorf("expired %d rows, expected %d", tag.RowsAffected(), len(surrogateKeys))
			}
			return nil
		})
		if err != nil {
			return scd.ApplyStats{}, fmt.Errorf("expire phase for %s: %w: %w", schema.Name, scd.ErrTransactionFailure, err)
		}
	}

	if records := plan.InsertRecords(); len(records) > 0 {
		sql, args, err := buildInsert(schema, records, runTime)
		if err != nil {
			return scd.ApplyStats{}, err
		}
		err = s.tx.WithTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, sql, args...)
			return err
		})
		if err != nil {
			return scd.ApplyStats{}, fmt.Errorf("insert phase for %s: %w: %w", schema.Name, scd.ErrTransactionFailure, err)
		}
	}

	return plan.Stats(), nil
}

func firstLine(stmt string) string {
	for i, r := range stmt {
		if r == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
