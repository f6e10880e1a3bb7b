package warehouse

import (
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration

	"github.com/rpattn/scdsync/internal/scd"
)

var dialect = goqu.Dialect("postgres")

// historyColumnDDL is appended after the business columns of every SCD
// table; effective_end_date stays NULL while a row version is active.
var historyColumnDDL = []string{
	scd.ColEffectiveStart + " TIMESTAMP",
	scd.ColEffectiveEnd + " TIMESTAMP",
	scd.ColIsActive + " BOOLEAN",
}

func columnDDLType(colType scd.ColumnType) string {
	// INTEGER columns are declared BIGINT so values round-trip as int64.
	if colType == scd.TypeInteger {
		return "BIGINT"
	}
	return string(colType)
}

// ensureStatements returns the idempotent DDL for a table and its
// surrogate key sequence.
func ensureStatements(schema scd.TableSchema) []string {
	columns := make([]string, 0, len(schema.Columns)+4)
	columns = append(columns, fmt.Sprintf(
		"%s BIGINT PRIMARY KEY DEFAULT nextval('%s')",
		schema.SurrogateKey, schema.SequenceName(),
	))
	for _, col := range schema.Columns {
		columns = append(columns, col.Name+" "+columnDDLType(col.Type))
	}
	columns = append(columns, historyColumnDDL...)

	return []string{
		fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s START 1", schema.SequenceName()),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", schema.Name, strings.Join(columns, ",\n\t")),
	}
}

// buildReadActive selects the surrogate key plus every business column
// for rows that are currently active, ordered by surrogate key.
func buildReadActive(schema scd.TableSchema) (string, []any, error) {
	selected := make([]any, 0, len(schema.Columns)+1)
	selected = append(selected, schema.SurrogateKey)
	for _, name := range schema.ColumnNames() {
		selected = append(selected, name)
	}

	sql, args, err := dialect.From(schema.Name).
		Prepared(true).
		Select(selected...).
		Where(goqu.C(scd.ColIsActive).IsTrue()).
		Order(goqu.C(schema.SurrogateKey).Asc()).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build select for %s: %w", schema.Name, err)
	}
	return sql, args, nil
}

// buildExpire closes the given row versions in a single statement.
func buildExpire(schema scd.TableSchema, surrogateKeys []int64, endDate time.Time) (string, []any, error) {
	sql, args, err := dialect.Update(schema.Name).
		Prepared(true).
		Set(goqu.Record{
			scd.ColEffectiveEnd: endDate,
			scd.ColIsActive:     false,
		}).
		Where(goqu.C(schema.SurrogateKey).In(surrogateKeys)).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build expire for %s: %w", schema.Name, err)
	}
	return sql, args, nil
}

// buildInsert writes fresh row versions in a single multi-row statement.
// The surrogate key is omitted so the table default draws from the
// sequence; history columns mark the rows active as of startDate.
func buildInsert(schema scd.TableSchema, records []scd.Record, startDate time.Time) (string, []any, error) {
	columns := make([]any, 0, len(schema.Columns)+3)
	for _, col := range schema.Columns {
		columns = append(columns, col.Name)
	}
	columns = append(columns, scd.ColEffectiveStart, scd.ColEffectiveEnd, scd.ColIsActive)

	vals := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, 0, len(columns))
		for _, col := range schema.Columns {
			row = append(row, record[col.Name])
		}
		row = append(row, startDate, nil, true)
		vals[i] = row
	}

	sql, args, err := dialect.Insert(schema.Name).
		Prepared(true).
		Cols(columns...).
		Vals(vals...).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build insert for %s: %w", schema.Name, err)
	}
	return sql, args, nil
}
