// Package scd implements the slowly-changing-dimension type 2 core:
// table schema declarations, typed snapshot records, and the diff
// classifier that decides which rows to insert, update, or expire.
package scd

// ColumnType is the semantic type of a warehouse column.
type ColumnType string

const (
	TypeInteger   ColumnType = "INTEGER"
	TypeVarchar   ColumnType = "VARCHAR"
	TypeNumeric   ColumnType = "NUMERIC"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeBoolean   ColumnType = "BOOLEAN"
)

// History tracking columns appended to every SCD table after the
// business columns.
const (
	ColEffectiveStart = "effective_start_date"
	ColEffectiveEnd   = "effective_end_date"
	ColIsActive       = "is_active"
)

// Column declares one business column.
type Column struct {
	Name string
	Type ColumnType
}

// TableSchema declares an SCD target table: its business columns in
// order, the natural key column identifying an entity across versions,
// and the surrogate key column identifying one row version. The three
// history columns are implicit and managed by the store.
type TableSchema struct {
	Name         string
	SurrogateKey string
	NaturalKey   string
	Columns      []Column
}

// SequenceName is the name of the sequence backing the surrogate key.
func (s TableSchema) SequenceName() string {
	return s.SurrogateKey + "_seq"
}

// ColumnNames returns the business column names in declaration order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}
