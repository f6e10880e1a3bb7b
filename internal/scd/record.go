package scd

import (
	"fmt"
	"strconv"
	"time"
)

// Record is one row keyed by column name. Values are the canonical Go
// representations of the column types: int64 for INTEGER, string for
// VARCHAR, float64 for NUMERIC, time.Time for TIMESTAMP, bool for
// BOOLEAN, and nil for SQL NULL.
type Record map[string]any

// NaturalKey returns the record's natural key formatted as a stable
// string. Formatting the key explicitly avoids the type-coercion
// pitfalls of comparing raw interface values across the snapshot and
// warehouse sides.
func (r Record) NaturalKey(schema TableSchema) (string, error) {
	value, ok := r[schema.NaturalKey]
	if !ok || value == nil {
		return "", fmt.Errorf("%w: missing natural key %s", ErrInputShape, schema.NaturalKey)
	}
	key, ok := keyString(value)
	if !ok {
		return "", fmt.Errorf("%w: natural key %s has unsupported type %T", ErrInputShape, schema.NaturalKey, value)
	}
	return key, nil
}

// SurrogateKey returns the record's surrogate key, present only on rows
// read back from the warehouse.
func (r Record) SurrogateKey(schema TableSchema) (int64, error) {
	value, ok := r[schema.SurrogateKey]
	if !ok || value == nil {
		return 0, fmt.Errorf("active row missing surrogate key %s", schema.SurrogateKey)
	}
	sk, ok := toInt64(value)
	if !ok {
		return 0, fmt.Errorf("surrogate key %s has unsupported type %T", schema.SurrogateKey, value)
	}
	return sk, nil
}

func keyString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	default:
		return "", false
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// ValuesEqual compares two column values under value semantics: NULL
// equals NULL, timestamps compare at microsecond precision (the
// round-trip precision of the warehouse), and numeric widths are
// normalized before comparison. A value of an unexpected dynamic type
// never compares equal to anything but itself being nil.
func ValuesEqual(colType ColumnType, a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	switch colType {
	case TypeInteger:
		av, aok := toInt64(a)
		bv, bok := toInt64(b)
		return aok && bok && av == bv
	case TypeNumeric:
		av, aok := toFloat64(a)
		bv, bok := toFloat64(b)
		return aok && bok && av == bv
	case TypeVarchar:
		av, aok := a.(string)
		bv, bok := b.(string)
		return aok && bok && av == bv
	case TypeBoolean:
		av, aok := a.(bool)
		bv, bok := b.(bool)
		return aok && bok && av == bv
	case TypeTimestamp:
		av, aok := a.(time.Time)
		bv, bok := b.(time.Time)
		return aok && bok && av.Truncate(time.Microsecond).Equal(bv.Truncate(time.Microsecond))
	default:
		return false
	}
}
