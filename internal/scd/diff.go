package scd

import (
	"fmt"
	"sort"
)

// Change pairs the surrogate key of the currently active row with the
// candidate record that supersedes it.
type Change struct {
	ExpireSurrogateKey int64
	New                Record
}

// Expiry identifies an active row whose entity disappeared from the
// candidate snapshot. Its history is closed without a replacement row.
type Expiry struct {
	SurrogateKey int64
	NaturalKey   string
}

// Plan is the output of Classify: three disjoint sets whose natural
// keys together cover the union of candidate and active keys.
type Plan struct {
	ToInsert     []Record
	ToUpdate     []Change
	ToExpireOnly []Expiry
}

// Empty reports whether the plan requires no mutations at all.
func (p Plan) Empty() bool {
	return len(p.ToInsert) == 0 && len(p.ToUpdate) == 0 && len(p.ToExpireOnly) == 0
}

// ApplyStats summarizes the mutations applied for one table in one run.
type ApplyStats struct {
	Inserted int
	Updated  int
	Expired  int
}

// Stats returns the mutation counts this plan will produce when applied.
func (p Plan) Stats() ApplyStats {
	return ApplyStats{
		Inserted: len(p.ToInsert),
		Updated:  len(p.ToUpdate),
		Expired:  len(p.ToExpireOnly),
	}
}

// ExpireSurrogateKeys collects every surrogate key the expire phase
// must close, across both changed and removed entities.
func (p Plan) ExpireSurrogateKeys() []int64 {
	keys := make([]int64, 0, len(p.ToUpdate)+len(p.ToExpireOnly))
	for _, change := range p.ToUpdate {
		keys = append(keys, change.ExpireSurrogateKey)
	}
	for _, expiry := range p.ToExpireOnly {
		keys = append(keys, expiry.SurrogateKey)
	}
	return keys
}

// InsertRecords collects every record the insert phase must write: new
// entities plus the fresh versions of changed entities.
func (p Plan) InsertRecords() []Record {
	records := make([]Record, 0, len(p.ToInsert)+len(p.ToUpdate))
	records = append(records, p.ToInsert...)
	for _, change := range p.ToUpdate {
		records = append(records, change.New)
	}
	return records
}

// Classify compares a candidate snapshot against the currently active
// warehouse rows by natural key and partitions every entity into one of
// three outcomes:
//
//   - present only in the candidate: insert as a new entity
//   - present on both sides with any business attribute differing:
//     expire the active row and insert the candidate as a new version
//   - present only in the active set: expire with no replacement
//
// Entities whose attributes are all equal produce no action; the active
// row remains authoritative. Output slices are ordered by natural key
// so batches are deterministic.
func Classify(candidate []Record, active []Record, schema TableSchema) (Plan, error) {
	candidateByKey, err := indexCandidate(candidate, schema)
	if err != nil {
		return Plan{}, err
	}

	activeByKey := make(map[string]Record, len(active))
	for _, record := range active {
		key, err := record.NaturalKey(schema)
		if err != nil {
			return Plan{}, fmt.Errorf("active row: %w", err)
		}
		if _, exists := activeByKey[key]; exists {
			return Plan{}, fmt.Errorf("%w: %s=%s in table %s", ErrInvariantViolation, schema.NaturalKey, key, schema.Name)
		}
		activeByKey[key] = record
	}

	var plan Plan
	for key, record := range candidateByKey {
		current, exists := activeByKey[key]
		if !exists {
			plan.ToInsert = append(plan.ToInsert, record)
			continue
		}
		if recordsEqual(schema, record, current) {
			continue
		}
		sk, err := current.SurrogateKey(schema)
		if err != nil {
			return Plan{}, err
		}
		plan.ToUpdate = append(plan.ToUpdate, Change{ExpireSurrogateKey: sk, New: record})
	}

	for key, record := range activeByKey {
		if _, exists := candidateByKey[key]; exists {
			continue
		}
		sk, err := record.SurrogateKey(schema)
		if err != nil {
			return Plan{}, err
		}
		plan.ToExpireOnly = append(plan.ToExpireOnly, Expiry{SurrogateKey: sk, NaturalKey: key})
	}

	sortPlan(&plan, schema)
	return plan, nil
}

func indexCandidate(candidate []Record, schema TableSchema) (map[string]Record, error) {
	byKey := make(map[string]Record, len(candidate))
	for _, record := range candidate {
		key, err := record.NaturalKey(schema)
		if err != nil {
			return nil, err
		}
		if _, exists := byKey[key]; exists {
			return nil, fmt.Errorf("%w: duplicate natural key %s=%s", ErrInputShape, schema.NaturalKey, key)
		}
		for _, col := range schema.Columns {
			if _, present := record[col.Name]; !present {
				return nil, fmt.Errorf("%w: key %s=%s missing column %s", ErrInputShape, schema.NaturalKey, key, col.Name)
			}
		}
		byKey[key] = record
	}
	return byKey, nil
}

// recordsEqual compares every business column except the natural key.
// The active side may carry extra columns (surrogate key, history
// metadata); those are ignored.
func recordsEqual(schema TableSchema, candidate, active Record) bool {
	for _, col := range schema.Columns {
		if col.Name == schema.NaturalKey {
			continue
		}
		if !ValuesEqual(col.Type, candidate[col.Name], active[col.Name]) {
			return false
		}
	}
	return true
}

func sortPlan(plan *Plan, schema TableSchema) {
	sort.Slice(plan.ToInsert, func(i, j int) bool {
		a, _ := plan.ToInsert[i].NaturalKey(schema)
		b, _ := plan.ToInsert[j].NaturalKey(schema)
		return a < b
	})
	sort.Slice(plan.ToUpdate, func(i, j int) bool {
		a, _ := plan.ToUpdate[i].New.NaturalKey(schema)
		b, _ := plan.ToUpdate[j].New.NaturalKey(schema)
		return a < b
	})
	sort.Slice(plan.ToExpireOnly, func(i, j int) bool {
		return plan.ToExpireOnly[i].NaturalKey < plan.ToExpireOnly[j].NaturalKey
	})
}
