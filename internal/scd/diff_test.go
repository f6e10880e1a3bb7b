package scd

import (
	"errors"
	"testing"
	"time"
)

var balanceSchema = TableSchema{
	Name:         "account_balance",
	SurrogateKey: "account_sk",
	NaturalKey:   "account_id",
	Columns: []Column{
		{Name: "account_id", Type: TypeInteger},
		{Name: "amount", Type: TypeNumeric},
		{Name: "tier", Type: TypeVarchar},
		{Name: "renewed_at", Type: TypeTimestamp},
	},
}

func candidateRow(id int64, amount float64, tier string) Record {
	return Record{
		"account_id": id,
		"amount":     amount,
		"tier":       tier,
		"renewed_at": nil,
	}
}

func activeRow(sk, id int64, amount float64, tier string) Record {
	return Record{
		"account_sk": sk,
		"account_id": id,
		"amount":     amount,
		"tier":       tier,
		"renewed_at": nil,
	}
}

func TestClassifyNewKeyGoesToInsert(t *testing.T) {
	plan, err := Classify(
		[]Record{candidateRow(9, 20, "basic")},
		nil,
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.ToInsert) != 1 || len(plan.ToUpdate) != 0 || len(plan.ToExpireOnly) != 0 {
		t.Fatalf("expected one insert and nothing else, got %+v", plan)
	}
	if got := plan.ToInsert[0]["account_id"]; got != int64(9) {
		t.Errorf("expected account 9 inserted, got %v", got)
	}
}

func TestClassifyUnchangedRowProducesNoMutations(t *testing.T) {
	plan, err := Classify(
		[]Record{candidateRow(3, 50, "basic")},
		[]Record{activeRow(11, 3, 50, "basic")},
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("expected empty plan for unchanged row, got %+v", plan)
	}
}

func TestClassifyChangedAttributeExpiresAndInserts(t *testing.T) {
	plan, err := Classify(
		[]Record{
			candidateRow(7, 150, "basic"),
			candidateRow(8, 30, "premium"),
		},
		[]Record{
			activeRow(21, 7, 100, "basic"),
			activeRow(22, 8, 30, "premium"),
		},
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.ToUpdate) != 1 {
		t.Fatalf("expected exactly one update, got %d", len(plan.ToUpdate))
	}
	change := plan.ToUpdate[0]
	if change.ExpireSurrogateKey != 21 {
		t.Errorf("expected surrogate key 21 expired, got %d", change.ExpireSurrogateKey)
	}
	if got := change.New["amount"]; got != float64(150) {
		t.Errorf("expected new amount 150, got %v", got)
	}
	if len(plan.ToInsert) != 0 || len(plan.ToExpireOnly) != 0 {
		t.Errorf("account 8 should be untouched, got %+v", plan)
	}
}

func TestClassifyRemovedKeyExpiresWithoutReplacement(t *testing.T) {
	plan, err := Classify(
		nil,
		[]Record{activeRow(31, 4, 75, "basic")},
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.ToExpireOnly) != 1 || len(plan.ToInsert) != 0 || len(plan.ToUpdate) != 0 {
		t.Fatalf("expected exactly one expire-only, got %+v", plan)
	}
	expiry := plan.ToExpireOnly[0]
	if expiry.SurrogateKey != 31 || expiry.NaturalKey != "4" {
		t.Errorf("unexpected expiry %+v", expiry)
	}
	if records := plan.InsertRecords(); len(records) != 0 {
		t.Errorf("removed key must not produce an insert, got %d records", len(records))
	}
}

func TestClassifyFullScenario(t *testing.T) {
	// Active: 7 (will change), 5 (will disappear). Candidate: 7 changed,
	// 9 new. Expected: 7 expired+reinserted, 9 inserted, 5 expired only.
	plan, err := Classify(
		[]Record{
			candidateRow(7, 150, "basic"),
			candidateRow(9, 20, "basic"),
		},
		[]Record{
			activeRow(41, 7, 100, "basic"),
			activeRow(42, 5, 60, "premium"),
		},
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.ToInsert) != 1 || plan.ToInsert[0]["account_id"] != int64(9) {
		t.Errorf("expected account 9 in inserts, got %+v", plan.ToInsert)
	}
	if len(plan.ToUpdate) != 1 || plan.ToUpdate[0].ExpireSurrogateKey != 41 {
		t.Errorf("expected account 7 updated via sk 41, got %+v", plan.ToUpdate)
	}
	if len(plan.ToExpireOnly) != 1 || plan.ToExpireOnly[0].SurrogateKey != 42 {
		t.Errorf("expected account 5 expired via sk 42, got %+v", plan.ToExpireOnly)
	}

	keys := plan.ExpireSurrogateKeys()
	if len(keys) != 2 {
		t.Errorf("expected two surrogate keys to expire, got %v", keys)
	}
	if records := plan.InsertRecords(); len(records) != 2 {
		t.Errorf("expected two records to insert, got %d", len(records))
	}
	stats := plan.Stats()
	if stats.Inserted != 1 || stats.Updated != 1 || stats.Expired != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestClassifyNullAttributesCompareEqual(t *testing.T) {
	candidate := candidateRow(2, 10, "basic")
	active := activeRow(51, 2, 10, "basic")
	// renewed_at is nil on both sides already; nil must equal nil.
	plan, err := Classify([]Record{candidate}, []Record{active}, balanceSchema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Empty() {
		t.Fatalf("nil attributes should compare equal, got %+v", plan)
	}

	// A nil against a value is a change.
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	candidate["renewed_at"] = when
	plan, err = Classify([]Record{candidate}, []Record{active}, balanceSchema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.ToUpdate) != 1 {
		t.Fatalf("nil vs value should classify as changed, got %+v", plan)
	}
}

func TestClassifyMultipleActiveRowsIsInvariantViolation(t *testing.T) {
	_, err := Classify(
		[]Record{candidateRow(7, 100, "basic")},
		[]Record{
			activeRow(61, 7, 100, "basic"),
			activeRow(62, 7, 120, "basic"),
		},
		balanceSchema,
	)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation, got %v", err)
	}
}

func TestClassifyDuplicateCandidateKeyRejected(t *testing.T) {
	_, err := Classify(
		[]Record{
			candidateRow(7, 100, "basic"),
			candidateRow(7, 150, "basic"),
		},
		nil,
		balanceSchema,
	)
	if !errors.Is(err, ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

func TestClassifyMissingNaturalKeyRejected(t *testing.T) {
	record := candidateRow(7, 100, "basic")
	record["account_id"] = nil
	_, err := Classify([]Record{record}, nil, balanceSchema)
	if !errors.Is(err, ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

func TestClassifyMissingBusinessColumnRejected(t *testing.T) {
	record := candidateRow(7, 100, "basic")
	delete(record, "tier")
	_, err := Classify([]Record{record}, nil, balanceSchema)
	if !errors.Is(err, ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

func TestClassifyCoversKeyUnionDisjointly(t *testing.T) {
	plan, err := Classify(
		[]Record{
			candidateRow(1, 10, "basic"),   // unchanged
			candidateRow(2, 25, "premium"), // changed
			candidateRow(3, 5, "basic"),    // new
		},
		[]Record{
			activeRow(71, 1, 10, "basic"),
			activeRow(72, 2, 20, "premium"),
			activeRow(73, 4, 40, "basic"), // removed
		},
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]string{}
	record := func(key, set string) {
		if prior, dup := seen[key]; dup {
			t.Fatalf("key %s appears in both %s and %s", key, prior, set)
		}
		seen[key] = set
	}
	for _, rec := range plan.ToInsert {
		key, _ := rec.NaturalKey(balanceSchema)
		record(key, "insert")
	}
	for _, change := range plan.ToUpdate {
		key, _ := change.New.NaturalKey(balanceSchema)
		record(key, "update")
	}
	for _, expiry := range plan.ToExpireOnly {
		record(expiry.NaturalKey, "expire-only")
	}

	want := map[string]string{"2": "update", "3": "insert", "4": "expire-only"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d classified keys, got %v", len(want), seen)
	}
	for key, set := range want {
		if seen[key] != set {
			t.Errorf("key %s: expected %s, got %s", key, set, seen[key])
		}
	}
}

func TestClassifyOrdersOutputsByNaturalKey(t *testing.T) {
	plan, err := Classify(
		[]Record{
			candidateRow(9, 1, "basic"),
			candidateRow(3, 1, "basic"),
			candidateRow(5, 1, "basic"),
		},
		nil,
		balanceSchema,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var keys []string
	for _, rec := range plan.ToInsert {
		key, _ := rec.NaturalKey(balanceSchema)
		keys = append(keys, key)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("inserts not ordered by key: %v", keys)
		}
	}
}
