// Package transform builds the candidate snapshots loaded into the
// warehouse: one user profile row per user and one transaction summary
// row per membership type.
package transform

import "github.com/rpattn/scdsync/internal/scd"

// UserProfilingTable declares the historized user profile table.
var UserProfilingTable = scd.TableSchema{
	Name:         "user_profiling",
	SurrogateKey: "user_sk",
	NaturalKey:   "user_id",
	Columns: []scd.Column{
		{Name: "user_id", Type: scd.TypeInteger},
		{Name: "name", Type: scd.TypeVarchar},
		{Name: "email", Type: scd.TypeVarchar},
		{Name: "phone", Type: scd.TypeVarchar},
		{Name: "first_transaction_date", Type: scd.TypeTimestamp},
		{Name: "last_transaction_date", Type: scd.TypeTimestamp},
		{Name: "total_transactions", Type: scd.TypeInteger},
		{Name: "total_spent", Type: scd.TypeNumeric},
		{Name: "last_membership", Type: scd.TypeVarchar},
		{Name: "last_membership_expiry_date", Type: scd.TypeTimestamp},
		{Name: "basic_membership_duration_days", Type: scd.TypeInteger},
		{Name: "premium_membership_duration_days", Type: scd.TypeInteger},
		{Name: "last_activity", Type: scd.TypeVarchar},
		{Name: "last_activity_date", Type: scd.TypeTimestamp},
	},
}

// TransactionSummaryTable declares the historized per-membership-type
// transaction summary table.
var TransactionSummaryTable = scd.TableSchema{
	Name:         "transaction_summary",
	SurrogateKey: "transaction_summary_sk",
	NaturalKey:   "membership_type",
	Columns: []scd.Column{
		{Name: "membership_type", Type: scd.TypeVarchar},
		{Name: "total_transactions", Type: scd.TypeInteger},
		{Name: "total_amount", Type: scd.TypeNumeric},
		{Name: "mdr_revenue", Type: scd.TypeNumeric},
	},
}
