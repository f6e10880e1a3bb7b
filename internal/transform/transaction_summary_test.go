package transform

import (
	"math"
	"testing"

	"github.com/rpattn/scdsync/internal/source"
)

func TestBuildTransactionSummaries(t *testing.T) {
	transactions := []source.Transaction{
		{ID: 1, UserID: 1, Amount: 100, Timestamp: day(1)},
		{ID: 2, UserID: 1, Amount: 50, Timestamp: day(2)},
		{ID: 3, UserID: 2, Amount: 200, Timestamp: day(3)},
	}
	purchases := []source.MembershipPurchase{
		{ID: 1, UserID: 1, MembershipType: "Basic", PurchaseDate: day(1), ExpiryDate: day(30)},
		{ID: 2, UserID: 2, MembershipType: "Premium", PurchaseDate: day(1), ExpiryDate: day(30)},
	}
	rates := []source.MDRRate{
		{MembershipType: "Basic", Percentage: 2},
		{MembershipType: "Premium", Percentage: 3},
	}

	summaries := BuildTransactionSummaries(transactions, purchases, rates)
	if len(summaries) != 2 {
		t.Fatalf("expected two summaries, got %d", len(summaries))
	}

	basic := summaries[0]
	if basic.MembershipType != "Basic" {
		t.Fatalf("expected Basic first (ordered by type), got %s", basic.MembershipType)
	}
	if basic.TotalTransactions != 2 || basic.TotalAmount != 150 {
		t.Errorf("unexpected basic summary %+v", basic)
	}
	if math.Abs(basic.MDRRevenue-3.0) > 1e-9 {
		t.Errorf("expected basic mdr revenue 3.0, got %v", basic.MDRRevenue)
	}

	premium := summaries[1]
	if premium.TotalTransactions != 1 || premium.TotalAmount != 200 {
		t.Errorf("unexpected premium summary %+v", premium)
	}
	if math.Abs(premium.MDRRevenue-6.0) > 1e-9 {
		t.Errorf("expected premium mdr revenue 6.0, got %v", premium.MDRRevenue)
	}
}

func TestBuildTransactionSummariesSkipsTypesWithoutRate(t *testing.T) {
	transactions := []source.Transaction{{ID: 1, UserID: 1, Amount: 100, Timestamp: day(1)}}
	purchases := []source.MembershipPurchase{
		{ID: 1, UserID: 1, MembershipType: "Trial", PurchaseDate: day(1), ExpiryDate: day(8)},
	}

	summaries := BuildTransactionSummaries(transactions, purchases, nil)
	if len(summaries) != 0 {
		t.Fatalf("expected no summaries without rates, got %+v", summaries)
	}
}

func TestBuildTransactionSummariesCountsPerMembership(t *testing.T) {
	// A user holding two memberships contributes their transactions to
	// both types, mirroring the join against membership purchases.
	transactions := []source.Transaction{{ID: 1, UserID: 1, Amount: 80, Timestamp: day(1)}}
	purchases := []source.MembershipPurchase{
		{ID: 1, UserID: 1, MembershipType: "Basic", PurchaseDate: day(1), ExpiryDate: day(15)},
		{ID: 2, UserID: 1, MembershipType: "Premium", PurchaseDate: day(15), ExpiryDate: day(30)},
	}
	rates := []source.MDRRate{
		{MembershipType: "Basic", Percentage: 2},
		{MembershipType: "Premium", Percentage: 3},
	}

	summaries := BuildTransactionSummaries(transactions, purchases, rates)
	if len(summaries) != 2 {
		t.Fatalf("expected both types summarized, got %+v", summaries)
	}
	for _, summary := range summaries {
		if summary.TotalTransactions != 1 || summary.TotalAmount != 80 {
			t.Errorf("unexpected summary %+v", summary)
		}
	}
}

func TestTransactionSummaryRecordMatchesSchema(t *testing.T) {
	summary := TransactionSummary{
		MembershipType:    "Basic",
		TotalTransactions: 4,
		TotalAmount:       300,
		MDRRevenue:        6,
	}
	record := summary.Record()
	for _, col := range TransactionSummaryTable.Columns {
		if _, ok := record[col.Name]; !ok {
			t.Errorf("record missing column %s", col.Name)
		}
	}
	if record["membership_type"] != "Basic" || record["total_transactions"] != int64(4) {
		t.Errorf("unexpected record %+v", record)
	}
}
