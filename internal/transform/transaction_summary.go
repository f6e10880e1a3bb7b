package transform

import (
	"sort"

	"github.com/rpattn/scdsync/internal/scd"
	"github.com/rpattn/scdsync/internal/source"
)

// TransactionSummary is the candidate snapshot row for one membership
// type.
type TransactionSummary struct {
	MembershipType    string
	TotalTransactions int64
	TotalAmount       float64
	MDRRevenue        float64
}

// Record converts the summary to a warehouse record keyed by the
// transaction_summary column names.
func (s TransactionSummary) Record() scd.Record {
	return scd.Record{
		"membership_type":    s.MembershipType,
		"total_transactions": s.TotalTransactions,
		"total_amount":       s.TotalAmount,
		"mdr_revenue":        s.MDRRevenue,
	}
}

// BuildTransactionSummaries attributes each transaction to every
// membership purchase of its user, then rolls the joined rows up per
// membership type, ordered by type. MDR revenue applies that
// membership type's own rate; types without a configured rate are
// excluded, matching the inner join against the rate table.
func BuildTransactionSummaries(
	transactions []source.Transaction,
	purchases []source.MembershipPurchase,
	rates []source.MDRRate,
) []TransactionSummary {
	rateByType := make(map[string]float64, len(rates))
	for _, rate := range rates {
		rateByType[rate.MembershipType] = rate.Percentage
	}

	purchasesByUser := make(map[int64][]source.MembershipPurchase)
	for _, purchase := range purchases {
		purchasesByUser[purchase.UserID] = append(purchasesByUser[purchase.UserID], purchase)
	}

	summaryByType := make(map[string]*TransactionSummary)
	for _, tx := range transactions {
		for _, purchase := range purchasesByUser[tx.UserID] {
			rate, ok := rateByType[purchase.MembershipType]
			if !ok {
				continue
			}
			summary, ok := summaryByType[purchase.MembershipType]
			if !ok {
				summary = &TransactionSummary{MembershipType: purchase.MembershipType}
				summaryByType[purchase.MembershipType] = summary
			}
			summary.TotalTransactions++
			summary.TotalAmount += tx.Amount
			summary.MDRRevenue += tx.Amount * rate / 100
		}
	}

	summaries := make([]TransactionSummary, 0, len(summaryByType))
	for _, summary := range summaryByType {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].MembershipType < summaries[j].MembershipType
	})
	return summaries
}
