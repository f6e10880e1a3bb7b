package transform

import (
	"sort"
	"strings"
	"time"

	"github.com/rpattn/scdsync/internal/scd"
	"github.com/rpattn/scdsync/internal/source"
)

// UserProfile is the candidate snapshot row for one user. Numeric
// aggregates default to zero and optional attributes to nil when the
// user has no matching operational records.
type UserProfile struct {
	UserID                        int64
	Name                          string
	Email                         string
	Phone                         *string
	FirstTransactionDate          *time.Time
	LastTransactionDate           *time.Time
	TotalTransactions             int64
	TotalSpent                    float64
	LastMembership                *string
	LastMembershipExpiryDate      *time.Time
	BasicMembershipDurationDays   int64
	PremiumMembershipDurationDays int64
	LastActivity                  *string
	LastActivityDate              *time.Time
}

// Record converts the profile to a warehouse record keyed by the
// user_profiling column names.
func (p UserProfile) Record() scd.Record {
	return scd.Record{
		"user_id":                          p.UserID,
		"name":                             p.Name,
		"email":                            p.Email,
		"phone":                            optionalString(p.Phone),
		"first_transaction_date":           optionalTime(p.FirstTransactionDate),
		"last_transaction_date":            optionalTime(p.LastTransactionDate),
		"total_transactions":               p.TotalTransactions,
		"total_spent":                      p.TotalSpent,
		"last_membership":                  optionalString(p.LastMembership),
		"last_membership_expiry_date":      optionalTime(p.LastMembershipExpiryDate),
		"basic_membership_duration_days":   p.BasicMembershipDurationDays,
		"premium_membership_duration_days": p.PremiumMembershipDurationDays,
		"last_activity":                    optionalString(p.LastActivity),
		"last_activity_date":               optionalTime(p.LastActivityDate),
	}
}

// BuildUserProfiles rolls the operational records up into one profile
// per user, ordered by user ID.
//
// The latest membership is the purchase with the greatest expiry date;
// ties prefer the later purchase date, then the earlier input position,
// so repeated runs over identical input always select the same record.
func BuildUserProfiles(
	users []source.User,
	transactions []source.Transaction,
	purchases []source.MembershipPurchase,
	activities []source.UserActivity,
) []UserProfile {
	transactionsByUser := make(map[int64][]source.Transaction)
	for _, tx := range transactions {
		transactionsByUser[tx.UserID] = append(transactionsByUser[tx.UserID], tx)
	}
	purchasesByUser := make(map[int64][]source.MembershipPurchase)
	for _, purchase := range purchases {
		purchasesByUser[purchase.UserID] = append(purchasesByUser[purchase.UserID], purchase)
	}
	activitiesByUser := make(map[int64][]source.UserActivity)
	for _, activity := range activities {
		activitiesByUser[activity.UserID] = append(activitiesByUser[activity.UserID], activity)
	}

	profiles := make([]UserProfile, 0, len(users))
	for _, user := range users {
		profile := UserProfile{
			UserID: user.ID,
			Name:   user.Name,
			Email:  user.Email,
			Phone:  user.Phone,
		}
		applyTransactions(&profile, transactionsByUser[user.ID])
		applyMemberships(&profile, purchasesByUser[user.ID])
		applyActivities(&profile, activitiesByUser[user.ID])
		profiles = append(profiles, profile)
	}

	sort.Slice(profiles, func(i, j int) bool { return profiles[i].UserID < profiles[j].UserID })
	return profiles
}

func applyTransactions(profile *UserProfile, transactions []source.Transaction) {
	for _, tx := range transactions {
		when := tx.Timestamp
		if profile.FirstTransactionDate == nil || when.Before(*profile.FirstTransactionDate) {
			first := when
			profile.FirstTransactionDate = &first
		}
		if profile.LastTransactionDate == nil || when.After(*profile.LastTransactionDate) {
			last := when
			profile.LastTransactionDate = &last
		}
		profile.TotalTransactions++
		profile.TotalSpent += tx.Amount
	}
}

func applyMemberships(profile *UserProfile, purchases []source.MembershipPurchase) {
	var latest *source.MembershipPurchase
	for i := range purchases {
		purchase := purchases[i]
		days := int64(purchase.ExpiryDate.Sub(purchase.PurchaseDate).Hours() / 24)
		switch strings.ToLower(purchase.MembershipType) {
		case "basic":
			profile.BasicMembershipDurationDays += days
		case "premium":
			profile.PremiumMembershipDurationDays += days
		}

		if latest == nil ||
			purchase.ExpiryDate.After(latest.ExpiryDate) ||
			(purchase.ExpiryDate.Equal(latest.ExpiryDate) && purchase.PurchaseDate.After(latest.PurchaseDate)) {
			latest = &purchases[i]
		}
	}
	if latest != nil {
		membership := latest.MembershipType
		expiry := latest.ExpiryDate
		profile.LastMembership = &membership
		profile.LastMembershipExpiryDate = &expiry
	}
}

func applyActivities(profile *UserProfile, activities []source.UserActivity) {
	var latest *source.UserActivity
	for i := range activities {
		if latest == nil || activities[i].ActivityDate.After(latest.ActivityDate) {
			latest = &activities[i]
		}
	}
	if latest != nil {
		activity := latest.ActivityType
		when := latest.ActivityDate
		profile.LastActivity = &activity
		profile.LastActivityDate = &when
	}
}

func optionalString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func optionalTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.Truncate(time.Microsecond)
}
