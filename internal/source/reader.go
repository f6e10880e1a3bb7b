// Package source extracts operational records from the OLTP SQLite
// database. Values arrive as text (the operational tables are loaded
// from spreadsheets), so each reader coerces its columns to typed
// fields and drops rows missing a required column.
package source

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // cgo-free sqlite driver
)

// User is one operational user record.
type User struct {
	ID    int64
	Name  string
	Email string
	Phone *string
}

// Transaction is one payment made by a user.
type Transaction struct {
	ID        int64
	UserID    int64
	Amount    float64
	Timestamp time.Time
}

// MembershipPurchase is one membership bought by a user.
type MembershipPurchase struct {
	ID             int64
	UserID         int64
	MembershipType string
	PurchaseDate   time.Time
	ExpiryDate     time.Time
}

// UserActivity is one logged user action.
type UserActivity struct {
	ID           int64
	UserID       int64
	ActivityType string
	ActivityDate time.Time
}

// MDRRate is the merchant discount rate for one membership type.
type MDRRate struct {
	MembershipType string
	Percentage     float64
}

// Reader reads the OLTP database.
type Reader struct {
	db *sql.DB
}

// Open opens the SQLite database at path.
func Open(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open source database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping source database %s: %w", path, err)
	}
	return &Reader{db: db}, nil
}

// Close closes the underlying database handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Users returns user records. Rows without an ID, name, or email are
// dropped; phone is optional.
func (r *Reader) Users(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT User_ID, Name, Email, Phone FROM users`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var id, name, email, phone sql.NullString
		if err := rows.Scan(&id, &name, &email, &phone); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		userID, ok := parseID(id)
		if !ok || blank(name) || blank(email) {
			continue
		}
		user := User{ID: userID, Name: strings.TrimSpace(name.String), Email: strings.TrimSpace(email.String)}
		if !blank(phone) {
			trimmed := strings.TrimSpace(phone.String)
			user.Phone = &trimmed
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Transactions returns payment records. Rows with any required column
// missing or unparseable are dropped.
func (r *Reader) Transactions(ctx context.Context) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT Transaction_ID, User_ID, Transaction_Amount, Timestamp FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var id, userID, amount, timestamp sql.NullString
		if err := rows.Scan(&id, &userID, &amount, &timestamp); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txID, idOK := parseID(id)
		uID, userOK := parseID(userID)
		value, amountOK := parseAmount(amount)
		when, timeOK := parseWhen(timestamp)
		if !idOK || !userOK || !amountOK || !timeOK {
			continue
		}
		transactions = append(transactions, Transaction{ID: txID, UserID: uID, Amount: value, Timestamp: when})
	}
	return transactions, rows.Err()
}

// MembershipPurchases returns membership purchase records.
func (r *Reader) MembershipPurchases(ctx context.Context) ([]MembershipPurchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT Membership_ID, User_ID, Membership_Type, Purchase_Date, Expiry_Date FROM membership_purchases`)
	if err != nil {
		return nil, fmt.Errorf("query membership purchases: %w", err)
	}
	defer rows.Close()

	var purchases []MembershipPurchase
	for rows.Next() {
		var id, userID, membershipType, purchaseDate, expiryDate sql.NullString
		if err := rows.Scan(&id, &userID, &membershipType, &purchaseDate, &expiryDate); err != nil {
			return nil, fmt.Errorf("scan membership purchase: %w", err)
		}
		mID, idOK := parseID(id)
		uID, userOK := parseID(userID)
		purchased, purchasedOK := parseWhen(purchaseDate)
		expires, expiresOK := parseWhen(expiryDate)
		if !idOK || !userOK || blank(membershipType) || !purchasedOK || !expiresOK {
			continue
		}
		purchases = append(purchases, MembershipPurchase{
			ID:             mID,
			UserID:         uID,
			MembershipType: strings.TrimSpace(membershipType.String),
			PurchaseDate:   purchased,
			ExpiryDate:     expires,
		})
	}
	return purchases, rows.Err()
}

// UserActivities returns activity log records.
func (r *Reader) UserActivities(ctx context.Context) ([]UserActivity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT Activity_ID, User_ID, Activity_Type, Activity_Date FROM user_activity`)
	if err != nil {
		return nil, fmt.Errorf("query user activity: %w", err)
	}
	defer rows.Close()

	var activities []UserActivity
	for rows.Next() {
		var id, userID, activityType, activityDate sql.NullString
		if err := rows.Scan(&id, &userID, &activityType, &activityDate); err != nil {
			return nil, fmt.Errorf("scan user activity: %w", err)
		}
		aID, idOK := parseID(id)
		uID, userOK := parseID(userID)
		when, whenOK := parseWhen(activityDate)
		if !idOK || !userOK || blank(activityType) || !whenOK {
			continue
		}
		activities = append(activities, UserActivity{
			ID:           aID,
			UserID:       uID,
			ActivityType: strings.TrimSpace(activityType.String),
			ActivityDate: when,
		})
	}
	return activities, rows.Err()
}

// MDRRates returns the merchant discount rate per membership type.
func (r *Reader) MDRRates(ctx context.Context) ([]MDRRate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT Membership_Type, MDR_Percentage FROM mdr_data`)
	if err != nil {
		return nil, fmt.Errorf("query mdr data: %w", err)
	}
	defer rows.Close()

	var rates []MDRRate
	for rows.Next() {
		var membershipType, percentage sql.NullString
		if err := rows.Scan(&membershipType, &percentage); err != nil {
			return nil, fmt.Errorf("scan mdr rate: %w", err)
		}
		pct, pctOK := parseAmount(percentage)
		if blank(membershipType) || !pctOK {
			continue
		}
		rates = append(rates, MDRRate{
			MembershipType: strings.TrimSpace(membershipType.String),
			Percentage:     pct,
		})
	}
	return rates, rows.Err()
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006/01/02",
	"01/02/2006",
}

func blank(v sql.NullString) bool {
	return !v.Valid || strings.TrimSpace(v.String) == ""
}

func parseID(v sql.NullString) (int64, bool) {
	if blank(v) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(v.String), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func parseAmount(v sql.NullString) (float64, bool) {
	if blank(v) {
		return 0, false
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(v.String), 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

func parseWhen(v sql.NullString) (time.Time, bool) {
	if blank(v) {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(v.String)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
