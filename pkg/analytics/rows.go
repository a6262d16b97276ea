package analytics

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Counts holds the scalar counters of the billing schema
type Counts struct {
	TotalUsers         int64
	TotalServices      int64
	TotalServers       int64
	ActiveUserServices int64
	TotalPayments      int64
	TotalWithdraws     int64
	PendingTasks       int64
}

// PaymentRecord is a single in-window payment
type PaymentRecord struct {
	UserID      int64
	PaySystemID sql.NullString
	Amount      decimal.Decimal
}

// PaymentDay is a payment total for one (date, payment system) pair
type PaymentDay struct {
	Date        string
	PaySystemID string
	Total       decimal.Decimal
	Count       int64
}

// PaySystemTotal is the in-window total of one payment system
type PaySystemTotal struct {
	PaySystemID string
	Total       decimal.Decimal
	Count       int64
}

// DayCount is a per-date counter
type DayCount struct {
	Date  string
	Count int64
}

// WithdrawalDay is the withdrawal total for one date
type WithdrawalDay struct {
	Date  string
	Total decimal.Decimal
	Count int64
}

// SubscriptionGroup counts subscriptions by status and service name
type SubscriptionGroup struct {
	Status      string
	ServiceName string
	Count       int64
	Revenue     decimal.Decimal
}

// ServiceCount is a service ranked by subscription count
type ServiceCount struct {
	Name    string
	Count   int64
	Revenue decimal.Decimal
}

// NamedCount is a generic label/counter pair
type NamedCount struct {
	Name  string
	Count int64
}

// SubscriptionRecord is one user service with its linked service terms.
// Cost and Period are zero when the service row is missing.
type SubscriptionRecord struct {
	ID     int64
	Status string
	Expire sql.NullTime
	Cost   decimal.Decimal
	Period decimal.Decimal
}

// RecentPayment is a row of the latest payments list
type RecentPayment struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Money       decimal.Decimal `json:"money"`
	Date        time.Time       `json:"date"`
	PaySystemID string          `json:"pay_system_id"`
	Login       string          `json:"login"`
}

// RecentTask is a row of the latest spool entries
type RecentTask struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	Status  string    `json:"status"`
	Created time.Time `json:"created"`
	Event   string    `json:"event"`
}

// TaskCounts counts spool entries by lifecycle status
type TaskCounts struct {
	Pending   int64
	Completed int64
	Failed    int64
}

// Customer is a top paying user in the window
type Customer struct {
	UserID       int64
	Login        string
	TotalSpent   decimal.Decimal
	PaymentCount int64
}

// Rowsets holds the raw result of a query battery. Detailed-only fields stay
// empty for the dashboard report.
type Rowsets struct {
	Counts             Counts
	Payments           []PaymentRecord
	PaymentTimeline    []PaymentDay
	PaySystems         []PaySystemTotal
	NewUsers           []DayCount
	Withdrawals        []WithdrawalDay
	SubscriptionGroups []SubscriptionGroup
	TopServices        []ServiceCount
	ServerGroups       []NamedCount
	Subscriptions      []SubscriptionRecord
	RecentPayments     []RecentPayment
	RecentTasks        []RecentTask

	SubscriptionTimeline   []DayCount
	SubscriptionsByService []NamedCount
	TaskCounts             TaskCounts
	TasksByEvent           []NamedCount
	TopCustomers           []Customer
}
