package analytics

import (
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	monthDays  = decimal.NewFromInt(30)
	zeroAmount = decimal.Zero
)

// Billable reports whether a payment system identifier counts towards
// revenue. Null, empty, "0" and "manual" (any case) mark administrative
// entries.
func Billable(paySystemID sql.NullString) bool {
	if !paySystemID.Valid {
		return false
	}
	id := paySystemID.String
	return id != "" && id != "0" && !strings.EqualFold(id, "manual")
}

// TotalRevenue sums billable payment amounts
func TotalRevenue(payments []PaymentRecord) decimal.Decimal {
	total := zeroAmount
	for _, p := range payments {
		if Billable(p.PaySystemID) {
			total = total.Add(p.Amount)
		}
	}
	return total
}

// PaymentCount counts billable payment records
func PaymentCount(payments []PaymentRecord) int64 {
	var n int64
	for _, p := range payments {
		if Billable(p.PaySystemID) {
			n++
		}
	}
	return n
}

// PayingUsers counts distinct users with at least one billable payment
func PayingUsers(payments []PaymentRecord) int64 {
	seen := make(map[int64]struct{})
	for _, p := range payments {
		if Billable(p.PaySystemID) {
			seen[p.UserID] = struct{}{}
		}
	}
	return int64(len(seen))
}

// TotalWithdraws sums withdrawal costs
func TotalWithdraws(days []WithdrawalDay) decimal.Decimal {
	total := zeroAmount
	for _, d := range days {
		total = total.Add(d.Total)
	}
	return total
}

// NetRevenue is revenue minus withdrawals
func NetRevenue(revenue, withdraws decimal.Decimal) decimal.Decimal {
	return revenue.Sub(withdraws)
}

// safeDiv returns 0 when the denominator is zero
func safeDiv(num decimal.Decimal, den int64) decimal.Decimal {
	if den == 0 {
		return zeroAmount
	}
	return num.Div(decimal.NewFromInt(den))
}

// ARPU is revenue per registered user
func ARPU(revenue decimal.Decimal, totalUsers int64) decimal.Decimal {
	return safeDiv(revenue, totalUsers)
}

// ARPPU is revenue per paying user
func ARPPU(revenue decimal.Decimal, payingUsers int64) decimal.Decimal {
	return safeDiv(revenue, payingUsers)
}

// LTV is approximated by ARPPU
func LTV(revenue decimal.Decimal, payingUsers int64) decimal.Decimal {
	return ARPPU(revenue, payingUsers)
}

// ConversionRate is the percentage of users that paid in the window
func ConversionRate(payingUsers, totalUsers int64) decimal.Decimal {
	return safeDiv(decimal.NewFromInt(payingUsers).Mul(hundred), totalUsers)
}

// AvgRevenuePerPayment is revenue per billable payment
func AvgRevenuePerPayment(revenue decimal.Decimal, paymentCount int64) decimal.Decimal {
	return safeDiv(revenue, paymentCount)
}

// AvgPaymentsPerUser is the number of payments per paying user
func AvgPaymentsPerUser(paymentCount, payingUsers int64) decimal.Decimal {
	return safeDiv(decimal.NewFromInt(paymentCount), payingUsers)
}

// ChurnRate is the percentage of expired subscriptions among expired and active ones
func ChurnRate(expired, active int64) decimal.Decimal {
	return safeDiv(decimal.NewFromInt(expired).Mul(hundred), expired+active)
}

// IsActive reports whether a subscription has status "active" (any case) and
// has not expired at now.
func IsActive(s SubscriptionRecord, now time.Time) bool {
	if !strings.EqualFold(strings.TrimSpace(s.Status), "active") {
		return false
	}
	return !s.Expire.Valid || s.Expire.Time.After(now)
}

// IsExpired reports whether a subscription has an expiry in the past
func IsExpired(s SubscriptionRecord, now time.Time) bool {
	return s.Expire.Valid && s.Expire.Time.Before(now)
}

// SubscriptionStates counts expired and active subscriptions at now
func SubscriptionStates(subs []SubscriptionRecord, now time.Time) (expired, active int64) {
	for _, s := range subs {
		switch {
		case IsActive(s, now):
			active++
		case IsExpired(s, now):
			expired++
		}
	}
	return expired, active
}

// MonthlyValue normalizes a subscription cost to a 30-day month. The second
// return is false when the billing period is not positive.
func MonthlyValue(cost, periodDays decimal.Decimal) (decimal.Decimal, bool) {
	if !periodDays.IsPositive() {
		return zeroAmount, false
	}
	return cost.Mul(monthDays).Div(periodDays), true
}

// MRRResult is monthly recurring revenue and the subscriptions it covers
type MRRResult struct {
	MRR                 decimal.Decimal
	ActiveSubscriptions int64
}

// MRR sums the monthly value of active subscriptions. Subscriptions whose
// service period is not positive are excluded from both the sum and the count.
func MRR(subs []SubscriptionRecord, now time.Time) MRRResult {
	res := MRRResult{MRR: zeroAmount}
	for _, s := range subs {
		if !IsActive(s, now) {
			continue
		}
		v, ok := MonthlyValue(s.Cost, s.Period)
		if !ok {
			continue
		}
		res.MRR = res.MRR.Add(v)
		res.ActiveSubscriptions++
	}
	return res
}

// AvgSubscriptionValue is MRR per counted active subscription
func AvgSubscriptionValue(mrr decimal.Decimal, activeSubscriptions int64) decimal.Decimal {
	return safeDiv(mrr, activeSubscriptions)
}

// Metrics are the derived values of one report computation
type Metrics struct {
	TotalRevenue         decimal.Decimal
	TotalWithdraws       decimal.Decimal
	NetRevenue           decimal.Decimal
	PaymentCount         int64
	PayingUsers          int64
	TotalUsers           int64
	ARPU                 decimal.Decimal
	ARPPU                decimal.Decimal
	LTV                  decimal.Decimal
	ConversionRate       decimal.Decimal
	AvgRevenuePerPayment decimal.Decimal
	AvgPaymentsPerUser   decimal.Decimal
	ExpiredSubscriptions int64
	ActiveSubscriptions  int64
	ChurnRate            decimal.Decimal
	MRR                  MRRResult
	AvgSubscriptionValue decimal.Decimal
}

// Calculate derives all metrics from a battery result
func Calculate(rs *Rowsets, now time.Time) Metrics {
	m := Metrics{
		TotalRevenue:   TotalRevenue(rs.Payments),
		TotalWithdraws: TotalWithdraws(rs.Withdrawals),
		PaymentCount:   PaymentCount(rs.Payments),
		PayingUsers:    PayingUsers(rs.Payments),
		TotalUsers:     rs.Counts.TotalUsers,
	}
	m.NetRevenue = NetRevenue(m.TotalRevenue, m.TotalWithdraws)
	m.ARPU = ARPU(m.TotalRevenue, m.TotalUsers)
	m.ARPPU = ARPPU(m.TotalRevenue, m.PayingUsers)
	m.LTV = LTV(m.TotalRevenue, m.PayingUsers)
	m.ConversionRate = ConversionRate(m.PayingUsers, m.TotalUsers)
	m.AvgRevenuePerPayment = AvgRevenuePerPayment(m.TotalRevenue, m.PaymentCount)
	m.AvgPaymentsPerUser = AvgPaymentsPerUser(m.PaymentCount, m.PayingUsers)

	m.ExpiredSubscriptions, m.ActiveSubscriptions = SubscriptionStates(rs.Subscriptions, now)
	m.ChurnRate = ChurnRate(m.ExpiredSubscriptions, m.ActiveSubscriptions)

	m.MRR = MRR(rs.Subscriptions, now)
	m.AvgSubscriptionValue = AvgSubscriptionValue(m.MRR.MRR, m.MRR.ActiveSubscriptions)
	return m
}
