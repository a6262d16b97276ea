package analytics

import (
	"strconv"
	"strings"
	"time"
)

// Report names a report variant. It is part of the cache key.
type Report string

const (
	ReportDashboard Report = "dashboard"
	ReportDetailed  Report = "detailed"
)

// dateLayout is the calendar date format used for window bounds and timelines
const dateLayout = "2006-01-02"

// maxPeriodDays bounds explicit day counts; larger values fall back to the default
const maxPeriodDays = 3650

// Period is a normalized reporting period
type Period struct {
	// Label is the normalized request value: "month" or a decimal day count
	Label string
	Days  int
}

var (
	// DefaultDashboardPeriod is used when the dashboard period is missing or invalid
	DefaultDashboardPeriod = Period{Label: "7", Days: 7}
	// DefaultDetailedPeriod is used when the detailed period is missing or invalid
	DefaultDetailedPeriod = Period{Label: "month", Days: 30}
)

// DefaultPeriod returns the fallback period for a report
func DefaultPeriod(report Report) Period {
	if report == ReportDetailed {
		return DefaultDetailedPeriod
	}
	return DefaultDashboardPeriod
}

// ParsePeriod normalizes a raw period parameter for report. The "month" bucket
// exists only for the detailed report; the dashboard takes day counts. Malformed
// values are coerced to the report's default instead of being rejected.
func ParsePeriod(report Report, raw string) Period {
	fallback := DefaultPeriod(report)
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "month") {
		if report == ReportDetailed {
			return DefaultDetailedPeriod
		}
		return fallback
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxPeriodDays {
		return fallback
	}
	return Period{Label: strconv.Itoa(days), Days: days}
}

// Window is an inclusive range of calendar dates in UTC
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the window ending on the UTC date of now and starting
// days calendar days earlier.
func NewWindow(now time.Time, days int) Window {
	y, m, d := now.UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Window{
		Start: end.AddDate(0, 0, -days),
		End:   end,
	}
}

// StartDate returns the first day of the window as YYYY-MM-DD
func (w Window) StartDate() string {
	return w.Start.Format(dateLayout)
}

// EndDate returns the last day of the window as YYYY-MM-DD
func (w Window) EndDate() string {
	return w.End.Format(dateLayout)
}

// Days returns the number of calendar days between the bounds
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// args returns the window bounds as query parameters
func (w Window) args() []interface{} {
	return []interface{}{w.StartDate(), w.EndDate()}
}
