package analytics

import (
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shmadmin/billing-analytics/pkg/health"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// testNow is the reference instant of every service test
var testNow = time.Date(2026, 3, 8, 15, 30, 0, 0, time.UTC)

var dashboardQueries = []string{
	countsQuery,
	paymentRecordsQuery,
	paymentTimelineQuery,
	paySystemsQuery,
	newUsersQuery,
	withdrawalsQuery,
	subscriptionGroupsQuery,
	topServicesQuery,
	serverGroupsQuery,
	subscriptionsQuery,
	recentPaymentsQuery,
	recentTasksQuery,
}

var detailedQueries = append(append([]string{}, dashboardQueries...),
	subscriptionTimelineQuery,
	subscriptionsByServiceQuery,
	taskCountsQuery,
	tasksByEventQuery,
	topCustomersQuery,
)

var windowedQueries = map[string]bool{
	paymentRecordsQuery:       true,
	paymentTimelineQuery:      true,
	paySystemsQuery:           true,
	newUsersQuery:             true,
	withdrawalsQuery:          true,
	subscriptionTimelineQuery: true,
	topCustomersQuery:         true,
}

var queryColumns = map[string][]string{
	countsQuery:                 {"total_users", "total_services", "total_servers", "active_user_services", "total_payments", "total_withdraws", "pending_tasks"},
	paymentRecordsQuery:         {"user_id", "pay_system_id", "money"},
	paymentTimelineQuery:        {"payment_date", "pay_system_id", "total", "count"},
	paySystemsQuery:             {"pay_system_id", "total", "count"},
	newUsersQuery:               {"day", "count"},
	withdrawalsQuery:            {"day", "total", "count"},
	subscriptionGroupsQuery:     {"status", "service_name", "count", "revenue"},
	topServicesQuery:            {"name", "count", "revenue"},
	serverGroupsQuery:           {"group_name", "count"},
	subscriptionsQuery:          {"user_service_id", "status", "expire", "cost", "period"},
	recentPaymentsQuery:         {"id", "user_id", "money", "date", "pay_system_id", "login"},
	recentTasksQuery:            {"id", "user_id", "status", "created", "event"},
	subscriptionTimelineQuery:   {"day", "count"},
	subscriptionsByServiceQuery: {"name", "count"},
	taskCountsQuery:             {"pending", "completed", "failed"},
	tasksByEventQuery:           {"event", "count"},
	topCustomersQuery:           {"user_id", "login", "total_spent", "payment_count"},
}

func queriesFor(report Report) []string {
	if report == ReportDetailed {
		return detailedQueries
	}
	return dashboardQueries
}

func rowsFor(query string) *sqlmock.Rows {
	return sqlmock.NewRows(queryColumns[query])
}

// emptyRows returns the result of a query over an empty schema
func emptyRows(query string) *sqlmock.Rows {
	rows := rowsFor(query)
	switch query {
	case countsQuery:
		rows.AddRow(0, 0, 0, 0, 0, 0, 0)
	case taskCountsQuery:
		rows.AddRow(0, 0, 0)
	}
	return rows
}

// expectBattery registers the full query battery of a report. Queries not in
// overrides return an empty result.
func expectBattery(mock sqlmock.Sqlmock, report Report, w Window, overrides map[string]*sqlmock.Rows) {
	for _, q := range queriesFor(report) {
		rows := overrides[q]
		if rows == nil {
			rows = emptyRows(q)
		}
		e := mock.ExpectQuery(q)
		if windowedQueries[q] {
			e = e.WithArgs(w.StartDate(), w.EndDate())
		}
		e.WillReturnRows(rows)
	}
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// readyTracker returns a tracker with the given stores marked ready
func readyTracker(stores ...health.Store) *health.Tracker {
	tr := health.NewTracker(testLogger(), nil)
	for _, s := range stores {
		tr.Observe(s, health.EventReady)
	}
	return tr
}

// sampleBattery returns a small but complete billing dataset for the window
func sampleBattery() map[string]*sqlmock.Rows {
	return map[string]*sqlmock.Rows{
		countsQuery: rowsFor(countsQuery).AddRow(10, 4, 3, 5, 120, 40, 2),
		paymentRecordsQuery: rowsFor(paymentRecordsQuery).
			AddRow(1, "yookassa", "100.00").
			AddRow(2, "cryptobot", "200.00").
			AddRow(1, "yookassa", "50.00"),
		paymentTimelineQuery: rowsFor(paymentTimelineQuery).
			AddRow("2026-03-02", "yookassa", "100.00", 1).
			AddRow("2026-03-02", "cryptobot", "200.00", 1).
			AddRow("2026-03-05", "yookassa", "50.00", 1),
		paySystemsQuery: rowsFor(paySystemsQuery).
			AddRow("cryptobot", "200.00", 1).
			AddRow("yookassa", "150.00", 2),
		newUsersQuery: rowsFor(newUsersQuery).
			AddRow("2026-03-01", 2).
			AddRow("2026-03-04", 1),
		withdrawalsQuery: rowsFor(withdrawalsQuery).
			AddRow("2026-03-03", "30.00", 2),
		subscriptionGroupsQuery: rowsFor(subscriptionGroupsQuery).
			AddRow("ACTIVE", "VPN", 3, "300.00").
			AddRow("BLOCK", "VPN", 1, "100.00").
			AddRow("ACTIVE", "Proxy", 2, "60.00"),
		topServicesQuery: rowsFor(topServicesQuery).
			AddRow("VPN", 3, "300.00").
			AddRow("Proxy", 2, "60.00"),
		serverGroupsQuery: rowsFor(serverGroupsQuery).
			AddRow("1", 2).
			AddRow("ungrouped", 1),
		subscriptionsQuery: rowsFor(subscriptionsQuery).
			AddRow(1, "ACTIVE", nil, "100.00", "30").
			AddRow(2, "active", testNow.Add(24*time.Hour), "90.00", "90").
			AddRow(3, "ACTIVE", testNow.Add(-24*time.Hour), "100.00", "30").
			AddRow(4, "ACTIVE", nil, "50.00", "0"),
		recentPaymentsQuery: rowsFor(recentPaymentsQuery).
			AddRow(7, 1, "50.00", testNow.Add(-72*time.Hour), "yookassa", "alice"),
		recentTasksQuery: rowsFor(recentTasksQuery).
			AddRow(11, 2, "NEW", testNow.Add(-time.Hour), "create"),
	}
}
