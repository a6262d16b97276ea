package analytics

import (
	"context"
	"database/sql"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// DefaultQueryParallelism is the number of battery queries in flight per request
const DefaultQueryParallelism = 4

// step is one query of a battery. Each step writes only its own Rowsets fields.
type step struct {
	name string
	run  func(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error
}

var dashboardSteps = []step{
	{"counts", loadCounts},
	{"payment_records", loadPaymentRecords},
	{"payment_timeline", loadPaymentTimeline},
	{"pay_systems", loadPaySystems},
	{"new_users", loadNewUsers},
	{"withdrawals", loadWithdrawals},
	{"subscription_groups", loadSubscriptionGroups},
	{"top_services", loadTopServices},
	{"server_groups", loadServerGroups},
	{"subscriptions", loadSubscriptions},
	{"recent_payments", loadRecentPayments},
	{"recent_tasks", loadRecentTasks},
}

var detailedSteps = append(append([]step{}, dashboardSteps...),
	step{"subscription_timeline", loadSubscriptionTimeline},
	step{"subscriptions_by_service", loadSubscriptionsByService},
	step{"task_counts", loadTaskCounts},
	step{"tasks_by_event", loadTasksByEvent},
	step{"top_customers", loadTopCustomers},
)

func stepsFor(report Report) []step {
	if report == ReportDetailed {
		return detailedSteps
	}
	return dashboardSteps
}

// Planner issues the query battery of a report against the billing schema
type Planner struct {
	db          *sql.DB
	parallelism int
	tracer      trace.Tracer
}

// NewPlanner creates a planner running at most parallelism queries at once
func NewPlanner(db *sql.DB, parallelism int) *Planner {
	if parallelism < 1 {
		parallelism = DefaultQueryParallelism
	}
	return &Planner{
		db:          db,
		parallelism: parallelism,
		tracer:      otel.Tracer("github.com/shmadmin/billing-analytics/pkg/analytics"),
	}
}

// Run executes every query of the report's battery for the window. The first
// failure cancels the remaining queries and is returned as a *QueryError.
func (p *Planner) Run(ctx context.Context, report Report, w Window) (*Rowsets, error) {
	steps := stepsFor(report)

	ctx, span := p.tracer.Start(ctx, "analytics.battery", trace.WithAttributes(
		attribute.String("analytics.report", string(report)),
		attribute.String("analytics.window.start", w.StartDate()),
		attribute.String("analytics.window.end", w.EndDate()),
		attribute.Int("analytics.window.days", w.Days()),
		attribute.Int("analytics.queries", len(steps)),
	))
	defer span.End()

	rs := &Rowsets{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)

	for _, s := range steps {
		s := s
		g.Go(func() error {
			if err := s.run(gctx, p.db, w, rs); err != nil {
				return &QueryError{Query: s.name, Err: err}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return rs, nil
}

func loadCounts(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	c := &rs.Counts
	return db.QueryRowContext(ctx, countsQuery).Scan(
		&c.TotalUsers,
		&c.TotalServices,
		&c.TotalServers,
		&c.ActiveUserServices,
		&c.TotalPayments,
		&c.TotalWithdraws,
		&c.PendingTasks,
	)
}

func loadPaymentRecords(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, paymentRecordsQuery, w.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p PaymentRecord
		if err := rows.Scan(&p.UserID, &p.PaySystemID, &p.Amount); err != nil {
			return err
		}
		rs.Payments = append(rs.Payments, p)
	}
	return rows.Err()
}

func loadPaymentTimeline(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, paymentTimelineQuery, w.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d PaymentDay
		if err := rows.Scan(&d.Date, &d.PaySystemID, &d.Total, &d.Count); err != nil {
			return err
		}
		rs.PaymentTimeline = append(rs.PaymentTimeline, d)
	}
	return rows.Err()
}

func loadPaySystems(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, paySystemsQuery, w.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ps PaySystemTotal
		if err := rows.Scan(&ps.PaySystemID, &ps.Total, &ps.Count); err != nil {
			return err
		}
		rs.PaySystems = append(rs.PaySystems, ps)
	}
	return rows.Err()
}

func loadNewUsers(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	days, err := scanDayCounts(ctx, db, newUsersQuery, w.args()...)
	rs.NewUsers = days
	return err
}

func loadWithdrawals(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, withdrawalsQuery, w.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d WithdrawalDay
		if err := rows.Scan(&d.Date, &d.Total, &d.Count); err != nil {
			return err
		}
		rs.Withdrawals = append(rs.Withdrawals, d)
	}
	return rows.Err()
}

func loadSubscriptionGroups(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, subscriptionGroupsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var g SubscriptionGroup
		if err := rows.Scan(&g.Status, &g.ServiceName, &g.Count, &g.Revenue); err != nil {
			return err
		}
		rs.SubscriptionGroups = append(rs.SubscriptionGroups, g)
	}
	return rows.Err()
}

func loadTopServices(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, topServicesQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var s ServiceCount
		if err := rows.Scan(&s.Name, &s.Count, &s.Revenue); err != nil {
			return err
		}
		rs.TopServices = append(rs.TopServices, s)
	}
	return rows.Err()
}

func loadServerGroups(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	groups, err := scanNamedCounts(ctx, db, serverGroupsQuery)
	rs.ServerGroups = groups
	return err
}

func loadSubscriptions(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, subscriptionsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var s SubscriptionRecord
		if err := rows.Scan(&s.ID, &s.Status, &s.Expire, &s.Cost, &s.Period); err != nil {
			return err
		}
		rs.Subscriptions = append(rs.Subscriptions, s)
	}
	return rows.Err()
}

func loadRecentPayments(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, recentPaymentsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p RecentPayment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Money, &p.Date, &p.PaySystemID, &p.Login); err != nil {
			return err
		}
		p.Date = p.Date.UTC()
		rs.RecentPayments = append(rs.RecentPayments, p)
	}
	return rows.Err()
}

func loadRecentTasks(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, recentTasksQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var t RecentTask
		if err := rows.Scan(&t.ID, &t.UserID, &t.Status, &t.Created, &t.Event); err != nil {
			return err
		}
		t.Created = t.Created.UTC()
		rs.RecentTasks = append(rs.RecentTasks, t)
	}
	return rows.Err()
}

func loadSubscriptionTimeline(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	days, err := scanDayCounts(ctx, db, subscriptionTimelineQuery, w.args()...)
	rs.SubscriptionTimeline = days
	return err
}

func loadSubscriptionsByService(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	services, err := scanNamedCounts(ctx, db, subscriptionsByServiceQuery)
	rs.SubscriptionsByService = services
	return err
}

func loadTaskCounts(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	t := &rs.TaskCounts
	return db.QueryRowContext(ctx, taskCountsQuery).Scan(&t.Pending, &t.Completed, &t.Failed)
}

func loadTasksByEvent(ctx context.Context, db *sql.DB, _ Window, rs *Rowsets) error {
	events, err := scanNamedCounts(ctx, db, tasksByEventQuery)
	rs.TasksByEvent = events
	return err
}

func loadTopCustomers(ctx context.Context, db *sql.DB, w Window, rs *Rowsets) error {
	rows, err := db.QueryContext(ctx, topCustomersQuery, w.args()...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.UserID, &c.Login, &c.TotalSpent, &c.PaymentCount); err != nil {
			return err
		}
		rs.TopCustomers = append(rs.TopCustomers, c)
	}
	return rows.Err()
}

func scanDayCounts(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]DayCount, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DayCount
	for rows.Next() {
		var d DayCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func scanNamedCounts(ctx context.Context, db *sql.DB, query string, args ...interface{}) ([]NamedCount, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NamedCount
	for rows.Next() {
		var n NamedCount
		if err := rows.Scan(&n.Name, &n.Count); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
