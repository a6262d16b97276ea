package analytics

import (
	"github.com/shopspring/decimal"
)

const dashboardPaySystemLimit = 10

// NameValue is a labelled chart value
type NameValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// DateValue is a point of a sparse daily series on the dashboard charts
type DateValue struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DateTotal is a point of a sparse daily money series in the detailed report
type DateTotal struct {
	Date  string  `json:"date"`
	Total float64 `json:"total"`
}

// CountsBlock holds the scalar counters
type CountsBlock struct {
	TotalUsers         int64 `json:"totalUsers"`
	TotalServices      int64 `json:"totalServices"`
	TotalServers       int64 `json:"totalServers"`
	ActiveUserServices int64 `json:"activeUserServices"`
	RecentPayments     int64 `json:"recentPayments"`
	TotalWithdraws     int64 `json:"totalWithdraws"`
	PendingTasks       int64 `json:"pendingTasks"`
}

// PaymentPoint is a detailed payment total for one date and payment system
type PaymentPoint struct {
	Date        string  `json:"date"`
	PaySystemID string  `json:"paySystemId"`
	Total       float64 `json:"total"`
	Count       int64   `json:"count"`
}

// PaySystemStat is the window total of one payment system
type PaySystemStat struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
	Count int64   `json:"count"`
}

// DashboardPayments is the payments section of the dashboard report
type DashboardPayments struct {
	Total       float64     `json:"total"`
	Count       int64       `json:"count"`
	ByPaySystem []NameValue `json:"byPaySystem"`
	Timeline    []DateValue `json:"timeline"`
}

// DetailedPayments is the payments section of the detailed report
type DetailedPayments struct {
	Total       float64         `json:"total"`
	Count       int64           `json:"count"`
	Timeline    []PaymentPoint  `json:"timeline"`
	ByPaySystem []PaySystemStat `json:"byPaySystem"`
}

// DashboardUsers describes user growth on the dashboard
type DashboardUsers struct {
	Total    int64       `json:"total"`
	NewUsers int64       `json:"newUsers"`
	Timeline []DateValue `json:"timeline"`
}

// DetailedUsers describes user growth in the detailed report
type DetailedUsers struct {
	Total    int64       `json:"total"`
	NewUsers int64       `json:"newUsers"`
	Timeline []DateCount `json:"timeline"`
}

// DashboardRevenue holds revenue and withdrawal totals and chart series
type DashboardRevenue struct {
	TotalRevenue     float64     `json:"totalRevenue"`
	TotalWithdraws   float64     `json:"totalWithdraws"`
	NetRevenue       float64     `json:"netRevenue"`
	RevenueTimeline  []DateValue `json:"revenueTimeline"`
	WithdrawTimeline []DateValue `json:"withdrawTimeline"`
}

// DetailedRevenue holds revenue and withdrawal totals and daily totals
type DetailedRevenue struct {
	TotalRevenue     float64     `json:"totalRevenue"`
	TotalWithdraws   float64     `json:"totalWithdraws"`
	NetRevenue       float64     `json:"netRevenue"`
	RevenueTimeline  []DateTotal `json:"revenueTimeline"`
	WithdrawTimeline []DateTotal `json:"withdrawTimeline"`
}

// ServiceStat is a service ranked by active subscriptions
type ServiceStat struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	Revenue float64 `json:"revenue"`
}

// ServicesBlock is the subscription section of the dashboard report
type ServicesBlock struct {
	Total       int64         `json:"total"`
	ByStatus    []NameValue   `json:"byStatus"`
	TopServices []ServiceStat `json:"topServices"`
}

// ServersBlock groups enabled servers
type ServersBlock struct {
	Total   int64       `json:"total"`
	ByGroup []NameValue `json:"byGroup"`
}

// FinancialBlock holds the derived per-user metrics
type FinancialBlock struct {
	ARPU                 float64  `json:"arpu"`
	ARPPU                float64  `json:"arppu"`
	LTV                  *float64 `json:"ltv,omitempty"`
	ChurnRate            *float64 `json:"churnRate,omitempty"`
	PayingUsersCount     int64    `json:"payingUsersCount"`
	TotalUsers           int64    `json:"totalUsers"`
	AvgRevenuePerPayment *float64 `json:"avgRevenuePerPayment,omitempty"`
	AvgPaymentsPerUser   *float64 `json:"avgPaymentsPerUser,omitempty"`
	ConversionRate       float64  `json:"conversionRate"`
}

// MRRBlock holds recurring revenue
type MRRBlock struct {
	MRR                  float64  `json:"mrr"`
	ActiveSubscriptions  int64    `json:"activeSubscriptions"`
	AvgSubscriptionValue float64  `json:"avgSubscriptionValue"`
	MRRGrowth            *float64 `json:"mrrGrowth,omitempty"`
}

// RecentBlock lists the latest payments and tasks
type RecentBlock struct {
	Payments []RecentPayment `json:"payments"`
	Tasks    []RecentTask    `json:"tasks"`
}

// DashboardReport is the payload of the dashboard summary
type DashboardReport struct {
	Counts    CountsBlock       `json:"counts"`
	Payments  DashboardPayments `json:"payments"`
	Users     DashboardUsers    `json:"users"`
	Revenue   DashboardRevenue  `json:"revenue"`
	Services  ServicesBlock     `json:"services"`
	Servers   ServersBlock      `json:"servers"`
	Financial FinancialBlock    `json:"financial"`
	MRR       MRRBlock          `json:"mrr"`
	Recent    RecentBlock       `json:"recent"`
}

// PeriodBlock echoes the resolved reporting window
type PeriodBlock struct {
	Type      string `json:"type"`
	Days      int    `json:"days"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// StatusCount counts subscriptions with one status
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// NameCount is a labelled counter
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DateCount is a point of a sparse daily counter series
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// UserServicesBlock breaks subscriptions down by status, service and creation date
type UserServicesBlock struct {
	Total     int64         `json:"total"`
	ByStatus  []StatusCount `json:"byStatus"`
	ByService []NameCount   `json:"byService"`
	Timeline  []DateCount   `json:"timeline"`
}

// TasksBlock breaks spool entries down by status and event
type TasksBlock struct {
	Pending   int64       `json:"pending"`
	Completed int64       `json:"completed"`
	Failed    int64       `json:"failed"`
	ByEvent   []NameValue `json:"byEvent"`
}

// CustomerStat is a top paying customer
type CustomerStat struct {
	UserID       int64   `json:"userId"`
	Username     string  `json:"username"`
	TotalSpent   float64 `json:"totalSpent"`
	PaymentCount int64   `json:"paymentCount"`
}

// DetailedReport is the payload of the detailed analytics report
type DetailedReport struct {
	Period       PeriodBlock       `json:"period"`
	Counts       CountsBlock       `json:"counts"`
	Payments     DetailedPayments  `json:"payments"`
	Users        DetailedUsers     `json:"users"`
	Revenue      DetailedRevenue   `json:"revenue"`
	UserServices UserServicesBlock `json:"userServices"`
	Tasks        TasksBlock        `json:"tasks"`
	TopServices  []ServiceStat     `json:"topServices"`
	Servers      ServersBlock      `json:"servers"`
	Financial    FinancialBlock    `json:"financial"`
	TopCustomers []CustomerStat    `json:"topCustomers"`
	MRR          MRRBlock          `json:"mrr"`
	Recent       RecentBlock       `json:"recent"`
}

// AssembleDashboard shapes a battery result and its metrics into the dashboard payload
func AssembleDashboard(rs *Rowsets, m Metrics) DashboardReport {
	paySystems := rs.PaySystems
	if len(paySystems) > dashboardPaySystemLimit {
		paySystems = paySystems[:dashboardPaySystemLimit]
	}
	byPaySystem := make([]NameValue, 0, len(paySystems))
	for _, ps := range paySystems {
		byPaySystem = append(byPaySystem, NameValue{Name: ps.PaySystemID, Value: ps.Total.InexactFloat64()})
	}

	return DashboardReport{
		Counts: countsBlock(rs.Counts),
		Payments: DashboardPayments{
			Total:       m.TotalRevenue.InexactFloat64(),
			Count:       m.PaymentCount,
			ByPaySystem: byPaySystem,
			Timeline:    paymentValues(rs.PaymentTimeline),
		},
		Users: DashboardUsers{
			Total:    rs.Counts.TotalUsers,
			NewUsers: sumCounts(rs.NewUsers),
			Timeline: countValues(rs.NewUsers),
		},
		Revenue: DashboardRevenue{
			TotalRevenue:     m.TotalRevenue.InexactFloat64(),
			TotalWithdraws:   m.TotalWithdraws.InexactFloat64(),
			NetRevenue:       m.NetRevenue.InexactFloat64(),
			RevenueTimeline:  dailyRevenueValues(rs.PaymentTimeline),
			WithdrawTimeline: withdrawalValues(rs.Withdrawals),
		},
		Services: servicesBlock(rs),
		Servers:  serversBlock(rs),
		Financial: FinancialBlock{
			ARPU:             m.ARPU.InexactFloat64(),
			ARPPU:            m.ARPPU.InexactFloat64(),
			PayingUsersCount: m.PayingUsers,
			TotalUsers:       m.TotalUsers,
			ConversionRate:   m.ConversionRate.InexactFloat64(),
		},
		MRR: MRRBlock{
			MRR:                  m.MRR.MRR.InexactFloat64(),
			ActiveSubscriptions:  m.MRR.ActiveSubscriptions,
			AvgSubscriptionValue: m.AvgSubscriptionValue.InexactFloat64(),
		},
		Recent: recentBlock(rs),
	}
}

// AssembleDetailed shapes a battery result and its metrics into the detailed payload
func AssembleDetailed(rs *Rowsets, m Metrics, p Period, w Window) DetailedReport {
	byPaySystem := make([]PaySystemStat, 0, len(rs.PaySystems))
	for _, ps := range rs.PaySystems {
		byPaySystem = append(byPaySystem, PaySystemStat{
			Name:  ps.PaySystemID,
			Total: ps.Total.InexactFloat64(),
			Count: ps.Count,
		})
	}

	byEvent := make([]NameValue, 0, len(rs.TasksByEvent))
	for _, e := range rs.TasksByEvent {
		byEvent = append(byEvent, NameValue{Name: e.Name, Value: float64(e.Count)})
	}

	customers := make([]CustomerStat, 0, len(rs.TopCustomers))
	for _, c := range rs.TopCustomers {
		customers = append(customers, CustomerStat{
			UserID:       c.UserID,
			Username:     c.Login,
			TotalSpent:   c.TotalSpent.InexactFloat64(),
			PaymentCount: c.PaymentCount,
		})
	}

	growth := 0.0
	return DetailedReport{
		Period: PeriodBlock{
			Type:      p.Label,
			Days:      p.Days,
			StartDate: w.StartDate(),
			EndDate:   w.EndDate(),
		},
		Counts: countsBlock(rs.Counts),
		Payments: DetailedPayments{
			Total:       m.TotalRevenue.InexactFloat64(),
			Count:       m.PaymentCount,
			Timeline:    paymentPoints(rs.PaymentTimeline),
			ByPaySystem: byPaySystem,
		},
		Users: DetailedUsers{
			Total:    rs.Counts.TotalUsers,
			NewUsers: sumCounts(rs.NewUsers),
			Timeline: dateCounts(rs.NewUsers),
		},
		Revenue: DetailedRevenue{
			TotalRevenue:     m.TotalRevenue.InexactFloat64(),
			TotalWithdraws:   m.TotalWithdraws.InexactFloat64(),
			NetRevenue:       m.NetRevenue.InexactFloat64(),
			RevenueTimeline:  dailyRevenueTotals(rs.PaymentTimeline),
			WithdrawTimeline: withdrawalTotals(rs.Withdrawals),
		},
		UserServices: UserServicesBlock{
			Total:     sumGroups(rs.SubscriptionGroups),
			ByStatus:  statusCounts(rs.SubscriptionGroups),
			ByService: nameCounts(rs.SubscriptionsByService),
			Timeline:  dateCounts(rs.SubscriptionTimeline),
		},
		Tasks: TasksBlock{
			Pending:   rs.TaskCounts.Pending,
			Completed: rs.TaskCounts.Completed,
			Failed:    rs.TaskCounts.Failed,
			ByEvent:   byEvent,
		},
		TopServices: serviceStats(rs.TopServices),
		Servers:     serversBlock(rs),
		Financial: FinancialBlock{
			ARPU:                 m.ARPU.InexactFloat64(),
			ARPPU:                m.ARPPU.InexactFloat64(),
			LTV:                  floatPtr(m.LTV),
			ChurnRate:            floatPtr(m.ChurnRate),
			PayingUsersCount:     m.PayingUsers,
			TotalUsers:           m.TotalUsers,
			AvgRevenuePerPayment: floatPtr(m.AvgRevenuePerPayment),
			AvgPaymentsPerUser:   floatPtr(m.AvgPaymentsPerUser),
			ConversionRate:       m.ConversionRate.InexactFloat64(),
		},
		TopCustomers: customers,
		MRR: MRRBlock{
			MRR:                  m.MRR.MRR.InexactFloat64(),
			ActiveSubscriptions:  m.MRR.ActiveSubscriptions,
			AvgSubscriptionValue: m.AvgSubscriptionValue.InexactFloat64(),
			// No prior-period snapshot is stored, so growth is reported as zero
			MRRGrowth: &growth,
		},
		Recent: recentBlock(rs),
	}
}

func floatPtr(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}

func countsBlock(c Counts) CountsBlock {
	return CountsBlock{
		TotalUsers:         c.TotalUsers,
		TotalServices:      c.TotalServices,
		TotalServers:       c.TotalServers,
		ActiveUserServices: c.ActiveUserServices,
		RecentPayments:     c.TotalPayments,
		TotalWithdraws:     c.TotalWithdraws,
		PendingTasks:       c.PendingTasks,
	}
}

func paymentPoints(days []PaymentDay) []PaymentPoint {
	out := make([]PaymentPoint, 0, len(days))
	for _, d := range days {
		out = append(out, PaymentPoint{
			Date:        d.Date,
			PaySystemID: d.PaySystemID,
			Total:       d.Total.InexactFloat64(),
			Count:       d.Count,
		})
	}
	return out
}

// paymentValues keeps one dashboard point per date and payment system
func paymentValues(days []PaymentDay) []DateValue {
	out := make([]DateValue, 0, len(days))
	for _, d := range days {
		out = append(out, DateValue{Date: d.Date, Value: d.Total.InexactFloat64()})
	}
	return out
}

func sumCounts(days []DayCount) int64 {
	var n int64
	for _, d := range days {
		n += d.Count
	}
	return n
}

func countValues(days []DayCount) []DateValue {
	out := make([]DateValue, 0, len(days))
	for _, d := range days {
		out = append(out, DateValue{Date: d.Date, Value: float64(d.Count)})
	}
	return out
}

// dailyRevenue merges the per-payment-system timeline into one total per date,
// keeping first-seen date order
func dailyRevenue(days []PaymentDay) ([]string, map[string]decimal.Decimal) {
	var dates []string
	totals := make(map[string]decimal.Decimal, len(days))
	for _, d := range days {
		if _, ok := totals[d.Date]; !ok {
			dates = append(dates, d.Date)
		}
		totals[d.Date] = totals[d.Date].Add(d.Total)
	}
	return dates, totals
}

func dailyRevenueValues(days []PaymentDay) []DateValue {
	dates, totals := dailyRevenue(days)
	out := make([]DateValue, 0, len(dates))
	for _, date := range dates {
		out = append(out, DateValue{Date: date, Value: totals[date].InexactFloat64()})
	}
	return out
}

func dailyRevenueTotals(days []PaymentDay) []DateTotal {
	dates, totals := dailyRevenue(days)
	out := make([]DateTotal, 0, len(dates))
	for _, date := range dates {
		out = append(out, DateTotal{Date: date, Total: totals[date].InexactFloat64()})
	}
	return out
}

func withdrawalValues(days []WithdrawalDay) []DateValue {
	out := make([]DateValue, 0, len(days))
	for _, d := range days {
		out = append(out, DateValue{Date: d.Date, Value: d.Total.InexactFloat64()})
	}
	return out
}

func withdrawalTotals(days []WithdrawalDay) []DateTotal {
	out := make([]DateTotal, 0, len(days))
	for _, d := range days {
		out = append(out, DateTotal{Date: d.Date, Total: d.Total.InexactFloat64()})
	}
	return out
}

func servicesBlock(rs *Rowsets) ServicesBlock {
	statuses := statusCounts(rs.SubscriptionGroups)
	byStatus := make([]NameValue, 0, len(statuses))
	for _, s := range statuses {
		byStatus = append(byStatus, NameValue{Name: s.Status, Value: float64(s.Count)})
	}
	return ServicesBlock{
		Total:       rs.Counts.ActiveUserServices,
		ByStatus:    byStatus,
		TopServices: serviceStats(rs.TopServices),
	}
}

// statusCounts folds (status, service) groups into per-status totals in first-seen order
func sumGroups(groups []SubscriptionGroup) int64 {
	var n int64
	for _, g := range groups {
		n += g.Count
	}
	return n
}

func statusCounts(groups []SubscriptionGroup) []StatusCount {
	out := make([]StatusCount, 0)
	index := make(map[string]int)
	for _, g := range groups {
		if i, ok := index[g.Status]; ok {
			out[i].Count += g.Count
			continue
		}
		index[g.Status] = len(out)
		out = append(out, StatusCount{Status: g.Status, Count: g.Count})
	}
	return out
}

func serviceStats(services []ServiceCount) []ServiceStat {
	out := make([]ServiceStat, 0, len(services))
	for _, s := range services {
		out = append(out, ServiceStat{Name: s.Name, Count: s.Count, Revenue: s.Revenue.InexactFloat64()})
	}
	return out
}

func serversBlock(rs *Rowsets) ServersBlock {
	groups := make([]NameValue, 0, len(rs.ServerGroups))
	for _, g := range rs.ServerGroups {
		groups = append(groups, NameValue{Name: g.Name, Value: float64(g.Count)})
	}
	return ServersBlock{
		Total:   rs.Counts.TotalServers,
		ByGroup: groups,
	}
}

func recentBlock(rs *Rowsets) RecentBlock {
	payments := rs.RecentPayments
	if payments == nil {
		payments = []RecentPayment{}
	}
	tasks := rs.RecentTasks
	if tasks == nil {
		tasks = []RecentTask{}
	}
	return RecentBlock{Payments: payments, Tasks: tasks}
}

func nameCounts(in []NamedCount) []NameCount {
	out := make([]NameCount, 0, len(in))
	for _, n := range in {
		out = append(out, NameCount{Name: n.Name, Count: n.Count})
	}
	return out
}

func dateCounts(in []DayCount) []DateCount {
	out := make([]DateCount, 0, len(in))
	for _, d := range in {
		out = append(out, DateCount{Date: d.Date, Count: d.Count})
	}
	return out
}
