package analytics

// Every query below takes its window bounds as parameters. Date columns are
// compared with a half-open range ending the day after the window end so the
// end date is included in full.

const billablePayment = `
		AND pay_system_id IS NOT NULL
		AND pay_system_id != ''
		AND pay_system_id != '0'
		AND LOWER(pay_system_id) != 'manual'`

const paymentWindow = `date >= ? AND date < DATE_ADD(?, INTERVAL 1 DAY)`

const countsQuery = `
	SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM services WHERE deleted = 0) AS total_services,
		(SELECT COUNT(*) FROM servers WHERE enabled = 1) AS total_servers,
		(SELECT COUNT(*) FROM user_services WHERE LOWER(status) = 'active') AS active_user_services,
		(SELECT COUNT(*) FROM pays_history) AS total_payments,
		(SELECT COUNT(*) FROM withdraw_history) AS total_withdraws,
		(SELECT COUNT(*) FROM spool WHERE status = 'NEW') AS pending_tasks
`

const paymentRecordsQuery = `
	SELECT user_id, pay_system_id, money
	FROM pays_history
	WHERE ` + paymentWindow + billablePayment + `
`

const paymentTimelineQuery = `
	SELECT
		DATE_FORMAT(date, '%Y-%m-%d') AS payment_date,
		pay_system_id,
		COALESCE(SUM(money), 0) AS total,
		COUNT(*) AS count
	FROM pays_history
	WHERE ` + paymentWindow + billablePayment + `
	GROUP BY payment_date, pay_system_id
	ORDER BY payment_date
`

const paySystemsQuery = `
	SELECT pay_system_id, COALESCE(SUM(money), 0) AS total, COUNT(*) AS count
	FROM pays_history
	WHERE ` + paymentWindow + billablePayment + `
	GROUP BY pay_system_id
	ORDER BY total DESC
`

const newUsersQuery = `
	SELECT DATE_FORMAT(created, '%Y-%m-%d') AS day, COUNT(*) AS count
	FROM users
	WHERE created >= ? AND created < DATE_ADD(?, INTERVAL 1 DAY)
	GROUP BY day
	ORDER BY day
`

const withdrawalsQuery = `
	SELECT DATE_FORMAT(create_date, '%Y-%m-%d') AS day, COALESCE(SUM(cost), 0) AS total, COUNT(*) AS count
	FROM withdraw_history
	WHERE create_date >= ? AND create_date < DATE_ADD(?, INTERVAL 1 DAY)
	GROUP BY day
	ORDER BY day
`

const subscriptionGroupsQuery = `
	SELECT
		COALESCE(us.status, '') AS status,
		COALESCE(s.name, '') AS service_name,
		COUNT(*) AS count,
		COALESCE(SUM(s.cost), 0) AS revenue
	FROM user_services us
	LEFT JOIN services s ON us.service_id = s.service_id
	GROUP BY us.status, s.name
	ORDER BY count DESC
`

const topServicesQuery = `
	SELECT COALESCE(s.name, '') AS name, COUNT(*) AS count, COALESCE(SUM(s.cost), 0) AS revenue
	FROM user_services us
	LEFT JOIN services s ON us.service_id = s.service_id
	WHERE LOWER(us.status) = 'active'
	GROUP BY s.name
	ORDER BY count DESC
	LIMIT 10
`

const serverGroupsQuery = `
	SELECT COALESCE(CAST(server_gid AS CHAR), 'ungrouped') AS group_name, COUNT(*) AS count
	FROM servers
	WHERE enabled = 1
	GROUP BY group_name
	ORDER BY count DESC
`

// subscriptionsQuery loads only rows that can count as active or expired
const subscriptionsQuery = `
	SELECT
		us.user_service_id,
		COALESCE(us.status, '') AS status,
		us.expire,
		COALESCE(s.cost, 0) AS cost,
		COALESCE(s.period, 0) AS period
	FROM user_services us
	LEFT JOIN services s ON us.service_id = s.service_id
	WHERE LOWER(TRIM(us.status)) = 'active' OR us.expire IS NOT NULL
`

const recentPaymentsQuery = `
	SELECT ph.id, ph.user_id, ph.money, ph.date, ph.pay_system_id, COALESCE(u.login, '') AS login
	FROM pays_history ph
	LEFT JOIN users u ON ph.user_id = u.user_id
	WHERE ph.pay_system_id IS NOT NULL
		AND ph.pay_system_id != ''
		AND ph.pay_system_id != '0'
		AND LOWER(ph.pay_system_id) != 'manual'
	ORDER BY ph.date DESC
	LIMIT 5
`

const recentTasksQuery = `
	SELECT id, user_id, COALESCE(status, '') AS status, created, COALESCE(event, '') AS event
	FROM spool
	ORDER BY created DESC
	LIMIT 5
`

const subscriptionTimelineQuery = `
	SELECT DATE_FORMAT(created, '%Y-%m-%d') AS day, COUNT(*) AS count
	FROM user_services
	WHERE created >= ? AND created < DATE_ADD(?, INTERVAL 1 DAY)
	GROUP BY day
	ORDER BY day
`

const subscriptionsByServiceQuery = `
	SELECT s.name, COUNT(*) AS count
	FROM user_services us
	JOIN services s ON us.service_id = s.service_id
	GROUP BY s.service_id, s.name
	ORDER BY count DESC
	LIMIT 10
`

const taskCountsQuery = `
	SELECT
		COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending,
		COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed,
		COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) AS failed
	FROM spool
`

const tasksByEventQuery = `
	SELECT COALESCE(event, '') AS event, COUNT(*) AS count
	FROM spool
	GROUP BY event
	ORDER BY count DESC
	LIMIT 10
`

const topCustomersQuery = `
	SELECT u.user_id, COALESCE(u.login, '') AS login, SUM(ph.money) AS total_spent, COUNT(ph.id) AS payment_count
	FROM users u
	JOIN pays_history ph ON u.user_id = ph.user_id
	WHERE ph.date >= ? AND ph.date < DATE_ADD(?, INTERVAL 1 DAY)
		AND ph.pay_system_id IS NOT NULL
		AND ph.pay_system_id != ''
		AND ph.pay_system_id != '0'
		AND LOWER(ph.pay_system_id) != 'manual'
	GROUP BY u.user_id, u.login
	ORDER BY total_spent DESC
	LIMIT 10
`
