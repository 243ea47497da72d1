package database

const (
	createMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`

	recordMigrationSQL = `INSERT INTO schema_migrations (migration_name) VALUES ($1)`
)

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (id, table_number, customer_name, total_cents, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	InsertOrderItemSQL = `
		INSERT INTO order_items (order_id, position, menu_item_id, name, quantity, price_cents, item_type, department)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (order_id, status, changed_by, notes)
		VALUES ($1, $2, $3, $4)`

	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING updated_at`

	selectOrderColumns = `
		SELECT id, table_number, customer_name, total_cents, status, notes, created_by, created_at, updated_at
		FROM orders`

	GetOrderByIDSQL = selectOrderColumns + ` WHERE id = $1`

	GetOrderByIDForUpdateSQL = selectOrderColumns + ` WHERE id = $1 FOR UPDATE`

	ListOrdersSQL = selectOrderColumns + ` ORDER BY created_at DESC LIMIT $1`

	ListOrdersByTableSQL = selectOrderColumns + ` WHERE table_number = $1 ORDER BY created_at DESC`

	ListOrdersByStatusSQL = selectOrderColumns + ` WHERE status = $1 ORDER BY created_at DESC`

	ListActiveOrdersByDepartmentSQL = selectOrderColumns + `
		WHERE status NOT IN ('ready', 'served')
		  AND EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.department = $1)
		ORDER BY created_at ASC`

	GetOrderItemsSQL = `
		SELECT order_id, menu_item_id, name, quantity, price_cents, item_type, department
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position`

	GetOrderStatusHistorySQL = `
		SELECT status, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`

	DashboardStatsSQL = `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'preparing'),
		       COUNT(*) FILTER (WHERE status = 'ready')
		FROM orders`
)

// Menu queries
const (
	selectMenuItemColumns = `
		SELECT m.id, m.name, m.description, m.price_cents, m.category_id, m.item_type, c.department, m.available
		FROM menu_items m
		JOIN categories c ON c.id = m.category_id`

	ListAvailableMenuItemsSQL = selectMenuItemColumns + `
		WHERE m.available
		ORDER BY c.sort_order, m.name`

	ListMenuItemsByCategorySQL = selectMenuItemColumns + `
		WHERE m.available AND m.category_id = $1
		ORDER BY m.name`

	GetMenuItemSQL = selectMenuItemColumns + ` WHERE m.id = $1`

	GetMenuItemsByIDsSQL = selectMenuItemColumns + ` WHERE m.id = ANY($1)`

	ListCategoriesSQL = `
		SELECT id, name, display_name, emoji, department
		FROM categories
		ORDER BY sort_order, name`
)

// User and session queries
const (
	InsertUserSQL = `
		INSERT INTO users (id, username, full_name, role, password_hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING`

	GetUserByUsernameSQL = `
		SELECT id, username, full_name, role, password_hash, created_at
		FROM users WHERE username = $1`

	InsertSessionSQL = `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)`

	GetUserBySessionSQL = `
		SELECT u.id, u.username, u.full_name, u.role, u.password_hash, u.created_at
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token = $1 AND s.expires_at > NOW()`

	DeleteSessionSQL = `DELETE FROM sessions WHERE token = $1`

	DeleteExpiredSessionsSQL = `DELETE FROM sessions WHERE expires_at <= NOW()`
)
