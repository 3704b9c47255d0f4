package database

// Migration bookkeeping
const (
	createMigrationsTableSQL = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			migration_name VARCHAR(255) NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`

	selectAppliedMigrationsSQL = `SELECT migration_name FROM schema_migrations`

	recordMigrationSQL = `INSERT INTO schema_migrations (migration_name) VALUES ($1)`
)

// Dispatch journal
const (
	InsertJournalEntrySQL = `
		INSERT INTO loyalty_dispatch_journal
			(request_id, order_id, order_status, customer_id, outcome_status, reason, actions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
)
