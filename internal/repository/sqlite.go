package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteStore opens and migrates a SQLite store.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys so session deletes cascade.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLStore{db: db, dialect: dialectSQLite}
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS agent_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		model TEXT NOT NULL,
		system_prompt TEXT,
		total_tokens_used INTEGER NOT NULL DEFAULT 0,
		total_tasks_completed INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_sessions_user ON agent_sessions(user_id, updated_at)`,
	`CREATE TABLE IF NOT EXISTS agent_messages (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES agent_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT,
		tool_calls TEXT,
		tool_call_id TEXT,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_messages_session ON agent_messages(session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS agent_tool_executions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES agent_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		tool_call_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		tool_input TEXT,
		tool_output TEXT,
		status TEXT NOT NULL,
		error_message TEXT,
		execution_time_ms INTEGER,
		is_mcp BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tool_executions_call ON agent_tool_executions(session_id, tool_call_id)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tool_executions_status ON agent_tool_executions(status, created_at)`,
	`CREATE TABLE IF NOT EXISTS agent_usage (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		total_tokens_input INTEGER NOT NULL DEFAULT 0,
		total_tokens_output INTEGER NOT NULL DEFAULT 0,
		total_tool_calls INTEGER NOT NULL DEFAULT 0,
		total_tasks_executed INTEGER NOT NULL DEFAULT 0,
		total_sessions INTEGER NOT NULL DEFAULT 0,
		estimated_cost_cents INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (user_id, month)
	)`,
	`CREATE TABLE IF NOT EXISTS agent_activity_log (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT REFERENCES agent_sessions(id) ON DELETE CASCADE,
		action_type TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_activity_user ON agent_activity_log(user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS agent_tasks (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES agent_sessions(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		priority INTEGER NOT NULL DEFAULT 0,
		result TEXT,
		error_message TEXT,
		started_at DATETIME,
		completed_at DATETIME,
		metadata TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tasks_user ON agent_tasks(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tasks_session ON agent_tasks(session_id, status)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pipedream_data_sources (
		user_id TEXT NOT NULL,
		app_slug TEXT NOT NULL,
		app_name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT 1,
		PRIMARY KEY (user_id, app_slug)
	)`,
	`CREATE TABLE IF NOT EXISTS crm_customers (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		address TEXT,
		city TEXT,
		state TEXT,
		zip TEXT,
		status TEXT NOT NULL DEFAULT 'lead',
		source TEXT,
		notes TEXT,
		property_type TEXT,
		preferred_contact_method TEXT,
		tags TEXT,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crm_customers_workspace ON crm_customers(workspace_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS crm_jobs (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		customer_id TEXT REFERENCES crm_customers(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		job_number TEXT,
		address TEXT,
		city TEXT,
		state TEXT,
		status TEXT NOT NULL,
		job_type TEXT,
		estimated_cost REAL,
		actual_cost REAL,
		scheduled_date DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crm_jobs_workspace ON crm_jobs(workspace_id, created_at)`,
}

// upgradeSQLite adds columns introduced after the first schema version.
func (s *SQLStore) upgradeSQLite(ctx context.Context) error {
	if err := s.ensureColumn(ctx, "agent_sessions", "total_tasks_completed",
		`ALTER TABLE agent_sessions ADD COLUMN total_tasks_completed INTEGER NOT NULL DEFAULT 0`); err != nil {
		return err
	}
	return s.ensureColumn(ctx, "agent_tool_executions", "is_mcp",
		`ALTER TABLE agent_tool_executions ADD COLUMN is_mcp BOOLEAN NOT NULL DEFAULT 0`)
}

func (s *SQLStore) ensureColumn(ctx context.Context, tableName, columnName, ddl string) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	found := false
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			rows.Close()
			return err
		}
		if name == columnName {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	// Close before the ALTER: an in-memory store has a single connection.
	rows.Close()
	if found {
		return nil
	}
	_, err = s.db.ExecContext(ctx, ddl)
	return err
}
