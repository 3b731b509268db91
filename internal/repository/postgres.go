package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// NewPostgresStore opens a Postgres store. Run Migrate before first use.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewPostgresStoreWithDB(db), nil
}

// NewPostgresStoreWithDB wraps an existing Postgres handle.
func NewPostgresStoreWithDB(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: dialectPostgres}
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS agent_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		workspace_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		model TEXT NOT NULL,
		system_prompt TEXT,
		total_tokens_used BIGINT NOT NULL DEFAULT 0,
		total_tasks_completed BIGINT NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`ALTER TABLE agent_sessions ADD COLUMN IF NOT EXISTS total_tasks_completed BIGINT NOT NULL DEFAULT 0`,
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
		created_at TIMESTAMPTZ NOT NULL
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
		execution_time_ms BIGINT,
		is_mcp BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`ALTER TABLE agent_tool_executions ADD COLUMN IF NOT EXISTS is_mcp BOOLEAN NOT NULL DEFAULT FALSE`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tool_executions_call ON agent_tool_executions(session_id, tool_call_id)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tool_executions_status ON agent_tool_executions(status, created_at)`,
	`CREATE TABLE IF NOT EXISTS agent_usage (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		total_tokens_input BIGINT NOT NULL DEFAULT 0,
		total_tokens_output BIGINT NOT NULL DEFAULT 0,
		total_tool_calls BIGINT NOT NULL DEFAULT 0,
		total_tasks_executed BIGINT NOT NULL DEFAULT 0,
		total_sessions BIGINT NOT NULL DEFAULT 0,
		estimated_cost_cents BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL,
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
		created_at TIMESTAMPTZ NOT NULL
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
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		metadata TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tasks_user ON agent_tasks(user_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_tasks_session ON agent_tasks(session_id, status)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pipedream_data_sources (
		user_id TEXT NOT NULL,
		app_slug TEXT NOT NULL,
		app_name TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
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
		created_at TIMESTAMPTZ NOT NULL
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
		estimated_cost DOUBLE PRECISION,
		actual_cost DOUBLE PRECISION,
		scheduled_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_crm_jobs_workspace ON crm_jobs(workspace_id, created_at)`,
}
