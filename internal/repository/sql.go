package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Store on database/sql. Queries are written with '?'
// placeholders and rebound for the active dialect.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

var _ Store = (*SQLStore)(nil)

// Open opens a store for the given driver name ("sqlite3" or "postgres").
func Open(driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite3", "sqlite":
		return NewSQLiteStore(dsn)
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Migrate creates or upgrades the schema for the active dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	migrations := sqliteMigrations
	if s.dialect == dialectPostgres {
		migrations = postgresMigrations
	}
	for i, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	if s.dialect == dialectSQLite {
		return s.upgradeSQLite(ctx)
	}
	return nil
}

func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullJSON(v json.RawMessage) sql.NullString {
	if len(v) == 0 || string(v) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(v), Valid: true}
}

func rawJSON(v sql.NullString) json.RawMessage {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.RawMessage(v.String)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Sessions

const sessionColumns = `id, user_id, workspace_id, name, description, status, model, system_prompt, total_tokens_used, total_tasks_completed, metadata, created_at, updated_at`

func scanSession(row scanner) (*domain.Session, error) {
	var session domain.Session
	var workspaceID, description, systemPrompt, metadata sql.NullString
	if err := row.Scan(&session.ID, &session.UserID, &workspaceID, &session.Name, &description,
		&session.Status, &session.Model, &systemPrompt, &session.TotalTokensUsed,
		&session.TotalTasksCompleted, &metadata, &session.CreatedAt, &session.UpdatedAt); err != nil {
		return nil, err
	}
	session.WorkspaceID = workspaceID.String
	session.Description = description.String
	session.SystemPrompt = systemPrompt.String
	session.Metadata = rawJSON(metadata)
	return &session, nil
}

// CreateSession inserts a new session.
func (s *SQLStore) CreateSession(ctx context.Context, session *domain.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}
	_, err := s.exec(ctx,
		`INSERT INTO agent_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, nullString(session.WorkspaceID), session.Name, nullString(session.Description),
		session.Status, session.Model, nullString(session.SystemPrompt), session.TotalTokensUsed,
		session.TotalTasksCompleted, nullJSON(session.Metadata), session.CreatedAt, session.UpdatedAt)
	return err
}

// GetSession retrieves a session by ID scoped to its owner. Returns nil if absent.
func (s *SQLStore) GetSession(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	session, err := scanSession(s.queryRow(ctx,
		`SELECT `+sessionColumns+` FROM agent_sessions WHERE id = ? AND user_id = ?`, sessionID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions lists a user's sessions, most recently updated first.
func (s *SQLStore) ListSessions(ctx context.Context, userID string, filter domain.SessionFilter) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM agent_sessions WHERE user_id = ?`
	args := []interface{}{userID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// UpdateSession writes the mutable fields of a session.
func (s *SQLStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	session.UpdatedAt = time.Now().UTC()
	_, err := s.exec(ctx,
		`UPDATE agent_sessions SET name = ?, description = ?, status = ?, model = ?, system_prompt = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		session.Name, nullString(session.Description), session.Status, session.Model,
		nullString(session.SystemPrompt), session.UpdatedAt, session.ID, session.UserID)
	return err
}

// RenameSession sets the display name of a session.
func (s *SQLStore) RenameSession(ctx context.Context, sessionID, name string) error {
	_, err := s.exec(ctx, `UPDATE agent_sessions SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), sessionID)
	return err
}

// AddSessionTokens adds to the cumulative token counter of a session.
func (s *SQLStore) AddSessionTokens(ctx context.Context, sessionID string, tokens int) error {
	_, err := s.exec(ctx,
		`UPDATE agent_sessions SET total_tokens_used = total_tokens_used + ?, updated_at = ? WHERE id = ?`,
		tokens, time.Now().UTC(), sessionID)
	return err
}

// IncrementSessionTasks adds to the completed task counter of a session.
func (s *SQLStore) IncrementSessionTasks(ctx context.Context, sessionID string, n int) error {
	_, err := s.exec(ctx,
		`UPDATE agent_sessions SET total_tasks_completed = total_tasks_completed + ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UTC(), sessionID)
	return err
}

// DeleteSession removes a session; messages, tool executions and activity cascade.
func (s *SQLStore) DeleteSession(ctx context.Context, sessionID, userID string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM agent_sessions WHERE id = ? AND user_id = ?`, sessionID, userID)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// Messages

// CreateMessage appends a message to a session transcript.
func (s *SQLStore) CreateMessage(ctx context.Context, message *domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO agent_messages (id, session_id, user_id, role, content, tool_calls, tool_call_id, tokens_used, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID, message.SessionID, message.UserID, message.Role, nullString(message.Content),
		nullJSON(message.ToolCalls), nullString(message.ToolCallID), message.TokensUsed,
		nullJSON(message.Metadata), message.CreatedAt)
	return err
}

// GetMessages returns the most recent limit messages of a session in ascending order.
func (s *SQLStore) GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	query := `SELECT id, session_id, user_id, role, content, tool_calls, tool_call_id, tokens_used, metadata, created_at FROM agent_messages WHERE session_id = ? ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var content, toolCalls, toolCallID, metadata sql.NullString
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.Role, &content, &toolCalls,
			&toolCallID, &msg.TokensUsed, &metadata, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Content = content.String
		msg.ToolCalls = rawJSON(toolCalls)
		msg.ToolCallID = toolCallID.String
		msg.Metadata = rawJSON(metadata)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// UpdateToolMessage replaces the content of the tool message answering toolCallID.
func (s *SQLStore) UpdateToolMessage(ctx context.Context, sessionID, toolCallID, content string) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE agent_messages SET content = ? WHERE session_id = ? AND tool_call_id = ? AND role = ?`,
		content, sessionID, toolCallID, domain.RoleTool)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DeleteMessages clears a session transcript.
func (s *SQLStore) DeleteMessages(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.exec(ctx, `DELETE FROM agent_messages WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Tool executions

const toolExecutionColumns = `id, session_id, user_id, tool_call_id, tool_name, tool_input, tool_output, status, error_message, execution_time_ms, is_mcp, created_at, completed_at`

func scanToolExecution(row scanner) (*domain.ToolExecution, error) {
	var exec domain.ToolExecution
	var input, output, errMsg sql.NullString
	var durationMs sql.NullInt64
	var completedAt sql.NullTime
	if err := row.Scan(&exec.ID, &exec.SessionID, &exec.UserID, &exec.ToolCallID, &exec.ToolName,
		&input, &output, &exec.Status, &errMsg, &durationMs, &exec.IsMCP, &exec.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	exec.ToolInput = rawJSON(input)
	exec.ToolOutput = rawJSON(output)
	exec.ErrorMessage = errMsg.String
	exec.ExecutionTimeMs = durationMs.Int64
	if completedAt.Valid {
		t := completedAt.Time
		exec.CompletedAt = &t
	}
	return &exec, nil
}

// CreateToolExecution records a tool call in the execution ledger.
func (s *SQLStore) CreateToolExecution(ctx context.Context, exec *domain.ToolExecution) error {
	if exec.CreatedAt.IsZero() {
		exec.CreatedAt = time.Now().UTC()
	}
	var completedAt sql.NullTime
	if exec.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *exec.CompletedAt, Valid: true}
	}
	_, err := s.exec(ctx,
		`INSERT INTO agent_tool_executions (`+toolExecutionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.SessionID, exec.UserID, exec.ToolCallID, exec.ToolName, nullJSON(exec.ToolInput),
		nullJSON(exec.ToolOutput), exec.Status, nullString(exec.ErrorMessage), exec.ExecutionTimeMs,
		exec.IsMCP, exec.CreatedAt, completedAt)
	return err
}

// GetToolExecution returns the latest execution recorded for a tool call. Returns nil if absent.
func (s *SQLStore) GetToolExecution(ctx context.Context, sessionID, toolCallID string) (*domain.ToolExecution, error) {
	exec, err := scanToolExecution(s.queryRow(ctx,
		`SELECT `+toolExecutionColumns+` FROM agent_tool_executions WHERE session_id = ? AND tool_call_id = ? ORDER BY created_at DESC LIMIT 1`,
		sessionID, toolCallID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// ClaimToolExecution moves a pending execution to running. Returns false if
// it was no longer pending.
func (s *SQLStore) ClaimToolExecution(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `UPDATE agent_tool_executions SET status = ? WHERE id = ? AND status = ?`,
		domain.ToolStatusRunning, id, domain.ToolStatusPending)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// CompleteToolExecution moves a pending or running execution to its final state.
// Returns false if the execution had already been settled.
func (s *SQLStore) CompleteToolExecution(ctx context.Context, exec *domain.ToolExecution) (bool, error) {
	now := time.Now().UTC()
	res, err := s.exec(ctx,
		`UPDATE agent_tool_executions SET status = ?, tool_output = ?, error_message = ?, execution_time_ms = ?, completed_at = ? WHERE id = ? AND status IN (?, ?)`,
		exec.Status, nullJSON(exec.ToolOutput), nullString(exec.ErrorMessage), exec.ExecutionTimeMs, now,
		exec.ID, domain.ToolStatusPending, domain.ToolStatusRunning)
	if err != nil {
		return false, err
	}
	ok, err := affected(res)
	if ok {
		exec.CompletedAt = &now
	}
	return ok, err
}

// ListExpiredToolExecutions returns pending executions created before the cutoff.
func (s *SQLStore) ListExpiredToolExecutions(ctx context.Context, before time.Time, limit int) ([]domain.ToolExecution, error) {
	query := `SELECT ` + toolExecutionColumns + ` FROM agent_tool_executions WHERE status = ? AND created_at < ? ORDER BY created_at ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.query(ctx, query, domain.ToolStatusPending, before.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var execs []domain.ToolExecution
	for rows.Next() {
		exec, err := scanToolExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// Usage

// IncrementUsage adds delta to the user's counter for month, creating it on first use.
func (s *SQLStore) IncrementUsage(ctx context.Context, userID, month string, delta domain.UsageDelta) error {
	_, err := s.exec(ctx,
		`INSERT INTO agent_usage (user_id, month, total_tokens_input, total_tokens_output, total_tool_calls, total_tasks_executed, total_sessions, estimated_cost_cents, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month) DO UPDATE SET
			total_tokens_input = agent_usage.total_tokens_input + excluded.total_tokens_input,
			total_tokens_output = agent_usage.total_tokens_output + excluded.total_tokens_output,
			total_tool_calls = agent_usage.total_tool_calls + excluded.total_tool_calls,
			total_tasks_executed = agent_usage.total_tasks_executed + excluded.total_tasks_executed,
			total_sessions = agent_usage.total_sessions + excluded.total_sessions,
			estimated_cost_cents = agent_usage.estimated_cost_cents + excluded.estimated_cost_cents,
			updated_at = excluded.updated_at`,
		userID, month, delta.TokensInput, delta.TokensOutput, delta.ToolCalls, delta.TasksExecuted,
		delta.Sessions, delta.CostCents, time.Now().UTC())
	return err
}

// GetUsage returns the usage counter for a month. Returns nil if nothing was recorded.
func (s *SQLStore) GetUsage(ctx context.Context, userID, month string) (*domain.UsageCounter, error) {
	var u domain.UsageCounter
	err := s.queryRow(ctx,
		`SELECT user_id, month, total_tokens_input, total_tokens_output, total_tool_calls, total_tasks_executed, total_sessions, estimated_cost_cents FROM agent_usage WHERE user_id = ? AND month = ?`,
		userID, month).Scan(&u.UserID, &u.Month, &u.TotalTokensInput, &u.TotalTokensOutput,
		&u.TotalToolCalls, &u.TotalTasksExecuted, &u.TotalSessions, &u.EstimatedCostCents)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Activity

// CreateActivity appends an entry to the activity feed.
func (s *SQLStore) CreateActivity(ctx context.Context, entry *domain.ActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO agent_activity_log (id, user_id, session_id, action_type, title, description, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, nullString(entry.SessionID), entry.ActionType, entry.Title,
		nullString(entry.Description), nullJSON(entry.Metadata), entry.CreatedAt)
	return err
}

// ListActivity lists a user's activity, newest first, optionally scoped to one session.
func (s *SQLStore) ListActivity(ctx context.Context, userID, sessionID string, limit int) ([]domain.ActivityEntry, error) {
	query := `SELECT id, user_id, session_id, action_type, title, description, metadata, created_at FROM agent_activity_log WHERE user_id = ?`
	args := []interface{}{userID}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.ActivityEntry{}
	for rows.Next() {
		var e domain.ActivityEntry
		var sid, description, metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &sid, &e.ActionType, &e.Title, &description, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.SessionID = sid.String
		e.Description = description.String
		e.Metadata = rawJSON(metadata)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Subscriptions

// GetSubscription returns the user's subscription. Returns nil if the user has none.
func (s *SQLStore) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := s.queryRow(ctx,
		`SELECT user_id, tier, status, updated_at FROM subscriptions WHERE user_id = ?`, userID).
		Scan(&sub.UserID, &sub.Tier, &sub.Status, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// UpsertSubscription creates or replaces a subscription row.
func (s *SQLStore) UpsertSubscription(ctx context.Context, sub *domain.Subscription) error {
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO subscriptions (user_id, tier, status, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET tier = excluded.tier, status = excluded.status, updated_at = excluded.updated_at`,
		sub.UserID, sub.Tier, sub.Status, sub.UpdatedAt)
	return err
}

// Data sources

// ListDataSources lists the user's enabled dynamic tool source apps.
func (s *SQLStore) ListDataSources(ctx context.Context, userID string) ([]domain.DataSource, error) {
	rows, err := s.query(ctx,
		`SELECT user_id, app_slug, app_name, enabled FROM pipedream_data_sources WHERE user_id = ? AND enabled = ? ORDER BY app_name ASC`,
		userID, true)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []domain.DataSource
	for rows.Next() {
		var ds domain.DataSource
		if err := rows.Scan(&ds.UserID, &ds.AppSlug, &ds.AppName, &ds.Enabled); err != nil {
			return nil, err
		}
		sources = append(sources, ds)
	}
	return sources, rows.Err()
}

// UpsertDataSource creates or updates a data source row.
func (s *SQLStore) UpsertDataSource(ctx context.Context, ds *domain.DataSource) error {
	_, err := s.exec(ctx,
		`INSERT INTO pipedream_data_sources (user_id, app_slug, app_name, enabled) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, app_slug) DO UPDATE SET app_name = excluded.app_name, enabled = excluded.enabled`,
		ds.UserID, ds.AppSlug, ds.AppName, ds.Enabled)
	return err
}

// CRM

const customerColumns = `id, workspace_id, name, email, phone, address, city, state, zip, status, source, notes, property_type, preferred_contact_method, tags, created_at`

func scanCustomer(row scanner) (*domain.Customer, error) {
	var c domain.Customer
	var email, phone, address, city, state, zip, source, notes, propertyType, contact, tags sql.NullString
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.Name, &email, &phone, &address, &city, &state, &zip,
		&c.Status, &source, &notes, &propertyType, &contact, &tags, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Email = email.String
	c.Phone = phone.String
	c.Address = address.String
	c.City = city.String
	c.State = state.String
	c.Zip = zip.String
	c.Source = source.String
	c.Notes = notes.String
	c.PropertyType = propertyType.String
	c.PreferredContactMethod = contact.String
	if tags.Valid && tags.String != "" {
		_ = json.Unmarshal([]byte(tags.String), &c.Tags)
	}
	return &c, nil
}

// SearchCustomers matches customers of a workspace by name, email, phone or address.
// An empty query lists the most recent customers.
func (s *SQLStore) SearchCustomers(ctx context.Context, workspaceID, query string, limit int) ([]domain.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM crm_customers WHERE workspace_id = ?`
	args := []interface{}{workspaceID}
	if query = strings.TrimSpace(query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q += ` AND (LOWER(name) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ? OR COALESCE(phone, '') LIKE ? OR LOWER(COALESCE(address, '')) LIKE ?)`
		args = append(args, pattern, pattern, pattern, pattern)
	}
	q += ` ORDER BY created_at DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// GetCustomer retrieves a customer of a workspace. Returns nil if absent.
func (s *SQLStore) GetCustomer(ctx context.Context, workspaceID, customerID string) (*domain.Customer, error) {
	c, err := scanCustomer(s.queryRow(ctx,
		`SELECT `+customerColumns+` FROM crm_customers WHERE id = ? AND workspace_id = ?`, customerID, workspaceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateCustomer inserts a customer.
func (s *SQLStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = "lead"
	}
	var tags sql.NullString
	if len(c.Tags) > 0 {
		b, _ := json.Marshal(c.Tags)
		tags = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.exec(ctx,
		`INSERT INTO crm_customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Address),
		nullString(c.City), nullString(c.State), nullString(c.Zip), c.Status, nullString(c.Source),
		nullString(c.Notes), nullString(c.PropertyType), nullString(c.PreferredContactMethod), tags, c.CreatedAt)
	return err
}

const jobSelect = `SELECT j.id, j.workspace_id, j.customer_id, COALESCE(c.name, ''), j.title, j.job_number, j.address, j.city, j.state, j.status, j.job_type, j.estimated_cost, j.actual_cost, j.scheduled_date, j.created_at
	FROM crm_jobs j LEFT JOIN crm_customers c ON c.id = j.customer_id`

func scanJobs(rows *sql.Rows) ([]domain.Job, error) {
	jobs := []domain.Job{}
	for rows.Next() {
		var j domain.Job
		var customerID, jobNumber, address, city, state, jobType sql.NullString
		var estimated, actual sql.NullFloat64
		var scheduled sql.NullTime
		if err := rows.Scan(&j.ID, &j.WorkspaceID, &customerID, &j.CustomerName, &j.Title, &jobNumber,
			&address, &city, &state, &j.Status, &jobType, &estimated, &actual, &scheduled, &j.CreatedAt); err != nil {
			return nil, err
		}
		j.CustomerID = customerID.String
		j.JobNumber = jobNumber.String
		j.Address = address.String
		j.City = city.String
		j.State = state.String
		j.JobType = jobType.String
		if estimated.Valid {
			v := estimated.Float64
			j.EstimatedCost = &v
		}
		if actual.Valid {
			v := actual.Float64
			j.ActualCost = &v
		}
		if scheduled.Valid {
			t := scheduled.Time
			j.ScheduledDate = &t
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListJobsForCustomer lists a customer's jobs, newest first.
func (s *SQLStore) ListJobsForCustomer(ctx context.Context, customerID string) ([]domain.Job, error) {
	rows, err := s.query(ctx, jobSelect+` WHERE j.customer_id = ? ORDER BY j.created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// SearchJobs matches jobs of a workspace by title, job number or address, optionally by status.
func (s *SQLStore) SearchJobs(ctx context.Context, workspaceID string, filter domain.JobFilter) ([]domain.Job, error) {
	q := jobSelect + ` WHERE j.workspace_id = ?`
	args := []interface{}{workspaceID}
	if query := strings.TrimSpace(filter.Query); query != "" {
		pattern := "%" + strings.ToLower(query) + "%"
		q += ` AND (LOWER(j.title) LIKE ? OR LOWER(COALESCE(j.job_number, '')) LIKE ? OR LOWER(COALESCE(j.address, '')) LIKE ?)`
		args = append(args, pattern, pattern, pattern)
	}
	if filter.Status != "" {
		q += ` AND j.status = ?`
		args = append(args, filter.Status)
	}
	q += ` ORDER BY j.created_at DESC`
	if filter.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CreateJob inserts a job.
func (s *SQLStore) CreateJob(ctx context.Context, j *domain.Job) error {
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	var estimated, actual sql.NullFloat64
	if j.EstimatedCost != nil {
		estimated = sql.NullFloat64{Float64: *j.EstimatedCost, Valid: true}
	}
	if j.ActualCost != nil {
		actual = sql.NullFloat64{Float64: *j.ActualCost, Valid: true}
	}
	var scheduled sql.NullTime
	if j.ScheduledDate != nil {
		scheduled = sql.NullTime{Time: *j.ScheduledDate, Valid: true}
	}
	_, err := s.exec(ctx,
		`INSERT INTO crm_jobs (id, workspace_id, customer_id, title, job_number, address, city, state, status, job_type, estimated_cost, actual_cost, scheduled_date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.WorkspaceID, nullString(j.CustomerID), j.Title, nullString(j.JobNumber), nullString(j.Address),
		nullString(j.City), nullString(j.State), j.Status, nullString(j.JobType), estimated, actual, scheduled, j.CreatedAt)
	return err
}
