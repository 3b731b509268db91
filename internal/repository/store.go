// Package store defines the agent ledger storage interface and its SQL implementations.
package store

import (
	"context"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID, userID string) (*domain.Session, error)
	ListSessions(ctx context.Context, userID string, filter domain.SessionFilter) ([]domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	RenameSession(ctx context.Context, sessionID, name string) error
	AddSessionTokens(ctx context.Context, sessionID string, tokens int) error
	IncrementSessionTasks(ctx context.Context, sessionID string, n int) error
	DeleteSession(ctx context.Context, sessionID, userID string) (bool, error)

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
	UpdateToolMessage(ctx context.Context, sessionID, toolCallID, content string) (bool, error)
	DeleteMessages(ctx context.Context, sessionID string) (int64, error)

	// Tool execution operations
	CreateToolExecution(ctx context.Context, exec *domain.ToolExecution) error
	GetToolExecution(ctx context.Context, sessionID, toolCallID string) (*domain.ToolExecution, error)
	ClaimToolExecution(ctx context.Context, id string) (bool, error)
	CompleteToolExecution(ctx context.Context, exec *domain.ToolExecution) (bool, error)
	ListExpiredToolExecutions(ctx context.Context, before time.Time, limit int) ([]domain.ToolExecution, error)

	// Usage operations
	IncrementUsage(ctx context.Context, userID, month string, delta domain.UsageDelta) error
	GetUsage(ctx context.Context, userID, month string) (*domain.UsageCounter, error)

	// Activity operations
	CreateActivity(ctx context.Context, entry *domain.ActivityEntry) error
	ListActivity(ctx context.Context, userID, sessionID string, limit int) ([]domain.ActivityEntry, error)

	// Task operations
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, taskID, userID string) (*domain.Task, error)
	ListTasks(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, taskID, userID string) (bool, error)

	// Subscription operations
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *domain.Subscription) error

	// Data source operations
	ListDataSources(ctx context.Context, userID string) ([]domain.DataSource, error)
	UpsertDataSource(ctx context.Context, ds *domain.DataSource) error

	// CRM operations
	SearchCustomers(ctx context.Context, workspaceID, query string, limit int) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, workspaceID, customerID string) (*domain.Customer, error)
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	ListJobsForCustomer(ctx context.Context, customerID string) ([]domain.Job, error)
	SearchJobs(ctx context.Context, workspaceID string, filter domain.JobFilter) ([]domain.Job, error)
	CreateJob(ctx context.Context, job *domain.Job) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
