package domain

import "time"

// Customer is a CRM customer record visible to the agent.
type Customer struct {
	ID                     string    `json:"id"`
	WorkspaceID            string    `json:"workspace_id"`
	Name                   string    `json:"name"`
	Email                  string    `json:"email,omitempty"`
	Phone                  string    `json:"phone,omitempty"`
	Address                string    `json:"address,omitempty"`
	City                   string    `json:"city,omitempty"`
	State                  string    `json:"state,omitempty"`
	Zip                    string    `json:"zip,omitempty"`
	Status                 string    `json:"status"`
	Source                 string    `json:"source,omitempty"`
	Notes                  string    `json:"notes,omitempty"`
	PropertyType           string    `json:"property_type,omitempty"`
	PreferredContactMethod string    `json:"preferred_contact_method,omitempty"`
	Tags                   []string  `json:"tags,omitempty"`
	CreatedAt              time.Time `json:"created_at"`
}

// Job is a CRM job record.
type Job struct {
	ID            string     `json:"id"`
	WorkspaceID   string     `json:"workspace_id"`
	CustomerID    string     `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	Title         string     `json:"title"`
	JobNumber     string     `json:"job_number,omitempty"`
	Address       string     `json:"address,omitempty"`
	City          string     `json:"city,omitempty"`
	State         string     `json:"state,omitempty"`
	Status        string     `json:"status"`
	JobType       string     `json:"job_type,omitempty"`
	EstimatedCost *float64   `json:"estimated_cost,omitempty"`
	ActualCost    *float64   `json:"actual_cost,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// JobFilter narrows a job search.
type JobFilter struct {
	Query  string
	Status string
	Limit  int
}

// DataSource is an external app the user has enabled for the dynamic tool source.
type DataSource struct {
	UserID  string `json:"user_id"`
	AppSlug string `json:"app_slug"`
	AppName string `json:"app_name"`
	Enabled bool   `json:"enabled"`
}
