package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

const (
	customerSearchLimit = 10
	jobSearchLimit      = 15
)

// CRMDirectory is the read side of the workspace CRM.
type CRMDirectory interface {
	SearchCustomers(ctx context.Context, workspaceID, query string, limit int) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, workspaceID, customerID string) (*domain.Customer, error)
	ListJobsForCustomer(ctx context.Context, customerID string) ([]domain.Job, error)
	SearchJobs(ctx context.Context, workspaceID string, filter domain.JobFilter) ([]domain.Job, error)
}

func joinAddress(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

func noWorkspace(message string) (json.RawMessage, error) {
	return marshalResult(map[string]any{"status": "error", "message": message})
}

type customerSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone,omitempty"`
	Email   string   `json:"email,omitempty"`
	Address string   `json:"address"`
	Status  string   `json:"status"`
	Source  string   `json:"source,omitempty"`
	Tags    []string `json:"tags"`
}

type searchCustomersHandler struct {
	crm CRMDirectory
}

func (h searchCustomersHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	workspaceID := WorkspaceFromContext(ctx)
	if workspaceID == "" || h.crm == nil {
		return noWorkspace("No workspace connected. Please access the agent from within a workspace.")
	}

	customers, err := h.crm.SearchCustomers(ctx, workspaceID, args.Query, customerSearchLimit)
	if err != nil {
		return marshalResult(map[string]any{
			"status":  "error",
			"query":   args.Query,
			"message": "Failed to search customers. Please try again.",
		})
	}
	query := strings.TrimSpace(args.Query)

	if len(customers) == 0 {
		message := "No customers in the CRM yet."
		if query != "" {
			message = fmt.Sprintf("No customers found matching %q.", query)
		}
		return marshalResult(map[string]any{"status": "success", "query": args.Query, "results": []customerSummary{}, "message": message})
	}

	results := make([]customerSummary, 0, len(customers))
	for _, c := range customers {
		tags := c.Tags
		if tags == nil {
			tags = []string{}
		}
		results = append(results, customerSummary{
			ID:      c.ID,
			Name:    c.Name,
			Phone:   c.Phone,
			Email:   c.Email,
			Address: joinAddress(c.Address, c.City, c.State),
			Status:  c.Status,
			Source:  c.Source,
			Tags:    tags,
		})
	}
	message := fmt.Sprintf("Found %d customer(s).", len(results))
	if query != "" {
		message = fmt.Sprintf("Found %d customer(s) matching %q.", len(results), query)
	}
	return marshalResult(map[string]any{
		"status":  "success",
		"query":   args.Query,
		"results": results,
		"count":   len(results),
		"message": message,
	})
}

type customerJob struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	JobType       string     `json:"jobType,omitempty"`
	EstimatedCost *float64   `json:"estimatedCost"`
	ScheduledDate *time.Time `json:"scheduledDate"`
}

type customerDetailsHandler struct {
	crm CRMDirectory
}

func (h customerDetailsHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		CustomerID string `json:"customer_id"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	workspaceID := WorkspaceFromContext(ctx)
	if workspaceID == "" || h.crm == nil {
		return noWorkspace("No workspace connected.")
	}

	failed := func() (json.RawMessage, error) {
		return marshalResult(map[string]any{"status": "error", "message": "Failed to get customer details."})
	}
	customer, err := h.crm.GetCustomer(ctx, workspaceID, args.CustomerID)
	if err != nil {
		return failed()
	}
	if customer == nil {
		return marshalResult(map[string]any{"status": "error", "message": "Customer not found."})
	}
	jobs, err := h.crm.ListJobsForCustomer(ctx, customer.ID)
	if err != nil {
		return failed()
	}

	summaries := make([]customerJob, 0, len(jobs))
	for _, j := range jobs {
		summaries = append(summaries, customerJob{
			ID:            j.ID,
			Title:         j.Title,
			Status:        j.Status,
			JobType:       j.JobType,
			EstimatedCost: j.EstimatedCost,
			ScheduledDate: j.ScheduledDate,
		})
	}
	return marshalResult(map[string]any{
		"status": "success",
		"customer": map[string]any{
			"id":                     customer.ID,
			"name":                   customer.Name,
			"phone":                  customer.Phone,
			"email":                  customer.Email,
			"address":                customer.Address,
			"city":                   customer.City,
			"state":                  customer.State,
			"zip":                    customer.Zip,
			"status":                 customer.Status,
			"source":                 customer.Source,
			"tags":                   customer.Tags,
			"notes":                  customer.Notes,
			"propertyType":           customer.PropertyType,
			"preferredContactMethod": customer.PreferredContactMethod,
			"createdAt":              customer.CreatedAt,
		},
		"jobs":     summaries,
		"jobCount": len(summaries),
		"message":  fmt.Sprintf("Found customer %s with %d job(s).", customer.Name, len(summaries)),
	})
}

type jobSummary struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	JobNumber     string     `json:"jobNumber,omitempty"`
	Status        string     `json:"status"`
	JobType       string     `json:"jobType,omitempty"`
	Address       string     `json:"address"`
	EstimatedCost *float64   `json:"estimatedCost"`
	ActualCost    *float64   `json:"actualCost"`
	ScheduledDate *time.Time `json:"scheduledDate"`
	CustomerName  string     `json:"customerName,omitempty"`
}

type searchJobsHandler struct {
	crm CRMDirectory
}

func (h searchJobsHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query  string `json:"query"`
		Status string `json:"status"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	workspaceID := WorkspaceFromContext(ctx)
	if workspaceID == "" || h.crm == nil {
		return noWorkspace("No workspace connected.")
	}

	status := args.Status
	if status == "all" {
		status = ""
	}
	jobs, err := h.crm.SearchJobs(ctx, workspaceID, domain.JobFilter{Query: args.Query, Status: status, Limit: jobSearchLimit})
	if err != nil {
		return marshalResult(map[string]any{"status": "error", "message": "Failed to search jobs."})
	}

	if len(jobs) == 0 {
		message := "No jobs in the system yet."
		if args.Query != "" {
			message = fmt.Sprintf("No jobs found matching %q.", args.Query)
		}
		return marshalResult(map[string]any{"status": "success", "query": args.Query, "results": []jobSummary{}, "message": message})
	}

	results := make([]jobSummary, 0, len(jobs))
	for _, j := range jobs {
		results = append(results, jobSummary{
			ID:            j.ID,
			Title:         j.Title,
			JobNumber:     j.JobNumber,
			Status:        j.Status,
			JobType:       j.JobType,
			Address:       joinAddress(j.Address, j.City, j.State),
			EstimatedCost: j.EstimatedCost,
			ActualCost:    j.ActualCost,
			ScheduledDate: j.ScheduledDate,
			CustomerName:  j.CustomerName,
		})
	}

	message := fmt.Sprintf("Found %d job(s)", len(results))
	if args.Query != "" {
		message += fmt.Sprintf(" matching %q", args.Query)
	}
	if status != "" {
		message += fmt.Sprintf(" with status %q", status)
	}
	return marshalResult(map[string]any{
		"status":       "success",
		"query":        args.Query,
		"statusFilter": status,
		"results":      results,
		"count":        len(results),
		"message":      message + ".",
	})
}
