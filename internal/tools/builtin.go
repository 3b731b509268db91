package tools

import (
	"log/slog"
	"time"
)

// Deps are the collaborators of the built-in handlers. Nil collaborators
// make the matching tools answer with a "not configured" result.
type Deps struct {
	Brave    *BraveClient
	Weather  string
	CRM      CRMDirectory
	Property PropertyResearcher
	Now      func() time.Time
}

// RegisterBuiltins registers a handler for every built-in catalog tool.
func RegisterBuiltins(r *Registry, deps Deps) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	r.MustRegister("web_search", webSearchHandler{brave: deps.Brave})
	r.MustRegister("get_material_prices", materialPricesHandler{brave: deps.Brave})
	r.MustRegister("get_weather_forecast", newWeatherHandler(deps.Weather))
	r.MustRegister("generate_report", reportHandler{now: now})
	r.MustRegister("create_estimate", createEstimateInfo)
	r.MustRegister("draft_email", draftEmailHandler{})
	r.MustRegister("send_email", sendEmailInfo)
	r.MustRegister("search_customers", searchCustomersHandler{crm: deps.CRM})
	r.MustRegister("get_customer_details", customerDetailsHandler{crm: deps.CRM})
	r.MustRegister("search_jobs", searchJobsHandler{crm: deps.CRM})
	r.MustRegister("generate_property_report", propertyReportHandler{research: deps.Property})
	r.MustRegister("generate_artifact", artifactHandler{})
	r.MustRegister("check_calendar", checkCalendarInfo)
	r.MustRegister("schedule_appointment", scheduleAppointmentInfo)
}

// NewBuiltinExecutor loads the catalog and registers every built-in handler.
func NewBuiltinExecutor(deps Deps, logger *slog.Logger) (*Executor, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	registry := NewRegistry()
	RegisterBuiltins(registry, deps)
	return NewExecutor(catalog, registry, logger), nil
}
