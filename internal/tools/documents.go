package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type draftEmailHandler struct{}

func (draftEmailHandler) Execute(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Body == "" {
		args.Body = "Email draft created."
	}
	return marshalResult(map[string]any{
		"status": "success",
		"draft": map[string]string{
			"to":      args.To,
			"subject": args.Subject,
			"body":    args.Body,
		},
		"message": "Email draft created. Review and confirm before sending.",
	})
}

type reportHandler struct {
	now func() time.Time
}

func (h reportHandler) Execute(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		ReportType string          `json:"report_type"`
		Title      string          `json:"title"`
		Data       json.RawMessage `json:"data"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}

	body := "No data provided."
	if len(args.Data) > 0 && string(args.Data) != "null" {
		var v any
		if err := json.Unmarshal(args.Data, &v); err == nil {
			if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
				body = string(pretty)
			}
		}
	}

	return marshalResult(map[string]any{
		"status":      "success",
		"report_type": args.ReportType,
		"title":       args.Title,
		"content":     fmt.Sprintf("# %s\n\nReport generated on %s.\n\n%s", args.Title, h.now().Format("1/2/2006"), body),
		"message":     "Report generated. You can ask me to modify or export it.",
	})
}

// infoHandler answers for tools whose backing integration is not connected yet.
type infoHandler struct {
	fields map[string]any
}

func (h infoHandler) Execute(context.Context, json.RawMessage) (json.RawMessage, error) {
	out := map[string]any{"status": "info"}
	for k, v := range h.fields {
		out[k] = v
	}
	return marshalResult(out)
}

func infoTool(message string) infoHandler {
	return infoHandler{fields: map[string]any{"message": message}}
}

var (
	checkCalendarInfo = infoHandler{fields: map[string]any{
		"available_slots": []string{},
		"message":         "Calendar integration is pending. Availability data will be accessible once connected to your calendar.",
	}}
	createEstimateInfo      = infoTool("Estimate creation requires CRM integration. Once connected, I can create detailed roofing estimates for customers.")
	scheduleAppointmentInfo = infoTool("Appointment scheduling requires calendar integration. Once connected, I can schedule appointments for you.")
	sendEmailInfo           = infoTool("Email sending requires an email integration. Connect Gmail or Outlook in Connected Apps and I can send it for you.")
)
