package tools

import (
	"context"
	"encoding/json"
	"math"
)

// RoofFacet is one plane of a roof.
type RoofFacet struct {
	Area        float64 `json:"area"`
	Pitch       string  `json:"pitch"`
	Orientation string  `json:"orientation"`
}

// PropertyReport is what the property research collaborator knows about an address.
type PropertyReport struct {
	Address          string
	PropertyType     string
	GroundArea       float64
	RoofArea         float64
	RoofSquares      float64
	FacetCount       int
	MainPitch        string
	Facets           []RoofFacet
	MaxPanels        int
	YearlyEnergyKwh  float64
	SolarSuitability string
	InstallationCost float64
	NetSavings       float64
	PaybackYears     float64
	ImageryQuality   string
	Markdown         string
}

// PropertyResearcher looks up roof and solar data for an address.
type PropertyResearcher interface {
	Research(ctx context.Context, address string, includeSolar bool) (*PropertyReport, error)
}

type propertyReportHandler struct {
	research PropertyResearcher
}

func (h propertyReportHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	args := struct {
		Address      string `json:"address"`
		IncludeSolar *bool  `json:"include_solar"`
	}{}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Address == "" {
		return marshalResult(map[string]any{"status": "error", "message": "Property address is required"})
	}
	if h.research == nil {
		return marshalResult(map[string]any{
			"status":  "error",
			"address": args.Address,
			"message": "Property research is not configured.",
		})
	}
	includeSolar := args.IncludeSolar == nil || *args.IncludeSolar

	report, err := h.research.Research(ctx, args.Address, includeSolar)
	if err != nil || report == nil {
		message := "Failed to generate property report. The address may not be found or the property data is unavailable."
		if err != nil && err.Error() != "" {
			message = err.Error()
		}
		return marshalResult(map[string]any{"status": "error", "address": args.Address, "message": message})
	}

	facets := report.Facets
	if len(facets) > 5 {
		facets = facets[:5]
	}
	result := map[string]any{
		"status":      "success",
		"address":     args.Address,
		"report_type": "property",
		"property": map[string]any{
			"address":    report.Address,
			"type":       report.PropertyType,
			"groundArea": report.GroundArea,
		},
		"roof": map[string]any{
			"totalArea":    report.RoofArea,
			"totalSquares": report.RoofSquares,
			"facetCount":   report.FacetCount,
			"mainPitch":    report.MainPitch,
			"facets":       facets,
		},
		"imageryQuality": report.ImageryQuality,
		"markdownReport": report.Markdown,
		"message":        "Property report generated successfully with roof analysis and solar potential.",
	}
	if includeSolar {
		result["solar"] = map[string]any{
			"maxPanels":         report.MaxPanels,
			"yearlyEnergyKwh":   math.Round(report.YearlyEnergyKwh),
			"suitability":       report.SolarSuitability,
			"installationCost":  report.InstallationCost,
			"netSavings20Years": report.NetSavings,
			"paybackYears":      report.PaybackYears,
		}
	}
	return marshalResult(result)
}
