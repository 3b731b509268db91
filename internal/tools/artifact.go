package tools

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

var artifactTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

const defaultPrimaryColor = "#24BDEB"

var (
	hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	artifactTypes   = map[string]bool{
		"business_card": true, "flyer": true, "door_hanger": true,
		"postcard": true, "email_template": true, "social_post": true,
	}
	artifactStyles = map[string]bool{
		"professional": true, "modern": true, "bold": true, "minimal": true, "classic": true,
	}
)

type contactInfo struct {
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Address string `json:"address"`
}

type artifactView struct {
	Company  string
	Title    string
	Tagline  string
	Offer    string
	Style    string
	Label    string
	Services []string
	Contact  contactInfo

	Primary     string
	PrimaryDark string

	Styles template.CSS
	Body   template.HTML
}

type artifactHandler struct{}

func (artifactHandler) Execute(_ context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		ArtifactType string      `json:"artifact_type"`
		CompanyName  string      `json:"company_name"`
		Title        string      `json:"title"`
		Tagline      string      `json:"tagline"`
		ContactInfo  contactInfo `json:"contact_info"`
		KeyServices  []string    `json:"key_services"`
		Offer        string      `json:"offer"`
		Style        string      `json:"style"`
		PrimaryColor string      `json:"primary_color"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if !artifactTypes[args.ArtifactType] {
		return marshalResult(map[string]any{
			"status":  "error",
			"message": fmt.Sprintf("Unknown artifact type: %s. Supported types: business_card, flyer, door_hanger, postcard, email_template, social_post", args.ArtifactType),
		})
	}
	if !artifactStyles[args.Style] {
		args.Style = "professional"
	}
	primary := args.PrimaryColor
	if !hexColorPattern.MatchString(primary) {
		primary = defaultPrimaryColor
	}

	label := strings.Replace(args.ArtifactType, "_", " ", 1)
	view := artifactView{
		Company:     args.CompanyName,
		Title:       args.Title,
		Tagline:     args.Tagline,
		Offer:       args.Offer,
		Style:       args.Style,
		Label:       label,
		Services:    args.KeyServices,
		Contact:     args.ContactInfo,
		Primary:     primary,
		PrimaryDark: shadeColor(primary, -20),
	}

	var styles, body, doc bytes.Buffer
	if err := artifactTemplates.ExecuteTemplate(&styles, "styles", view); err != nil {
		return nil, fmt.Errorf("failed to render styles: %w", err)
	}
	if err := artifactTemplates.ExecuteTemplate(&body, args.ArtifactType, view); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", args.ArtifactType, err)
	}
	view.Styles = template.CSS(styles.String())
	view.Body = template.HTML(body.String())
	if err := artifactTemplates.ExecuteTemplate(&doc, "document", view); err != nil {
		return nil, fmt.Errorf("failed to render document: %w", err)
	}

	return marshalResult(map[string]any{
		"status":        "success",
		"artifact_type": args.ArtifactType,
		"html":          doc.String(),
		"preview_html":  body.String(),
		"styles":        styles.String(),
		"message":       label + " created successfully! You can preview it below and download or copy the HTML.",
		"downloadable":  true,
	})
}

// shadeColor shifts each RGB channel of a #rrggbb color by amount, clamped to 0..255.
func shadeColor(hex string, amount int) string {
	v, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 32)
	if err != nil {
		return hex
	}
	clamp := func(c int) int { return max(0, min(255, c)) }
	r := clamp(int(v>>16&0xff) + amount)
	g := clamp(int(v>>8&0xff) + amount)
	b := clamp(int(v&0xff) + amount)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
