package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBraveBaseURL is the Brave Search API host.
const DefaultBraveBaseURL = "https://api.search.brave.com"

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// BraveClient queries the Brave web search API.
type BraveClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewBraveClient creates a client. An empty apiKey leaves search unconfigured.
func NewBraveClient(baseURL, apiKey string) *BraveClient {
	if baseURL == "" {
		baseURL = DefaultBraveBaseURL
	}
	return &BraveClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether an API key is set.
func (c *BraveClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Search returns up to count results for query.
func (c *BraveClient) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	u := c.baseURL + "/res/v1/web/search?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var body struct {
		Web struct {
			Results []SearchResult `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	results := body.Web.Results
	if len(results) > count {
		results = results[:count]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}

type webSearchHandler struct {
	brave *BraveClient
}

func (h webSearchHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Query == "" {
		return marshalResult(map[string]any{"status": "error", "message": "Search query is required"})
	}
	if !h.brave.Configured() {
		return marshalResult(map[string]any{
			"status":  "error",
			"message": "Web search is not configured. Please ask your administrator to set up the Brave Search API.",
		})
	}

	results, err := h.brave.Search(ctx, args.Query, 5)
	if err != nil {
		return marshalResult(map[string]any{"status": "error", "message": "Web search request failed"})
	}
	return marshalResult(map[string]any{
		"status":       "success",
		"query":        args.Query,
		"results":      results,
		"result_count": len(results),
	})
}

type priceSource struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

type materialPricesHandler struct {
	brave *BraveClient
}

func (h materialPricesHandler) Execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		MaterialType string `json:"material_type"`
		Region       string `json:"region"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if args.Region == "" {
		args.Region = "USA"
	}
	partial := func(message string) (json.RawMessage, error) {
		return marshalResult(map[string]any{
			"status":   "partial",
			"material": args.MaterialType,
			"region":   args.Region,
			"message":  message,
		})
	}
	if !h.brave.Configured() {
		return partial("Direct pricing lookup unavailable. Consider asking me to do a web search for current prices.")
	}

	query := fmt.Sprintf("%s roofing prices %s %d", args.MaterialType, args.Region, time.Now().Year())
	results, err := h.brave.Search(ctx, query, 5)
	if err != nil {
		return partial("Could not fetch current prices. Try asking me to search the web for pricing.")
	}

	sources := make([]priceSource, 0, 3)
	for i, r := range results {
		if i == 3 {
			break
		}
		sources = append(sources, priceSource{Title: r.Title, Snippet: r.Description, URL: r.URL})
	}
	return marshalResult(map[string]any{
		"status":        "success",
		"material":      args.MaterialType,
		"region":        args.Region,
		"price_sources": sources,
		"note":          "Prices shown are from web search results. Verify with local suppliers for accurate quotes.",
	})
}
