package service

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// modelRate is a price in US cents per million tokens.
type modelRate struct {
	prefix string
	input  float64
	output float64
}

// Longest prefix first.
var modelRates = []modelRate{
	{"gpt-4o-mini", 15, 60},
	{"gpt-4o", 250, 1000},
	{"gpt-4-turbo", 1000, 3000},
	{"gpt-4.1-mini", 40, 160},
	{"gpt-4.1", 200, 800},
	{"claude-3-5-haiku", 80, 400},
	{"claude-haiku", 100, 500},
	{"claude-sonnet", 300, 1500},
	{"claude-3-5-sonnet", 300, 1500},
	{"claude-opus", 1500, 7500},
}

var defaultRate = modelRates[1]

// EstimateCostCents prices a token count for model, rounded to whole cents.
func EstimateCostCents(model string, inputTokens, outputTokens int) int {
	rate := defaultRate
	m := strings.ToLower(model)
	for _, r := range modelRates {
		if strings.HasPrefix(m, r.prefix) {
			rate = r
			break
		}
	}
	cents := (float64(inputTokens)*rate.input + float64(outputTokens)*rate.output) / 1e6
	return int(math.Round(cents))
}

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// TokenUsageSummary is the token part of a usage summary.
type TokenUsageSummary struct {
	Input       int `json:"input"`
	Output      int `json:"output"`
	Total       int `json:"total"`
	Limit       int `json:"limit"`
	Remaining   int `json:"remaining"`
	PercentUsed int `json:"percentUsed"`
}

// CountUsageSummary tracks a counted allowance.
type CountUsageSummary struct {
	Total       int `json:"total"`
	Limit       int `json:"limit"`
	Remaining   int `json:"remaining"`
	PercentUsed int `json:"percentUsed"`
}

// UsageDetail groups the monthly numbers.
type UsageDetail struct {
	Tokens               TokenUsageSummary `json:"tokens"`
	Sessions             CountUsageSummary `json:"sessions"`
	Tasks                CountUsageSummary `json:"tasks"`
	ToolCalls            int               `json:"toolCalls"`
	EstimatedCostCents   int               `json:"estimatedCostCents"`
	EstimatedCostDollars string            `json:"estimatedCostDollars"`
}

// WithinLimits reports which allowances still have room.
type WithinLimits struct {
	Tokens   bool `json:"tokens"`
	Sessions bool `json:"sessions"`
	Tasks    bool `json:"tasks"`
}

// UsageSummary is a user's monthly usage against their tier.
type UsageSummary struct {
	HasAccess    bool               `json:"hasAccess"`
	Tier         domain.Tier        `json:"tier"`
	Month        string             `json:"month"`
	Usage        UsageDetail        `json:"usage"`
	Limits       domain.AgentLimits `json:"limits"`
	WithinLimits WithinLimits       `json:"withinLimits"`
}

// GetUsage summarizes the user's usage for month (YYYY-MM, default current).
func (s *Service) GetUsage(ctx context.Context, userID, month string) (*UsageSummary, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	if month == "" || !monthPattern.MatchString(month) {
		month = s.currentMonth()
	}

	tier, err := s.UserTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	limits := LimitsFor(tier)

	counter, err := s.store.GetUsage(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	if counter == nil {
		counter = &domain.UsageCounter{UserID: userID, Month: month}
	}

	totalTokens := counter.TotalTokensInput + counter.TotalTokensOutput
	return &UsageSummary{
		HasAccess: true,
		Tier:      tier,
		Month:     month,
		Usage: UsageDetail{
			Tokens: TokenUsageSummary{
				Input:       counter.TotalTokensInput,
				Output:      counter.TotalTokensOutput,
				Total:       totalTokens,
				Limit:       limits.MaxTokensPerMonth,
				Remaining:   max(0, limits.MaxTokensPerMonth-totalTokens),
				PercentUsed: percent(totalTokens, limits.MaxTokensPerMonth),
			},
			Sessions:             countSummary(counter.TotalSessions, limits.MaxSessionsPerMonth),
			Tasks:                countSummary(counter.TotalTasksExecuted, limits.MaxTasksPerMonth),
			ToolCalls:            counter.TotalToolCalls,
			EstimatedCostCents:   counter.EstimatedCostCents,
			EstimatedCostDollars: fmt.Sprintf("%.2f", float64(counter.EstimatedCostCents)/100),
		},
		Limits: limits,
		WithinLimits: WithinLimits{
			Tokens:   totalTokens < limits.MaxTokensPerMonth,
			Sessions: counter.TotalSessions < limits.MaxSessionsPerMonth,
			Tasks:    counter.TotalTasksExecuted < limits.MaxTasksPerMonth,
		},
	}, nil
}

func countSummary(total, limit int) CountUsageSummary {
	return CountUsageSummary{
		Total:       total,
		Limit:       limit,
		Remaining:   max(0, limit-total),
		PercentUsed: percent(total, limit),
	}
}

func percent(used, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(limit) * 100))
}

// incrementUsage applies delta to the current month. Failures are logged only.
func (s *Service) incrementUsage(ctx context.Context, userID string, delta domain.UsageDelta) {
	if err := s.store.IncrementUsage(ctx, userID, s.currentMonth(), delta); err != nil {
		s.logger.Warn("failed to record usage", "user_id", userID, "error", err)
	}
}
