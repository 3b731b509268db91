package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

// PastDueGracePeriod is how long a past_due subscription keeps its tier.
const PastDueGracePeriod = 7 * 24 * time.Hour

var tierLimits = map[domain.Tier]domain.AgentLimits{
	domain.TierFree:       {},
	domain.TierPremium:    {MaxTokensPerMonth: 500000, MaxSessionsPerMonth: 50, MaxTasksPerMonth: 200},
	domain.TierBusiness:   {MaxTokensPerMonth: 2000000, MaxSessionsPerMonth: 200, MaxTasksPerMonth: 1000},
	domain.TierAIEmployee: {MaxTokensPerMonth: 2000000, MaxSessionsPerMonth: 200, MaxTasksPerMonth: 1000},
}

// LimitsFor returns the monthly allowances of a tier.
func LimitsFor(tier domain.Tier) domain.AgentLimits {
	return tierLimits[tier]
}

// NormalizeTier maps raw plan names such as "premium_monthly" to a tier.
func NormalizeTier(raw string) domain.Tier {
	t := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(t, "ai_employee"):
		return domain.TierAIEmployee
	case strings.HasPrefix(t, "business"):
		return domain.TierBusiness
	case strings.HasPrefix(t, "premium"):
		return domain.TierPremium
	default:
		return domain.TierFree
	}
}

// EffectiveTier resolves the tier a subscription grants at now.
func EffectiveTier(sub *domain.Subscription, now time.Time) domain.Tier {
	if sub == nil {
		return domain.TierFree
	}
	tier := NormalizeTier(sub.Tier)
	switch sub.Status {
	case "active", "trialing":
		return tier
	case "past_due":
		if !sub.UpdatedAt.IsZero() && now.Sub(sub.UpdatedAt) > PastDueGracePeriod {
			return domain.TierFree
		}
		return tier
	default:
		return domain.TierFree
	}
}

// HasAgentAccess reports whether tier includes the agent feature.
func HasAgentAccess(tier domain.Tier) bool {
	switch tier {
	case domain.TierPremium, domain.TierBusiness, domain.TierAIEmployee:
		return true
	}
	return false
}

// UserTier looks up the user's effective tier.
func (s *Service) UserTier(ctx context.Context, userID string) (domain.Tier, error) {
	sub, err := s.store.GetSubscription(ctx, userID)
	if err != nil {
		return domain.TierFree, fmt.Errorf("failed to get subscription: %w", err)
	}
	return EffectiveTier(sub, s.now()), nil
}

// authorize runs the identity and entitlement checks shared by every operation.
func (s *Service) authorize(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	tier, err := s.UserTier(ctx, userID)
	if err != nil {
		s.logger.Warn("entitlement lookup failed", "user_id", userID, "error", err)
		return ErrNoAgentAccess
	}
	if !HasAgentAccess(tier) {
		return ErrNoAgentAccess
	}
	return nil
}
