package models

import (
	"strings"
	"time"
)

// Tier is the entitlement level derived from a plan
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// ParseTier maps plan names to tiers; unknown names are free
func ParseTier(name string) Tier {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "pro", "premium":
		return TierPro
	case "basic", "standard":
		return TierBasic
	default:
		return TierFree
	}
}

// Feature is an entitlement flag granted by a plan
type Feature string

const (
	FeatureTechnicalAnalysis Feature = "technical_analysis"
	FeatureStockAnalysis     Feature = "stock_analysis"
	FeaturePremiumChannel    Feature = "premium_channel"
)

// Plan is owned by the billing collaborator; only these fields are consumed
type Plan struct {
	Name         string    `json:"name" gorm:"primaryKey"`
	Tier         Tier      `json:"tier"`
	MaxWatchlist int       `json:"max_watchlist"`
	Features     []Feature `json:"features" gorm:"serializer:json"`
}

// HasFeature reports whether the plan grants f
func (p *Plan) HasFeature(f Feature) bool {
	if p == nil {
		return false
	}
	for _, feature := range p.Features {
		if feature == f {
			return true
		}
	}
	return false
}

// Subscriber is owned by the auth/billing collaborator
type Subscriber struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	Email            string    `json:"email"`
	PlanName         string    `json:"plan_name"`
	Entitlements     []Feature `json:"entitlements" gorm:"serializer:json"`
	UnsubscribeToken string    `json:"-"`
	TelegramChatID   string    `json:"telegram_chat_id,omitempty"`
	IsActive         bool      `json:"is_active" badgerhold:"index"`
	CreatedAt        time.Time `json:"created_at"`
}

// Tier returns the subscriber's tier from the plan name
func (s Subscriber) Tier() Tier {
	return ParseTier(s.PlanName)
}

// Entitled reports whether the subscriber carries feature f
func (s Subscriber) Entitled(f Feature) bool {
	for _, feature := range s.Entitlements {
		if feature == f {
			return true
		}
	}
	return false
}
