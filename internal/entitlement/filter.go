package entitlement

import (
	"strings"

	"github.com/ternarybob/briefing/internal/indicators"
	"github.com/ternarybob/briefing/internal/models"
)

// premiumKeywords marks signal text that only pro subscribers may see
var premiumKeywords = []string{
	"rsi",
	"macd",
	"볼린저",
	"bollinger",
	"과매수",
	"과매도",
	"overbought",
	"oversold",
}

// FilterBasicSignals drops signal strings containing a premium-only keyword unless tier is pro.
// Matching is case-insensitive substring containment; retained strings are returned unchanged.
func FilterBasicSignals(signals []string, tier models.Tier) []string {
	if tier == models.TierPro {
		return append([]string(nil), signals...)
	}
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		if !containsPremiumKeyword(s) {
			out = append(out, s)
		}
	}
	return out
}

func containsPremiumKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range premiumKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Table maps each tier to the signal kinds it may receive
type Table map[models.Tier]map[indicators.SignalKind]bool

// DefaultTable grants nothing to free, trend and volume to basic, everything to pro
func DefaultTable() Table {
	pro := make(map[indicators.SignalKind]bool, len(indicators.AllKinds))
	for _, k := range indicators.AllKinds {
		pro[k] = true
	}
	return Table{
		models.TierFree:  {},
		models.TierBasic: {indicators.KindSMA: true, indicators.KindVolume: true},
		models.TierPro:   pro,
	}
}

// Allows reports whether tier may see signals of kind
func (t Table) Allows(tier models.Tier, kind indicators.SignalKind) bool {
	return t[tier][kind]
}

// Filter keeps only signals whose kind the tier is entitled to
func (t Table) Filter(signals []indicators.Signal, tier models.Tier) []indicators.Signal {
	out := make([]indicators.Signal, 0, len(signals))
	for _, s := range signals {
		if t.Allows(tier, s.Kind) {
			out = append(out, s)
		}
	}
	return out
}

// AllowsTechnical reports whether per-symbol technical content is visible for the subscriber.
// Explicit entitlement flags win; otherwise the tier decides.
func AllowsTechnical(sub models.Subscriber, plan *models.Plan) bool {
	if sub.Entitled(models.FeatureTechnicalAnalysis) || plan.HasFeature(models.FeatureTechnicalAnalysis) {
		return true
	}
	return EffectiveTier(sub, plan) != models.TierFree
}

// EffectiveTier resolves a subscriber's tier, preferring the stored plan tier
func EffectiveTier(sub models.Subscriber, plan *models.Plan) models.Tier {
	if plan != nil && plan.Tier != "" {
		return plan.Tier
	}
	return sub.Tier()
}

var tierRank = map[models.Tier]int{
	models.TierFree:  0,
	models.TierBasic: 1,
	models.TierPro:   2,
}

// CapTier returns requested unless it exceeds allowed
func CapTier(requested, allowed models.Tier) models.Tier {
	if tierRank[requested] > tierRank[allowed] {
		return allowed
	}
	return requested
}
