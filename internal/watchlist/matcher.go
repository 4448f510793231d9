package watchlist

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/briefing/internal/common"
	"github.com/ternarybob/briefing/internal/interfaces"
	"github.com/ternarybob/briefing/internal/models"
)

// MatchPolicy decides how many watchlist entries may claim one news item
type MatchPolicy string

const (
	// FirstMatchWins attributes each news item to the first matching entry in scan order.
	// A second user watching the same symbol later in the list receives nothing for that item.
	FirstMatchWins MatchPolicy = "first_match"
	// AllMatchesPerUser gives every user their own first matching entry
	AllMatchesPerUser MatchPolicy = "per_user"
)

// ParseMatchPolicy maps a config value to a policy, defaulting to FirstMatchWins
func ParseMatchPolicy(s string) MatchPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(AllMatchesPerUser), "all", "per-user":
		return AllMatchesPerUser
	default:
		return FirstMatchWins
	}
}

// Matcher links news to watchlist entries. Names may be nil.
type Matcher struct {
	policy MatchPolicy
	names  interfaces.NameLookup
	logger arbor.ILogger
}

// NewMatcher creates a matcher with the given policy and alias lookup
func NewMatcher(policy MatchPolicy, names interfaces.NameLookup, logger arbor.ILogger) *Matcher {
	if policy == "" {
		policy = FirstMatchWins
	}
	return &Matcher{policy: policy, names: names, logger: logger}
}

// Policy returns the configured policy
func (m *Matcher) Policy() MatchPolicy {
	return m.policy
}

// Match scans entries in input order for every news item and groups results by user.
// Each (news, user) pair yields at most one MatchedNews.
func (m *Matcher) Match(news []models.NewsItem, entries []models.WatchlistItem) map[string][]models.MatchedNews {
	grouped := make(map[string][]models.MatchedNews)
	terms := m.buildTerms(entries)

	for _, item := range news {
		text := strings.ToLower(item.SearchText())
		claimed := make(map[string]bool)

		for i, entry := range entries {
			if claimed[entry.UserID] {
				continue
			}
			matchType, ok := terms[i].match(text)
			if !ok {
				continue
			}

			grouped[entry.UserID] = append(grouped[entry.UserID], models.MatchedNews{
				News:      item,
				Item:      entry,
				MatchType: matchType,
			})
			claimed[entry.UserID] = true

			if m.policy == FirstMatchWins {
				break
			}
		}
	}

	return grouped
}

// FilterDelivered drops matches whose URL is already in the ledger for that user.
// A user whose ledger cannot be read is skipped for this run rather than risking a duplicate.
func (m *Matcher) FilterDelivered(ctx context.Context, ledger interfaces.DeliveryLedger, grouped map[string][]models.MatchedNews) (map[string][]models.MatchedNews, error) {
	out := make(map[string][]models.MatchedNews, len(grouped))
	var failed int

	for userID, matches := range grouped {
		delivered, err := ledger.DeliveredURLs(ctx, userID)
		if err != nil {
			m.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to read delivery ledger, skipping user")
			failed++
			continue
		}

		var fresh []models.MatchedNews
		for _, match := range matches {
			if delivered[match.News.LinkKey()] {
				continue
			}
			fresh = append(fresh, match)
		}
		if len(fresh) > 0 {
			out[userID] = fresh
		}
	}

	if failed > 0 && failed == len(grouped) {
		return out, fmt.Errorf("delivery ledger unavailable for all %d users", failed)
	}
	return out, nil
}

type entryTerms struct {
	symbol  string
	local   string
	aliases []string
}

func (t entryTerms) match(text string) (models.MatchType, bool) {
	if t.symbol != "" && strings.Contains(text, t.symbol) {
		return models.MatchSymbol, true
	}
	if t.local != "" && strings.Contains(text, t.local) {
		return models.MatchKoreanName, true
	}
	for _, alias := range t.aliases {
		if strings.Contains(text, alias) {
			return models.MatchEnglishName, true
		}
	}
	return "", false
}

func (m *Matcher) buildTerms(entries []models.WatchlistItem) []entryTerms {
	terms := make([]entryTerms, len(entries))
	for i, entry := range entries {
		t := entryTerms{
			symbol: strings.ToLower(common.StripSuffix(entry.Symbol)),
			local:  strings.ToLower(strings.TrimSpace(entry.Name)),
		}
		if m.names != nil {
			for _, alias := range m.names.Aliases(entry.Symbol) {
				if alias = strings.ToLower(strings.TrimSpace(alias)); alias != "" {
					t.aliases = append(t.aliases, alias)
				}
			}
		}
		terms[i] = t
	}
	return terms
}
