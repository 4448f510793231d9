package models

import "time"

// MatchType records which rule linked a news item to a watchlist entry
type MatchType string

const (
	MatchSymbol      MatchType = "symbol"
	MatchKoreanName  MatchType = "korean_name"
	MatchEnglishName MatchType = "english_name"
)

// MatchedNews joins one news item to the watchlist entry it matched for a user
type MatchedNews struct {
	News      NewsItem      `json:"news"`
	Item      WatchlistItem `json:"watchlist_item"`
	MatchType MatchType     `json:"match_type"`
}

// Channel names a delivery channel recorded in the ledger
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// DeliveryRecord marks a (user, news URL) pair as delivered. Written only after a successful send.
type DeliveryRecord struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" badgerhold:"index" gorm:"uniqueIndex:idx_delivery_user_url"`
	WatchlistID string    `json:"watchlist_id"`
	NewsURL     string    `json:"news_url" gorm:"uniqueIndex:idx_delivery_user_url"`
	Channel     Channel   `json:"channel"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// DeliveryKey is the unique ledger key for a (user, url) pair
func DeliveryKey(userID, newsURL string) string {
	return userID + "|" + NormalizeURL(newsURL)
}
