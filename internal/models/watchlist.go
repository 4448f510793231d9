package models

import "time"

// WatchlistItem is a symbol tracked by one user. (UserID, Symbol) is unique among active items.
type WatchlistItem struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" badgerhold:"index" gorm:"index"`
	Symbol    string    `json:"symbol"`
	Code      string    `json:"-"` // Symbol without exchange suffix
	Name      string    `json:"name"`
	Market    string    `json:"market"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
