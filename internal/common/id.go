package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique briefing run ID
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewDeliveryID generates a unique delivery ledger record ID
func NewDeliveryID() string {
	return "dlv_" + uuid.New().String()
}

// NewWatchlistID generates a unique watchlist item ID
func NewWatchlistID() string {
	return "wl_" + uuid.New().String()
}
