package eodhd

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EODData represents a single day's end-of-day price data.
type EODData struct {
	Date          time.Time `json:"-"`
	DateStr       string    `json:"date"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	AdjustedClose float64   `json:"adjusted_close"`
	Volume        int64     `json:"volume"`
}

// EODResponse is a slice of EODData.
type EODResponse []EODData

// NewsItem represents a single news article.
type NewsItem struct {
	Date      time.Time      `json:"-"`
	DateStr   string         `json:"date"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Link      string         `json:"link"`
	Symbols   []string       `json:"symbols"`
	Tags      []string       `json:"tags"`
	Sentiment *NewsSentiment `json:"sentiment,omitempty"`
}

// NewsSentiment represents sentiment scores for a news article.
type NewsSentiment struct {
	Polarity float64 `json:"polarity"`
	Negative float64 `json:"neg"`
	Neutral  float64 `json:"neu"`
	Positive float64 `json:"pos"`
}

// NewsResponse is a slice of NewsItem.
type NewsResponse []NewsItem

// RealTimeQuote is the delayed live quote. Fields arrive as "NA" outside trading hours.
type RealTimeQuote struct {
	Code          string `json:"code"`
	Timestamp     int64  `json:"timestamp"`
	Open          Number `json:"open"`
	High          Number `json:"high"`
	Low           Number `json:"low"`
	Close         Number `json:"close"`
	Volume        Number `json:"volume"`
	PreviousClose Number `json:"previousClose"`
	Change        Number `json:"change"`
	ChangePercent Number `json:"change_p"`
}

// Time returns the quote timestamp
func (q RealTimeQuote) Time() time.Time {
	if q.Timestamp <= 0 {
		return time.Time{}
	}
	return time.Unix(q.Timestamp, 0).UTC()
}

// SearchResult is one match from the search endpoint.
type SearchResult struct {
	Code          string  `json:"Code"`
	Exchange      string  `json:"Exchange"`
	Name          string  `json:"Name"`
	Type          string  `json:"Type"`
	Country       string  `json:"Country"`
	Currency      string  `json:"Currency"`
	ISIN          string  `json:"ISIN"`
	PreviousClose float64 `json:"previousClose"`
}

// SearchResponse is a slice of SearchResult.
type SearchResponse []SearchResult

// Number decodes numeric fields that may be sent as numbers, numeric strings or "NA".
type Number float64

// UnmarshalJSON accepts 12.5, "12.5" and "NA" (decoded as zero)
func (n *Number) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "NA" || raw == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", raw, err)
	}
	*n = Number(v)
	return nil
}

// Float returns the value as float64
func (n Number) Float() float64 {
	return float64(n)
}
