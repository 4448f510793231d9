package common

import (
	"strings"
)

// Market identifies the listing venue of a symbol
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
	MarketUS     Market = "US"
)

// Symbol represents a normalized ticker.
// Korean listings are 6-digit codes; US listings are alphabetic tickers.
type Symbol struct {
	// Code is the bare listing code (e.g., "005930", "AAPL")
	Code string
	// Market is the listing venue
	Market Market
	// Raw is the original input
	Raw string
}

// suffixToMarket maps regional suffixes seen in user input and data feeds
var suffixToMarket = map[string]Market{
	"KS":     MarketKOSPI,  // Yahoo-style KOSPI
	"KO":     MarketKOSPI,  // EODHD KOSPI
	"KQ":     MarketKOSDAQ, // KOSDAQ (both conventions)
	"US":     MarketUS,
	"KOSPI":  MarketKOSPI,
	"KOSDAQ": MarketKOSDAQ,
}

// prefixToMarket maps exchange-qualified prefixes (EXCHANGE:CODE)
var prefixToMarket = map[string]Market{
	"KRX":    MarketKOSPI,
	"KOSPI":  MarketKOSPI,
	"KOSDAQ": MarketKOSDAQ,
	"NYSE":   MarketUS,
	"NASDAQ": MarketUS,
	"US":     MarketUS,
}

// ParseSymbol normalizes a user or feed symbol.
// Supports formats:
//   - "005930"        -> Code="005930", Market=defaultMarket (KOSPI when empty)
//   - "005930.KS"     -> Code="005930", Market=KOSPI
//   - "035720.KQ"     -> Code="035720", Market=KOSDAQ
//   - "KOSDAQ:035720" -> Code="035720", Market=KOSDAQ
//   - "aapl"          -> Code="AAPL",   Market=US
//   - "AAPL.US"       -> Code="AAPL",   Market=US
func ParseSymbol(raw string, defaultMarket Market) Symbol {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return Symbol{}
	}
	if defaultMarket == "" {
		defaultMarket = MarketKOSPI
	}

	if idx := strings.Index(s, ":"); idx > 0 {
		if market, ok := prefixToMarket[s[:idx]]; ok {
			return Symbol{Code: s[idx+1:], Market: market, Raw: raw}
		}
	}

	if idx := strings.LastIndex(s, "."); idx > 0 {
		if market, ok := suffixToMarket[s[idx+1:]]; ok {
			return Symbol{Code: s[:idx], Market: market, Raw: raw}
		}
	}

	if IsKoreanCode(s) {
		if defaultMarket == MarketUS {
			defaultMarket = MarketKOSPI
		}
		return Symbol{Code: s, Market: defaultMarket, Raw: raw}
	}

	return Symbol{Code: s, Market: MarketUS, Raw: raw}
}

// IsKoreanCode reports whether s is a 6-character KRX listing code (digits, or digits with a trailing letter for preferred shares)
func IsKoreanCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for i := 0; i < 5; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	last := s[5]
	return (last >= '0' && last <= '9') || (last >= 'A' && last <= 'Z')
}

// StripSuffix removes any regional suffix or exchange prefix, returning the bare code upper-cased
func StripSuffix(raw string) string {
	return ParseSymbol(raw, "").Code
}

// IsKorean reports whether the symbol trades on a Korean exchange
func (s Symbol) IsKorean() bool {
	return s.Market == MarketKOSPI || s.Market == MarketKOSDAQ
}

// EODHDSymbol returns the EODHD API symbol format.
// Example: KOSPI 005930 -> "005930.KO", KOSDAQ 035720 -> "035720.KQ", US AAPL -> "AAPL.US"
func (s Symbol) EODHDSymbol() string {
	switch s.Market {
	case MarketKOSPI:
		return s.Code + ".KO"
	case MarketKOSDAQ:
		return s.Code + ".KQ"
	case MarketUS:
		return s.Code + ".US"
	default:
		return s.Code
	}
}

// DisplaySymbol returns the Yahoo-style symbol shown to users
func (s Symbol) DisplaySymbol() string {
	switch s.Market {
	case MarketKOSPI:
		return s.Code + ".KS"
	case MarketKOSDAQ:
		return s.Code + ".KQ"
	default:
		return s.Code
	}
}

// String returns the exchange-qualified form
func (s Symbol) String() string {
	if s.Market == "" || s.Code == "" {
		return s.Code
	}
	return string(s.Market) + ":" + s.Code
}
