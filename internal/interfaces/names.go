package interfaces

// NameLookup maps a symbol to additional display names (for example an English name for a KRX listing)
type NameLookup interface {
	Aliases(symbol string) []string
}
