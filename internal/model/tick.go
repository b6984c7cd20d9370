package model

import "strings"

// Tick represents a single trade print from the upstream feed.
// Timestamp is event time in milliseconds since epoch.
type Tick struct {
	Timestamp int64   `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
}

// NormalizeSymbol upper-cases a symbol identifier.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
