package game

import (
	"fmt"
	"strconv"
	"strings"
)

// PlayerColors and CompanyColors are the recognized palette options. Values
// outside the palette are replaced by an index-based default during
// normalization.
var PlayerColors = []string{
	"red", "blue", "green", "orange", "purple", "teal", "pink", "brown",
}

var CompanyColors = []string{
	"crimson", "navy", "forest", "amber", "violet", "slate", "maroon", "olive",
}

var PlayerSymbols = []string{
	"●", "■", "▲", "◆", "★", "✚", "☂", "♞",
}

var CompanySymbols = []string{
	"🚂", "🚃", "🛤", "🚉", "⚙", "🏭", "🌉", "⛰",
}

// SeatLabel returns the seat key for a creation-order index: A..Z, then
// P27, P28, ... beyond the alphabet.
func SeatLabel(index int) string {
	if index >= 0 && index < 26 {
		return string(rune('A' + index))
	}
	return fmt.Sprintf("P%d", index+1)
}

// DefaultPlayerName is the fallback display name for a seat.
func DefaultPlayerName(seatLabel string) string {
	return "Player " + seatLabel
}

// CompanyLabel is the default name for the n-th created company.
func CompanyLabel(genericIndex int) string {
	return fmt.Sprintf("Co%d", genericIndex)
}

func paletteHas(palette []string, v string) bool {
	for _, p := range palette {
		if p == v {
			return true
		}
	}
	return false
}

// PickPlayerColor validates v against the player palette, falling back to
// the index-based default.
func PickPlayerColor(v string, index int) string {
	if paletteHas(PlayerColors, v) {
		return v
	}
	return PlayerColors[abs(index)%len(PlayerColors)]
}

func PickPlayerSymbol(v string, index int) string {
	if paletteHas(PlayerSymbols, v) {
		return v
	}
	return PlayerSymbols[abs(index)%len(PlayerSymbols)]
}

func PickCompanyColor(v string, index int) string {
	if paletteHas(CompanyColors, v) {
		return v
	}
	return CompanyColors[abs(index)%len(CompanyColors)]
}

func PickCompanySymbol(v string, index int) string {
	if paletteHas(CompanySymbols, v) {
		return v
	}
	return CompanySymbols[abs(index)%len(CompanySymbols)]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ParsePercent parses a raw percentage input. Anything that is not an
// integer becomes 0; results are clamped to [0, 100].
func ParsePercent(raw string) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return ClampPercent(v)
}

// ClampPercent bounds an integer percentage to [0, 100].
func ClampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// InferUnestablished reports whether a company with no explicit
// establishment flag should be treated as unestablished: no player holds
// shares, the treasury is empty, and, when IPO shares exist, the bank pool
// is empty too.
func InferUnestablished(c Company, hasIPOShares bool) bool {
	for _, h := range c.StockHoldings {
		if h.Percentage > 0 {
			return false
		}
	}
	if c.TreasuryStockPercentage > 0 {
		return false
	}
	if hasIPOShares && c.BankPoolPercentage > 0 {
		return false
	}
	return true
}
