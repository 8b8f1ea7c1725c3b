package game

import "testing"

func TestSeatLabel(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "P27"},
		{40, "P41"},
	}
	for _, tc := range tests {
		if got := SeatLabel(tc.index); got != tc.want {
			t.Fatalf("SeatLabel(%d) = %q, want %q", tc.index, got, tc.want)
		}
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"40", 40},
		{" 40 ", 40},
		{"0", 0},
		{"100", 100},
		{"101", 100},
		{"-5", 0},
		{"4.5", 0},
		{"abc", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := ParsePercent(tc.raw); got != tc.want {
			t.Fatalf("ParsePercent(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestPaletteFallbacks(t *testing.T) {
	if got := PickPlayerColor("blue", 5); got != "blue" {
		t.Fatalf("recognized color replaced: %q", got)
	}
	if got := PickPlayerColor("chartreuse", 2); got != PlayerColors[2] {
		t.Fatalf("fallback = %q, want index-based %q", got, PlayerColors[2])
	}
	if got := PickCompanySymbol("", 9); got != CompanySymbols[9%len(CompanySymbols)] {
		t.Fatalf("symbol fallback = %q", got)
	}
}

func TestInferUnestablished(t *testing.T) {
	empty := Company{}
	if !InferUnestablished(empty, false) {
		t.Fatalf("empty company must infer unestablished")
	}

	held := Company{StockHoldings: []StockHolding{{PlayerID: "p1", Percentage: 10}}}
	if InferUnestablished(held, false) {
		t.Fatalf("player holding must infer established")
	}

	treasury := Company{TreasuryStockPercentage: 5}
	if InferUnestablished(treasury, false) {
		t.Fatalf("treasury stock must infer established")
	}

	// Bank pool only counts when IPO shares exist.
	bank := Company{BankPoolPercentage: 30}
	if !InferUnestablished(bank, false) {
		t.Fatalf("bank pool must not count without IPO shares")
	}
	if InferUnestablished(bank, true) {
		t.Fatalf("bank pool must count with IPO shares")
	}
}
