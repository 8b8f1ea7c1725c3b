package game

import (
	"reflect"
	"testing"
)

func TestSumTrainStops(t *testing.T) {
	if got := SumTrainStops(nil); got != 0 {
		t.Fatalf("empty route = %d, want 0", got)
	}
	if got := SumTrainStops([]int{30, 20, 10}); got != 60 {
		t.Fatalf("sum = %d, want 60", got)
	}
}

func TestTotalORRevenue(t *testing.T) {
	revs := []ORRevenue{
		{ORNum: 1, Revenue: 100},
		{ORNum: 2, Revenue: 200},
		{ORNum: 9, Revenue: 5000},
	}
	if got := TotalORRevenue(revs, 2); got != 300 {
		t.Fatalf("total = %d, want 300 ignoring out-of-range rounds", got)
	}
}

func TestDividendFor(t *testing.T) {
	tests := []struct {
		revenue, pct, want int
	}{
		{100, 40, 40},
		{110, 33, 36}, // 36.3 floors down
		{0, 50, 0},
		{-110, 33, -37}, // floor, not truncation
	}
	for _, tc := range tests {
		if got := DividendFor(tc.revenue, tc.pct); got != tc.want {
			t.Fatalf("DividendFor(%d, %d) = %d, want %d", tc.revenue, tc.pct, got, tc.want)
		}
	}
}

func TestRebuildORRevenues(t *testing.T) {
	in := []ORRevenue{
		{ORNum: 2, Revenue: 200},
		{ORNum: 1, Revenue: 100},
		{ORNum: 7, Revenue: 999},
	}
	want := []ORRevenue{
		{ORNum: 1, Revenue: 100},
		{ORNum: 2, Revenue: 200},
		{ORNum: 3, Revenue: 0},
	}
	got := RebuildORRevenues(in, 3)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("rebuild = %v, want %v", got, want)
	}

	// Idempotent and order-independent.
	again := RebuildORRevenues(got, 3)
	if !reflect.DeepEqual(again, want) {
		t.Fatalf("rebuild is not idempotent: %v", again)
	}

	shrunk := RebuildORRevenues(got, 1)
	if len(shrunk) != 1 || shrunk[0].Revenue != 100 {
		t.Fatalf("shrink = %v, want single OR1 entry", shrunk)
	}
}
