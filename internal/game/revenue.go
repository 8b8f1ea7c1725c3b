package game

// SumTrainStops totals a train's route. Stop order is user-visible but has
// no effect on the sum.
func SumTrainStops(stops []int) int {
	total := 0
	for _, s := range stops {
		total += s
	}
	return total
}

// CompanyRunRevenue totals every train's stops for one operating round.
func CompanyRunRevenue(trains []Train) int {
	total := 0
	for _, t := range trains {
		total += SumTrainStops(t.Stops)
	}
	return total
}

// TotalORRevenue sums the revenues recorded for operating rounds 1..numORs.
// Entries outside that range are ignored.
func TotalORRevenue(revs []ORRevenue, numORs int) int {
	total := 0
	for _, r := range revs {
		if r.ORNum >= 1 && r.ORNum <= numORs {
			total += r.Revenue
		}
	}
	return total
}

// DividendFor computes a shareholder's payout with floor division, the way
// the physical game rounds partial shares down.
func DividendFor(revenue, percentage int) int {
	product := revenue * percentage
	q := product / 100
	if product%100 != 0 && product < 0 {
		q--
	}
	return q
}

// RebuildORRevenues resizes a revenue list to exactly numORs entries, one
// per round number 1..numORs. Existing values are carried over by round
// number, missing rounds are padded with zero, and out-of-range entries are
// dropped. Idempotent and independent of input order.
func RebuildORRevenues(revs []ORRevenue, numORs int) []ORRevenue {
	byOR := make(map[int]int, len(revs))
	for _, r := range revs {
		if r.ORNum >= 1 && r.ORNum <= numORs {
			if _, ok := byOR[r.ORNum]; !ok {
				byOR[r.ORNum] = r.Revenue
			}
		}
	}
	out := make([]ORRevenue, numORs)
	for i := 0; i < numORs; i++ {
		out[i] = ORRevenue{ORNum: i + 1, Revenue: byOR[i+1]}
	}
	return out
}
