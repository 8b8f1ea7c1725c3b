package game

// RepairCompanyOrder drops order entries that no longer match a company and
// appends, in creation order, any company the order is missing. The result
// is always a permutation of the current company id set.
func RepairCompanyOrder(order []string, companies []Company) []string {
	known := make(map[string]bool, len(companies))
	for _, c := range companies {
		known[c.ID] = true
	}
	repaired := make([]string, 0, len(companies))
	seen := make(map[string]bool, len(companies))
	for _, id := range order {
		if known[id] && !seen[id] {
			repaired = append(repaired, id)
			seen[id] = true
		}
	}
	for _, c := range companies {
		if !seen[c.ID] {
			repaired = append(repaired, c.ID)
			seen[c.ID] = true
		}
	}
	return repaired
}

// CompanyOrderSplit partitions a repaired company order by establishment.
// Ordered is the canonical operating order: established companies first,
// unestablished last, relative order preserved within each group.
type CompanyOrderSplit struct {
	Established   []string
	Unestablished []string
	Ordered       []string
}

// SplitCompanyOrder repairs order against companies and partitions it.
// Establishment membership is the single axis that decides whether a
// company is operable during OR rounds.
func SplitCompanyOrder(order []string, companies []Company) CompanyOrderSplit {
	byID := make(map[string]Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}
	split := CompanyOrderSplit{
		Established:   []string{},
		Unestablished: []string{},
	}
	for _, id := range RepairCompanyOrder(order, companies) {
		if byID[id].IsUnestablished {
			split.Unestablished = append(split.Unestablished, id)
		} else {
			split.Established = append(split.Established, id)
		}
	}
	split.Ordered = make([]string, 0, len(split.Established)+len(split.Unestablished))
	split.Ordered = append(split.Ordered, split.Established...)
	split.Ordered = append(split.Ordered, split.Unestablished...)
	return split
}
