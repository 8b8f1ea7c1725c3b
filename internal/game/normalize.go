package game

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Normalize turns an arbitrary payload (nil, a map from json.Unmarshal,
// an already-typed State, a stale-schema export, a remote snapshot) into a fully
// populated State. It never panics: absent or malformed fields fall back to
// defaults. Normalizing an already-normal state is a no-op, so corrupt
// local data can always be loaded without crashing a session.
func Normalize(v any) *State {
	switch t := v.(type) {
	case *State:
		if t == nil {
			return NewState()
		}
		return normalizeTyped(t)
	case State:
		return normalizeTyped(&t)
	}

	m, ok := asMap(v)
	if !ok {
		return NewState()
	}

	s := NewState()
	s.Flow = normalizeFlow(m)

	players, _ := asSlice(field(m, "players"))
	s.Players = make([]Player, 0, len(players))
	for i, raw := range players {
		pm, ok := asMap(raw)
		if !ok {
			pm = map[string]any{}
		}
		s.Players = append(s.Players, normalizePlayer(pm, i, ""))
	}

	companies, _ := asSlice(field(m, "companies"))
	s.Companies = make([]Company, 0, len(companies))
	for i, raw := range companies {
		cm, ok := asMap(raw)
		if !ok {
			cm = map[string]any{}
		}
		s.Companies = append(s.Companies, normalizeCompany(cm, i, "", s.Flow))
	}

	s.ActiveCycle = normalizeActiveCycle(m, s.Companies, s.Flow.NumORs)

	history, _ := asSlice(field(m, "cycle_history", "cycleHistory"))
	s.CycleHistory = make([]CycleRecord, 0, len(history))
	for i, raw := range history {
		hm, ok := asMap(raw)
		if !ok {
			continue
		}
		s.CycleHistory = append(s.CycleHistory, normalizeCycleRecord(hm, i, s.Flow))
	}

	if n, ok := asInt(field(m, "summary_selected_cycle_no", "summarySelectedCycleNo")); ok && n >= 0 {
		s.SummarySelectedCycle = n
	}
	return s
}

// normalizeTyped repairs an already-decoded State by round-tripping it
// through its wire form, so typed and untyped inputs land on the same
// normal form.
func normalizeTyped(s *State) *State {
	raw, err := json.Marshal(s)
	if err != nil {
		return NewState()
	}
	return NormalizeJSON(raw)
}

// NormalizeJSON decodes raw bytes and normalizes the result. Parse failures
// yield a fresh base state.
func NormalizeJSON(data []byte) *State {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return NewState()
	}
	return Normalize(v)
}

func normalizeFlow(m map[string]any) Flow {
	f := Flow{Step: StepSetup, NumORs: DefaultNumORs}
	fm, _ := asMap(field(m, "flow"))

	// flow.numORs wins; the legacy schema kept numORs at the top level.
	if n, ok := asInt(field(fm, "num_ors", "numORs")); ok {
		f.NumORs = clampORs(n)
	} else if n, ok := asInt(field(m, "num_ors", "numORs")); ok {
		f.NumORs = clampORs(n)
	}

	if step, ok := asString(field(fm, "step")); ok {
		switch Step(step) {
		case StepSetup, StepStockRound, StepORRound, StepSummary:
			f.Step = Step(step)
		}
	}
	if b, ok := asBool(field(fm, "setup_locked", "setupLocked")); ok {
		f.SetupLocked = b
	}
	if b, ok := asBool(field(fm, "has_ipo_shares", "hasIpoShares")); ok {
		f.HasIPOShares = b
	}
	return f
}

func clampORs(n int) int {
	if n < MinORs {
		return MinORs
	}
	if n > MaxORs {
		return MaxORs
	}
	return n
}

func normalizePlayer(m map[string]any, index int, idSeed string) Player {
	p := Player{}
	if id, ok := asString(field(m, "id")); ok && id != "" {
		p.ID = id
	} else {
		p.ID = fmt.Sprintf("%splayer-%d", idSeed, index+1)
	}
	if seat, ok := asString(field(m, "seat_label", "seatLabel")); ok && seat != "" {
		p.SeatLabel = seat
	} else {
		p.SeatLabel = SeatLabel(index)
	}
	p.Name, _ = asString(field(m, "name"))
	if dn, ok := asString(field(m, "display_name", "displayName")); ok && dn != "" {
		p.DisplayName = dn
	} else if p.Name != "" {
		p.DisplayName = p.Name
	} else {
		p.DisplayName = DefaultPlayerName(p.SeatLabel)
	}
	color, _ := asString(field(m, "color"))
	p.Color = PickPlayerColor(color, index)
	symbol, _ := asString(field(m, "symbol"))
	p.Symbol = PickPlayerSymbol(symbol, index)
	return p
}

func normalizeCompany(m map[string]any, index int, idSeed string, flow Flow) Company {
	c := Company{}
	if id, ok := asString(field(m, "id")); ok && id != "" {
		c.ID = id
	} else {
		c.ID = fmt.Sprintf("%scompany-%d", idSeed, index+1)
	}
	if n, ok := asInt(field(m, "generic_index", "genericIndex")); ok && n >= 1 {
		c.GenericIndex = n
	} else {
		c.GenericIndex = index + 1
	}
	if name, ok := asString(field(m, "name")); ok && name != "" {
		c.Name = name
	} else {
		c.Name = CompanyLabel(c.GenericIndex)
	}
	if dn, ok := asString(field(m, "display_name", "displayName")); ok && dn != "" {
		c.DisplayName = dn
	} else {
		c.DisplayName = c.Name
	}
	c.Abbr, _ = asString(field(m, "abbr"))
	color, _ := asString(field(m, "color"))
	c.Color = PickCompanyColor(color, index)
	symbol, _ := asString(field(m, "symbol"))
	c.Symbol = PickCompanySymbol(symbol, index)

	c.Trains = normalizeTrains(field(m, "trains"), c.ID)
	c.StockHoldings = normalizeHoldings(field(m, "stock_holdings", "stockHoldings"))

	if n, ok := asInt(field(m, "treasury_stock_percentage", "treasuryStockPercentage")); ok {
		c.TreasuryStockPercentage = ClampPercent(n)
	}
	if n, ok := asInt(field(m, "bank_pool_percentage", "bankPoolPercentage")); ok {
		c.BankPoolPercentage = ClampPercent(n)
	}
	if n, ok := asInt(field(m, "ipo_percentage", "ipoPercentage")); ok {
		c.IPOPercentage = ClampPercent(n)
	}

	if b, ok := asBool(field(m, "is_unestablished", "isUnestablished")); ok {
		c.IsUnestablished = b
	} else {
		c.IsUnestablished = InferUnestablished(c, flow.HasIPOShares)
	}

	revs, _ := asSlice(field(m, "or_revenues", "orRevenues"))
	parsed := make([]ORRevenue, 0, len(revs))
	for _, raw := range revs {
		rm, ok := asMap(raw)
		if !ok {
			continue
		}
		orNum, ok := asInt(field(rm, "or_num", "orNum"))
		if !ok {
			continue
		}
		revenue, _ := asInt(field(rm, "revenue"))
		parsed = append(parsed, ORRevenue{ORNum: orNum, Revenue: revenue})
	}
	c.ORRevenues = RebuildORRevenues(parsed, flow.NumORs)
	return c
}

func normalizeTrains(v any, companyID string) []Train {
	raw, _ := asSlice(v)
	trains := make([]Train, 0, len(raw))
	for i, item := range raw {
		tm, ok := asMap(item)
		if !ok {
			continue
		}
		t := Train{Stops: []int{}}
		if id, ok := asString(field(tm, "id")); ok && id != "" {
			t.ID = id
		} else {
			t.ID = fmt.Sprintf("%s-train-%d", companyID, i+1)
		}
		stops, _ := asSlice(field(tm, "stops"))
		for _, s := range stops {
			n, ok := asInt(s)
			if !ok {
				continue
			}
			if n < 0 {
				n = 0
			}
			t.Stops = append(t.Stops, n)
		}
		trains = append(trains, t)
	}
	return trains
}

func normalizeHoldings(v any) []StockHolding {
	raw, _ := asSlice(v)
	holdings := make([]StockHolding, 0, len(raw))
	seen := map[string]bool{}
	for _, item := range raw {
		hm, ok := asMap(item)
		if !ok {
			continue
		}
		playerID, _ := asString(field(hm, "player_id", "playerId"))
		if playerID == "" || seen[playerID] {
			continue
		}
		pct, _ := asInt(field(hm, "percentage"))
		pct = ClampPercent(pct)
		if pct == 0 {
			continue
		}
		seen[playerID] = true
		holdings = append(holdings, StockHolding{PlayerID: playerID, Percentage: pct})
	}
	return holdings
}

func normalizeActiveCycle(m map[string]any, companies []Company, numORs int) ActiveCycle {
	ac := ActiveCycle{CycleNo: 1, CurrentOR: 1}
	cm, _ := asMap(field(m, "active_cycle", "activeCycle"))

	if n, ok := asInt(field(cm, "cycle_no", "cycleNo")); ok && n >= 1 {
		ac.CycleNo = n
	}

	order, _ := asSlice(field(cm, "company_order", "companyOrder"))
	rawOrder := make([]string, 0, len(order))
	for _, item := range order {
		if id, ok := asString(item); ok {
			rawOrder = append(rawOrder, id)
		}
	}
	ac.CompanyOrder = RepairCompanyOrder(rawOrder, companies)

	if n, ok := asInt(field(cm, "current_or", "currentOR")); ok {
		if n < 1 {
			n = 1
		}
		if n > numORs {
			n = numORs
		}
		ac.CurrentOR = n
	}

	known := make(map[string]bool, len(companies))
	for _, c := range companies {
		known[c.ID] = true
	}
	completed, _ := asMap(field(cm, "completed_company_ids_by_or", "completedCompanyIdsByOR"))
	ac.CompletedByOR = make(map[int][]string, numORs)
	for or := 1; or <= numORs; or++ {
		ids := []string{}
		raw, _ := asSlice(completed[strconv.Itoa(or)])
		seen := map[string]bool{}
		for _, item := range raw {
			id, ok := asString(item)
			if !ok || !known[id] || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		ac.CompletedByOR[or] = ids
	}

	if id, ok := asString(field(cm, "selected_company_id", "selectedCompanyId")); ok && known[id] {
		ac.SelectedCompanyID = id
	} else if len(ac.CompanyOrder) > 0 {
		ac.SelectedCompanyID = ac.CompanyOrder[0]
	}
	return ac
}

func normalizeCycleRecord(m map[string]any, historyIndex int, flow Flow) CycleRecord {
	rec := CycleRecord{}
	if n, ok := asInt(field(m, "cycle_no", "cycleNo")); ok && n >= 1 {
		rec.CycleNo = n
	} else {
		rec.CycleNo = historyIndex + 1
	}
	rec.CompletedAt, _ = asString(field(m, "completed_at", "completedAt"))

	seed := fmt.Sprintf("h%d-", historyIndex+1)
	players, _ := asSlice(field(m, "players_snapshot", "playersSnapshot"))
	rec.Players = make([]Player, 0, len(players))
	for i, raw := range players {
		pm, ok := asMap(raw)
		if !ok {
			pm = map[string]any{}
		}
		rec.Players = append(rec.Players, normalizePlayer(pm, i, seed))
	}
	companies, _ := asSlice(field(m, "companies_snapshot", "companiesSnapshot"))
	rec.Companies = make([]Company, 0, len(companies))
	for i, raw := range companies {
		cm, ok := asMap(raw)
		if !ok {
			cm = map[string]any{}
		}
		rec.Companies = append(rec.Companies, normalizeCompany(cm, i, seed, flow))
	}
	return rec
}

// field returns the first present key, trying current names before legacy
// spellings.
func field(m map[string]any, keys ...string) any {
	if m == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return strings.TrimSpace(s), ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt accepts native ints plus the float64 values json.Unmarshal
// produces, rejecting non-integral floats.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
