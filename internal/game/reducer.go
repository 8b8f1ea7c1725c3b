package game

import (
	"strings"

	"github.com/google/uuid"
)

// Reduce applies one action to the state and returns the next state. The
// input is never mutated. Malformed or inapplicable actions return the
// input pointer unchanged so callers can detect "nothing happened" with a
// plain identity check before persisting or broadcasting.
func Reduce(s *State, a Action) *State {
	if s == nil {
		s = NewState()
	}
	switch act := a.(type) {
	case AddPlayers:
		return reduceAddPlayers(s, act)
	case UpdatePlayer:
		return reduceUpdatePlayer(s, act)
	case RemovePlayer:
		return reduceRemovePlayer(s, act)
	case AddCompany:
		return reduceAddCompany(s, act)
	case UpdateCompany:
		return reduceUpdateCompany(s, act)
	case RemoveCompany:
		return reduceRemoveCompany(s, act)
	case SetNumORs:
		return reduceSetNumORs(s, act)
	case SetIPOMode:
		return reduceSetIPOMode(s, act)
	case LockSetup:
		return reduceLockSetup(s, act)
	case SetStock:
		return reduceSetStock(s, act)
	case RunValidation:
		next := s.shallow()
		next.SRValidation = BuildValidationMap(s.Companies, s.Flow.HasIPOShares)
		return next
	case MoveCompanyUp:
		return reduceMoveCompany(s, act.CompanyID, -1)
	case MoveCompanyDown:
		return reduceMoveCompany(s, act.CompanyID, +1)
	case RebalanceRemaining:
		return reduceRebalanceRemaining(s, act)
	case SelectCompany:
		if s.companyIndex(act.CompanyID) < 0 || s.ActiveCycle.SelectedCompanyID == act.CompanyID {
			return s
		}
		next := s.shallow()
		next.ActiveCycle = s.ActiveCycle.clone()
		next.ActiveCycle.SelectedCompanyID = act.CompanyID
		return next
	case MarkCompanyDone:
		return reduceMarkCompanyDone(s, act)
	case NextOR:
		return reduceNextOR(s)
	case SetRevenue:
		return reduceSetRevenue(s, act)
	case AddTrain:
		return reduceAddTrain(s, act)
	case UpdateTrainStops:
		return reduceUpdateTrainStops(s, act)
	case ClearTrain:
		return reduceClearTrain(s, act)
	case DeleteTrain:
		return reduceDeleteTrain(s, act)
	case CloseCycle:
		return reduceCloseCycle(s, act)
	case GoToStep:
		switch act.Step {
		case StepSetup, StepStockRound, StepORRound, StepSummary:
		default:
			return s
		}
		if s.Flow.Step == act.Step {
			return s
		}
		next := s.shallow()
		next.Flow.Step = act.Step
		return next
	case SelectSummaryCycle:
		for _, rec := range s.CycleHistory {
			if rec.CycleNo == act.CycleNo {
				next := s.shallow()
				next.SummarySelectedCycle = act.CycleNo
				return next
			}
		}
		return s
	case Load:
		return Normalize(act.Payload)
	case Reset:
		return NewState()
	default:
		return s
	}
}

func newID() string {
	return uuid.NewString()
}

func reduceAddPlayers(s *State, act AddPlayers) *State {
	names := make([]string, 0, len(act.Names))
	for _, n := range act.Names {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	if len(names) == 0 {
		return s
	}
	next := s.shallow()
	players := clonePlayers(s.Players)
	for _, name := range names {
		index := len(players)
		seat := SeatLabel(index)
		players = append(players, Player{
			ID:          newID(),
			SeatLabel:   seat,
			Name:        name,
			DisplayName: name,
			Color:       PickPlayerColor("", index),
			Symbol:      PickPlayerSymbol("", index),
		})
	}
	next.Players = players
	return next
}

func reduceUpdatePlayer(s *State, act UpdatePlayer) *State {
	i := s.playerIndex(act.PlayerID)
	if i < 0 {
		return s
	}
	next := s.shallow()
	players := clonePlayers(s.Players)
	p := players[i]
	if name := strings.TrimSpace(act.Name); name != "" {
		p.Name = name
		p.DisplayName = name
	}
	if paletteHas(PlayerColors, act.Color) {
		p.Color = act.Color
	}
	if paletteHas(PlayerSymbols, act.Symbol) {
		p.Symbol = act.Symbol
	}
	players[i] = p
	next.Players = players
	return next
}

func reduceRemovePlayer(s *State, act RemovePlayer) *State {
	i := s.playerIndex(act.PlayerID)
	if i < 0 {
		return s
	}
	next := s.shallow()
	players := make([]Player, 0, len(s.Players)-1)
	players = append(players, s.Players[:i]...)
	players = append(players, s.Players[i+1:]...)
	next.Players = players

	// Cascade: drop the player's holdings everywhere.
	companies := make([]Company, len(s.Companies))
	copy(companies, s.Companies)
	for ci := range companies {
		if companies[ci].HoldingFor(act.PlayerID) == 0 {
			continue
		}
		c := companies[ci].Clone()
		holdings := c.StockHoldings[:0]
		for _, h := range c.StockHoldings {
			if h.PlayerID != act.PlayerID {
				holdings = append(holdings, h)
			}
		}
		c.StockHoldings = holdings
		companies[ci] = c
	}
	next.Companies = companies
	return next
}

func reduceAddCompany(s *State, act AddCompany) *State {
	next := s.shallow()
	genericIndex := 0
	for _, c := range s.Companies {
		if c.GenericIndex > genericIndex {
			genericIndex = c.GenericIndex
		}
	}
	genericIndex++
	name := strings.TrimSpace(act.Name)
	if name == "" {
		name = CompanyLabel(genericIndex)
	}
	index := len(s.Companies)
	company := Company{
		ID:              newID(),
		Name:            name,
		DisplayName:     name,
		GenericIndex:    genericIndex,
		Color:           PickCompanyColor("", index),
		Symbol:          PickCompanySymbol("", index),
		Trains:          []Train{},
		StockHoldings:   []StockHolding{},
		IsUnestablished: true,
		ORRevenues:      RebuildORRevenues(nil, s.Flow.NumORs),
	}
	companies := make([]Company, 0, len(s.Companies)+1)
	companies = append(companies, s.Companies...)
	companies = append(companies, company)
	next.Companies = companies

	cycle := s.ActiveCycle.clone()
	cycle.CompanyOrder = append(cycle.CompanyOrder, company.ID)
	if cycle.SelectedCompanyID == "" {
		cycle.SelectedCompanyID = company.ID
	}
	next.ActiveCycle = cycle
	return next
}

func reduceUpdateCompany(s *State, act UpdateCompany) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	return s.withCompany(i, func(c Company) Company {
		if name := strings.TrimSpace(act.Name); name != "" {
			c.Name = name
			c.DisplayName = name
		}
		if abbr := strings.TrimSpace(act.Abbr); abbr != "" {
			c.Abbr = abbr
		}
		if paletteHas(CompanyColors, act.Color) {
			c.Color = act.Color
		}
		if paletteHas(CompanySymbols, act.Symbol) {
			c.Symbol = act.Symbol
		}
		return c
	})
}

func reduceRemoveCompany(s *State, act RemoveCompany) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	next := s.shallow()
	companies := make([]Company, 0, len(s.Companies)-1)
	companies = append(companies, s.Companies[:i]...)
	companies = append(companies, s.Companies[i+1:]...)
	next.Companies = companies

	cycle := s.ActiveCycle.clone()
	cycle.CompanyOrder = RepairCompanyOrder(cycle.CompanyOrder, companies)
	for or, ids := range cycle.CompletedByOR {
		kept := ids[:0]
		for _, id := range ids {
			if id != act.CompanyID {
				kept = append(kept, id)
			}
		}
		cycle.CompletedByOR[or] = kept
	}
	if cycle.SelectedCompanyID == act.CompanyID {
		cycle.SelectedCompanyID = ""
		if len(cycle.CompanyOrder) > 0 {
			cycle.SelectedCompanyID = cycle.CompanyOrder[0]
		}
	}
	next.ActiveCycle = cycle

	if s.SRValidation != nil {
		validation := make(map[string]Validation, len(s.SRValidation))
		for id, v := range s.SRValidation {
			if id != act.CompanyID {
				validation[id] = v
			}
		}
		next.SRValidation = validation
	}
	return next
}

func reduceSetNumORs(s *State, act SetNumORs) *State {
	if s.Flow.SetupLocked {
		return s
	}
	numORs := clampORs(act.NumORs)
	next := s.shallow()
	next.Flow.NumORs = numORs

	companies := make([]Company, len(s.Companies))
	for i, c := range s.Companies {
		cc := c.Clone()
		cc.ORRevenues = RebuildORRevenues(cc.ORRevenues, numORs)
		companies[i] = cc
	}
	next.Companies = companies

	cycle := s.ActiveCycle.clone()
	cycle.CompletedByOR = freshCompletedMap(numORs)
	if cycle.CurrentOR > numORs {
		cycle.CurrentOR = numORs
	}
	next.ActiveCycle = cycle
	return next
}

func reduceSetIPOMode(s *State, act SetIPOMode) *State {
	if s.Flow.SetupLocked {
		return s
	}
	next := s.shallow()
	next.Flow.HasIPOShares = act.HasIPOShares
	return next
}

func reduceLockSetup(s *State, act LockSetup) *State {
	if !act.Locked {
		if !s.Flow.SetupLocked {
			return s
		}
		next := s.shallow()
		next.Flow.SetupLocked = false
		return next
	}

	next := s.shallow()
	next.Flow.SetupLocked = true
	next.Flow.Step = StepStockRound

	companies := make([]Company, len(s.Companies))
	order := make([]string, 0, len(s.Companies))
	for i, c := range s.Companies {
		cc := c.Clone()
		cc.ORRevenues = RebuildORRevenues(cc.ORRevenues, s.Flow.NumORs)
		companies[i] = cc
		order = append(order, cc.ID)
	}
	next.Companies = companies

	cycle := s.ActiveCycle.clone()
	cycle.CompanyOrder = order
	cycle.CurrentOR = 1
	cycle.CompletedByOR = freshCompletedMap(s.Flow.NumORs)
	cycle.SelectedCompanyID = ""
	if len(order) > 0 {
		cycle.SelectedCompanyID = order[0]
	}
	next.ActiveCycle = cycle
	return next
}

func hasAnyStockInput(c Company) bool {
	for _, h := range c.StockHoldings {
		if h.Percentage > 0 {
			return true
		}
	}
	return c.TreasuryStockPercentage > 0 || c.BankPoolPercentage > 0
}

func reduceSetStock(s *State, act SetStock) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	value := ParsePercent(act.Value)
	switch act.Target {
	case TargetPlayer:
		if s.playerIndex(act.PlayerID) < 0 {
			return s
		}
	case TargetTreasury, TargetBank:
	default:
		return s
	}
	return s.withCompany(i, func(c Company) Company {
		switch act.Target {
		case TargetPlayer:
			holdings := make([]StockHolding, 0, len(c.StockHoldings)+1)
			replaced := false
			for _, h := range c.StockHoldings {
				if h.PlayerID == act.PlayerID {
					replaced = true
					if value > 0 {
						holdings = append(holdings, StockHolding{PlayerID: act.PlayerID, Percentage: value})
					}
					continue
				}
				holdings = append(holdings, h)
			}
			if !replaced && value > 0 {
				holdings = append(holdings, StockHolding{PlayerID: act.PlayerID, Percentage: value})
			}
			c.StockHoldings = holdings
		case TargetTreasury:
			c.TreasuryStockPercentage = value
		case TargetBank:
			c.BankPoolPercentage = value
		}
		// A company becomes established the moment it receives any stock.
		// The reverse never happens automatically.
		if hasAnyStockInput(c) {
			c.IsUnestablished = false
		}
		return c
	})
}

func reduceMoveCompany(s *State, companyID string, delta int) *State {
	i := s.companyIndex(companyID)
	if i < 0 || s.Companies[i].IsUnestablished {
		return s
	}
	if len(s.ActiveCycle.CompletedByOR[s.ActiveCycle.CurrentOR]) > 0 {
		// Ordering is locked once any established company finished the
		// current OR.
		return s
	}
	split := SplitCompanyOrder(s.ActiveCycle.CompanyOrder, s.Companies)
	pos := -1
	for j, id := range split.Established {
		if id == companyID {
			pos = j
			break
		}
	}
	if pos < 0 {
		return s
	}
	swap := pos + delta
	if swap < 0 || swap >= len(split.Established) {
		return s
	}
	established := append([]string(nil), split.Established...)
	established[pos], established[swap] = established[swap], established[pos]

	next := s.shallow()
	cycle := s.ActiveCycle.clone()
	cycle.CompanyOrder = append(established, split.Unestablished...)
	next.ActiveCycle = cycle
	return next
}

func reduceRebalanceRemaining(s *State, act RebalanceRemaining) *State {
	split := SplitCompanyOrder(s.ActiveCycle.CompanyOrder, s.Companies)
	done := make(map[string]bool)
	for _, id := range s.ActiveCycle.CompletedByOR[s.ActiveCycle.CurrentOR] {
		done[id] = true
	}
	completed := make([]string, 0, len(split.Established))
	remaining := make(map[string]bool)
	for _, id := range split.Established {
		if done[id] {
			completed = append(completed, id)
		} else {
			remaining[id] = true
		}
	}
	if len(act.Draft) != len(remaining) {
		return s
	}
	seen := make(map[string]bool, len(act.Draft))
	for _, id := range act.Draft {
		if !remaining[id] || seen[id] {
			return s
		}
		seen[id] = true
	}

	order := make([]string, 0, len(split.Ordered))
	order = append(order, completed...)
	order = append(order, act.Draft...)
	order = append(order, split.Unestablished...)

	next := s.shallow()
	cycle := s.ActiveCycle.clone()
	cycle.CompanyOrder = order
	next.ActiveCycle = cycle
	return next
}

func reduceMarkCompanyDone(s *State, act MarkCompanyDone) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 || s.Companies[i].IsUnestablished {
		return s
	}
	currentOR := s.ActiveCycle.CurrentOR
	for _, id := range s.ActiveCycle.CompletedByOR[currentOR] {
		if id == act.CompanyID {
			return s
		}
	}
	next := s.shallow()
	cycle := s.ActiveCycle.clone()
	cycle.CompletedByOR[currentOR] = append(cycle.CompletedByOR[currentOR], act.CompanyID)

	done := make(map[string]bool, len(cycle.CompletedByOR[currentOR]))
	for _, id := range cycle.CompletedByOR[currentOR] {
		done[id] = true
	}
	split := SplitCompanyOrder(cycle.CompanyOrder, s.Companies)
	pos := 0
	for j, id := range split.Established {
		if id == act.CompanyID {
			pos = j
			break
		}
	}
	// Advance to the next undone established company, wrapping around.
	// Stay on the just-completed one when every company is done.
	cycle.SelectedCompanyID = act.CompanyID
	for step := 1; step <= len(split.Established); step++ {
		candidate := split.Established[(pos+step)%len(split.Established)]
		if !done[candidate] {
			cycle.SelectedCompanyID = candidate
			break
		}
	}
	next.ActiveCycle = cycle
	return next
}

func reduceNextOR(s *State) *State {
	if s.ActiveCycle.CurrentOR >= s.Flow.NumORs {
		return s
	}
	next := s.shallow()
	cycle := s.ActiveCycle.clone()
	cycle.CurrentOR++

	split := SplitCompanyOrder(cycle.CompanyOrder, s.Companies)
	established := make(map[string]bool, len(split.Established))
	for _, id := range split.Established {
		established[id] = true
	}
	kept := []string{}
	for _, id := range cycle.CompletedByOR[cycle.CurrentOR] {
		if established[id] {
			kept = append(kept, id)
		}
	}
	cycle.CompletedByOR[cycle.CurrentOR] = kept

	cycle.SelectedCompanyID = ""
	if len(split.Established) > 0 {
		cycle.SelectedCompanyID = split.Established[0]
	} else if len(split.Ordered) > 0 {
		cycle.SelectedCompanyID = split.Ordered[0]
	}
	next.ActiveCycle = cycle
	return next
}

func reduceSetRevenue(s *State, act SetRevenue) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	if act.ORNum < 1 || act.ORNum > s.Flow.NumORs {
		return s
	}
	return s.withCompany(i, func(c Company) Company {
		revs := RebuildORRevenues(c.ORRevenues, s.Flow.NumORs)
		for j := range revs {
			if revs[j].ORNum == act.ORNum {
				revs[j].Revenue = act.Revenue
			}
		}
		c.ORRevenues = revs
		return c
	})
}

func reduceAddTrain(s *State, act AddTrain) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	trainID := strings.TrimSpace(act.TrainID)
	if trainID == "" {
		trainID = newID()
	}
	return s.withCompany(i, func(c Company) Company {
		for _, t := range c.Trains {
			if t.ID == trainID {
				return c
			}
		}
		c.Trains = append(c.Trains, Train{ID: trainID, Stops: []int{}})
		return c
	})
}

func sanitizeStops(stops []int) []int {
	out := make([]int, 0, len(stops))
	for _, v := range stops {
		if v < 0 {
			v = 0
		}
		out = append(out, v)
	}
	return out
}

func reduceUpdateTrainStops(s *State, act UpdateTrainStops) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	found := false
	next := s.withCompany(i, func(c Company) Company {
		for j := range c.Trains {
			if c.Trains[j].ID == act.TrainID {
				c.Trains[j].Stops = sanitizeStops(act.Stops)
				found = true
			}
		}
		return c
	})
	if !found {
		return s
	}
	return next
}

func reduceClearTrain(s *State, act ClearTrain) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	found := false
	next := s.withCompany(i, func(c Company) Company {
		for j := range c.Trains {
			if c.Trains[j].ID == act.TrainID {
				c.Trains[j].Stops = []int{}
				found = true
			}
		}
		return c
	})
	if !found {
		return s
	}
	return next
}

func reduceDeleteTrain(s *State, act DeleteTrain) *State {
	i := s.companyIndex(act.CompanyID)
	if i < 0 {
		return s
	}
	found := false
	next := s.withCompany(i, func(c Company) Company {
		trains := make([]Train, 0, len(c.Trains))
		for _, t := range c.Trains {
			if t.ID == act.TrainID {
				found = true
				continue
			}
			trains = append(trains, t)
		}
		c.Trains = trains
		return c
	})
	if !found {
		return s
	}
	return next
}

func reduceCloseCycle(s *State, act CloseCycle) *State {
	next := s.shallow()

	record := CycleRecord{
		CycleNo:     s.ActiveCycle.CycleNo,
		CompletedAt: act.CompletedAt,
		Players:     clonePlayers(s.Players),
		Companies:   cloneCompanies(s.Companies),
	}
	history := make([]CycleRecord, 0, len(s.CycleHistory)+1)
	history = append(history, s.CycleHistory...)
	history = append(history, record)
	next.CycleHistory = history

	// Holdings and treasury/bank percentages carry into the next cycle;
	// only revenues and completion tracking reset.
	companies := make([]Company, len(s.Companies))
	for i, c := range s.Companies {
		cc := c.Clone()
		if !cc.IsUnestablished {
			cc.IsUnestablished = InferUnestablished(cc, s.Flow.HasIPOShares)
		}
		cc.ORRevenues = RebuildORRevenues(nil, s.Flow.NumORs)
		companies[i] = cc
	}
	next.Companies = companies

	cycle := s.ActiveCycle.clone()
	cycle.CycleNo++
	cycle.CurrentOR = 1
	cycle.CompanyOrder = RepairCompanyOrder(cycle.CompanyOrder, companies)
	cycle.CompletedByOR = freshCompletedMap(s.Flow.NumORs)
	split := SplitCompanyOrder(cycle.CompanyOrder, companies)
	cycle.SelectedCompanyID = ""
	if len(split.Established) > 0 {
		cycle.SelectedCompanyID = split.Established[0]
	} else if len(split.Ordered) > 0 {
		cycle.SelectedCompanyID = split.Ordered[0]
	}
	next.ActiveCycle = cycle

	next.Flow.Step = StepStockRound
	next.SummarySelectedCycle = record.CycleNo
	next.SRValidation = nil
	return next
}

func freshCompletedMap(numORs int) map[int][]string {
	out := make(map[int][]string, numORs)
	for or := 1; or <= numORs; or++ {
		out[or] = []string{}
	}
	return out
}
