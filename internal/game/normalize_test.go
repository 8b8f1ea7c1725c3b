package game

import (
	"encoding/json"
	"reflect"
	"testing"
)

// roundTrip re-normalizes a state through its own JSON encoding, the same
// path a persisted or remote snapshot takes.
func roundTrip(t *testing.T, s *State) *State {
	t.Helper()
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return NormalizeJSON(data)
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []any{
		nil,
		map[string]any{},
		map[string]any{"numORs": float64(9)},
		map[string]any{
			"players": []any{
				map[string]any{"name": "Ada"},
				map[string]any{},
			},
			"companies": []any{
				map[string]any{"name": "B&O", "treasuryStockPercentage": float64(150)},
				map[string]any{"orRevenues": []any{map[string]any{"orNum": float64(7), "revenue": float64(50)}}},
			},
			"activeCycle": map[string]any{
				"companyOrder": []any{"ghost", "company-2"},
				"currentOR":    float64(42),
			},
		},
	}
	for i, input := range inputs {
		once := Normalize(input)
		twice := roundTrip(t, once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("case %d: normalization is not idempotent:\nonce:  %+v\ntwice: %+v", i, once, twice)
		}
	}
}

func TestNormalizeAcceptsTypedState(t *testing.T) {
	s := Normalize(map[string]any{
		"players": []any{
			map[string]any{"name": "Ada"},
			map[string]any{"name": "Brook"},
		},
		"companies": []any{
			map[string]any{"name": "B&O"},
		},
	})
	if len(s.Players) != 2 || len(s.Companies) != 1 {
		t.Fatalf("setup state has %d players and %d companies", len(s.Players), len(s.Companies))
	}

	again := Normalize(s)
	if !reflect.DeepEqual(s, again) {
		t.Fatalf("double normalization changed the state:\nonce:  %+v\ntwice: %+v", s, again)
	}

	byValue := Normalize(*s)
	if !reflect.DeepEqual(s, byValue) {
		t.Fatalf("value input diverged from pointer input:\nptr: %+v\nval: %+v", s, byValue)
	}

	var nilState *State
	if got := Normalize(nilState); len(got.Players) != 0 || got.Flow.Step != StepSetup {
		t.Fatalf("nil typed state did not fall back to base: %+v", got)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	s := Normalize(nil)
	if s.Flow.Step != StepSetup || s.Flow.NumORs != DefaultNumORs {
		t.Fatalf("unexpected base flow %+v", s.Flow)
	}
	if s.ActiveCycle.CycleNo != 1 || s.ActiveCycle.CurrentOR != 1 {
		t.Fatalf("unexpected base cycle %+v", s.ActiveCycle)
	}
}

func TestNormalizeLegacyNumORs(t *testing.T) {
	s := Normalize(map[string]any{"numORs": float64(3)})
	if s.Flow.NumORs != 3 {
		t.Fatalf("legacy top-level numORs not read: %d", s.Flow.NumORs)
	}

	// flow.numORs wins over the legacy key.
	s = Normalize(map[string]any{
		"numORs": float64(3),
		"flow":   map[string]any{"numORs": float64(4)},
	})
	if s.Flow.NumORs != 4 {
		t.Fatalf("flow.numORs must win, got %d", s.Flow.NumORs)
	}

	// Clamping and the non-integer fallback.
	if got := Normalize(map[string]any{"numORs": float64(9)}).Flow.NumORs; got != MaxORs {
		t.Fatalf("numORs = %d, want clamp to %d", got, MaxORs)
	}
	if got := Normalize(map[string]any{"numORs": float64(2.5)}).Flow.NumORs; got != DefaultNumORs {
		t.Fatalf("numORs = %d, want default for fractional input", got)
	}
}

func TestNormalizePlayers(t *testing.T) {
	s := Normalize(map[string]any{
		"players": []any{
			map[string]any{"name": "Ada", "color": "blue"},
			map[string]any{"displayName": "The Banker", "color": "chartreuse"},
			map[string]any{},
		},
	})
	if len(s.Players) != 3 {
		t.Fatalf("expected 3 players, got %d", len(s.Players))
	}
	if s.Players[0].DisplayName != "Ada" || s.Players[0].Color != "blue" {
		t.Fatalf("unexpected player %+v", s.Players[0])
	}
	if s.Players[1].DisplayName != "The Banker" {
		t.Fatalf("display name must win over name fallback")
	}
	if s.Players[1].Color == "chartreuse" {
		t.Fatalf("unknown color must fall back to the palette")
	}
	if s.Players[2].SeatLabel != "C" || s.Players[2].DisplayName != "Player C" {
		t.Fatalf("unexpected fallback player %+v", s.Players[2])
	}
	if s.Players[2].ID == "" {
		t.Fatalf("missing ids must get a deterministic fallback")
	}
}

func TestSeatLabelBeyondAlphabet(t *testing.T) {
	players := make([]any, 27)
	for i := range players {
		players[i] = map[string]any{}
	}
	s := Normalize(map[string]any{"players": players})
	if got := s.Players[25].SeatLabel; got != "Z" {
		t.Fatalf("seat 26 = %q, want Z", got)
	}
	if got := s.Players[26].SeatLabel; got != "P27" {
		t.Fatalf("seat 27 = %q, want P27", got)
	}
}

func TestNormalizeCompanies(t *testing.T) {
	s := Normalize(map[string]any{
		"flow": map[string]any{"numORs": float64(3)},
		"companies": []any{
			map[string]any{
				"name":         "B&O",
				"genericIndex": float64(5),
				"orRevenues": []any{
					map[string]any{"orNum": float64(2), "revenue": float64(80)},
					map[string]any{"orNum": float64(9), "revenue": float64(999)},
				},
				"stockHoldings": []any{
					map[string]any{"playerId": "p1", "percentage": float64(140)},
					map[string]any{"playerId": "", "percentage": float64(10)},
					map[string]any{"playerId": "p2", "percentage": float64(0)},
				},
			},
			map[string]any{},
		},
	})
	c := s.Companies[0]
	if c.GenericIndex != 5 {
		t.Fatalf("genericIndex = %d, want provided 5", c.GenericIndex)
	}
	if len(c.ORRevenues) != 3 {
		t.Fatalf("orRevenues length %d, want 3", len(c.ORRevenues))
	}
	if c.ORRevenues[1].ORNum != 2 || c.ORRevenues[1].Revenue != 80 {
		t.Fatalf("orNum matching failed: %+v", c.ORRevenues)
	}
	if c.ORRevenues[0].Revenue != 0 || c.ORRevenues[2].Revenue != 0 {
		t.Fatalf("missing rounds must pad with zero: %+v", c.ORRevenues)
	}
	if len(c.StockHoldings) != 1 || c.StockHoldings[0].Percentage != 100 {
		t.Fatalf("holdings must stay sparse and clamped: %+v", c.StockHoldings)
	}
	if c.IsUnestablished {
		t.Fatalf("company with holdings must infer established")
	}

	fallback := s.Companies[1]
	if fallback.GenericIndex != 2 || fallback.Name != "Co2" {
		t.Fatalf("unexpected fallback company %+v", fallback)
	}
	if !fallback.IsUnestablished {
		t.Fatalf("empty company must infer unestablished")
	}
}

func TestNormalizeExplicitEstablishmentWins(t *testing.T) {
	s := Normalize(map[string]any{
		"companies": []any{
			map[string]any{
				"isUnestablished": true,
				"stockHoldings": []any{
					map[string]any{"playerId": "p1", "percentage": float64(60)},
				},
			},
		},
	})
	if !s.Companies[0].IsUnestablished {
		t.Fatalf("an explicit flag must beat inference")
	}
}

func TestNormalizeRepairsActiveCycle(t *testing.T) {
	s := Normalize(map[string]any{
		"companies": []any{
			map[string]any{"id": "c1"},
			map[string]any{"id": "c2"},
			map[string]any{"id": "c3"},
		},
		"activeCycle": map[string]any{
			"companyOrder":      []any{"c2", "ghost", "c2"},
			"currentOR":         float64(9),
			"selectedCompanyId": "ghost",
			"completedCompanyIdsByOR": map[string]any{
				"1": []any{"c1", "ghost", "c1"},
				"7": []any{"c2"},
			},
		},
	})
	wantOrder := []string{"c2", "c1", "c3"}
	if !reflect.DeepEqual(s.ActiveCycle.CompanyOrder, wantOrder) {
		t.Fatalf("order = %v, want %v", s.ActiveCycle.CompanyOrder, wantOrder)
	}
	if s.ActiveCycle.CurrentOR != DefaultNumORs {
		t.Fatalf("currentOR = %d, want clamp to %d", s.ActiveCycle.CurrentOR, DefaultNumORs)
	}
	if s.ActiveCycle.SelectedCompanyID != "c2" {
		t.Fatalf("selected = %q, want first of repaired order", s.ActiveCycle.SelectedCompanyID)
	}
	if got := s.ActiveCycle.CompletedByOR[1]; len(got) != 1 || got[0] != "c1" {
		t.Fatalf("completed[1] = %v, want filtered deduped [c1]", got)
	}
	if _, ok := s.ActiveCycle.CompletedByOR[7]; ok {
		t.Fatalf("out-of-range OR keys must be dropped")
	}
}

func TestNormalizeStepFallback(t *testing.T) {
	if got := Normalize(map[string]any{"flow": map[string]any{"step": "lobby"}}).Flow.Step; got != StepSetup {
		t.Fatalf("step = %q, want setup fallback", got)
	}
	if got := Normalize(map[string]any{"flow": map[string]any{"step": "orRound"}}).Flow.Step; got != StepORRound {
		t.Fatalf("step = %q, want orRound", got)
	}
}

func TestNormalizeCycleHistory(t *testing.T) {
	s := Normalize(map[string]any{
		"cycleHistory": []any{
			map[string]any{
				"completedAt":     "2026-01-01T00:00:00Z",
				"playersSnapshot": []any{map[string]any{"name": "Ada"}},
				"companiesSnapshot": []any{
					map[string]any{"name": "B&O"},
				},
			},
			"not-a-record",
		},
	})
	if len(s.CycleHistory) != 1 {
		t.Fatalf("history length %d, want 1", len(s.CycleHistory))
	}
	rec := s.CycleHistory[0]
	if rec.CycleNo != 1 {
		t.Fatalf("cycleNo = %d, want index fallback 1", rec.CycleNo)
	}
	if rec.Players[0].DisplayName != "Ada" || rec.Companies[0].Name != "B&O" {
		t.Fatalf("snapshots not normalized: %+v", rec)
	}
	if rec.Players[0].ID == "" || rec.Companies[0].ID == "" {
		t.Fatalf("snapshot ids must get deterministic fallbacks")
	}
}

func TestNormalizeJSONGarbage(t *testing.T) {
	for _, raw := range []string{"", "{", "[1,2,3]", `"hello"`, "42"} {
		s := NormalizeJSON([]byte(raw))
		if s == nil || s.Flow.Step != StepSetup {
			t.Fatalf("garbage %q must normalize to base state", raw)
		}
	}
}
