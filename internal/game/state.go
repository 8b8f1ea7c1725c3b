package game

// Step is the current phase of the game flow.
type Step string

const (
	StepSetup      Step = "setup"
	StepStockRound Step = "stockRound"
	StepORRound    Step = "orRound"
	StepSummary    Step = "summary"
)

const (
	MinORs        = 1
	MaxORs        = 5
	DefaultNumORs = 2
)

type Player struct {
	ID          string `json:"id"`
	SeatLabel   string `json:"seat_label"`
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Symbol      string `json:"symbol"`
}

type Train struct {
	ID    string `json:"id"`
	Stops []int  `json:"stops"`
}

// ORRevenue holds one operating round's revenue for a company. Entries are
// matched by ORNum, never by slice position.
type ORRevenue struct {
	ORNum   int `json:"or_num"`
	Revenue int `json:"revenue"`
}

// StockHolding is a sparse entry: absence of a player means 0%,
// and a holding set to 0 is removed rather than stored.
type StockHolding struct {
	PlayerID   string `json:"player_id"`
	Percentage int    `json:"percentage"`
}

type Company struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	DisplayName              string         `json:"display_name"`
	GenericIndex             int            `json:"generic_index"`
	Color                    string         `json:"color"`
	Symbol                   string         `json:"symbol"`
	Abbr                     string         `json:"abbr"`
	Trains                   []Train        `json:"trains"`
	StockHoldings            []StockHolding `json:"stock_holdings"`
	IsUnestablished          bool           `json:"is_unestablished"`
	TreasuryStockPercentage  int            `json:"treasury_stock_percentage"`
	BankPoolPercentage       int            `json:"bank_pool_percentage"`
	IPOPercentage            int            `json:"ipo_percentage"`
	ORRevenues               []ORRevenue    `json:"or_revenues"`
}

// HoldingFor returns the player's percentage, 0 when absent.
func (c *Company) HoldingFor(playerID string) int {
	for _, h := range c.StockHoldings {
		if h.PlayerID == playerID {
			return h.Percentage
		}
	}
	return 0
}

// PlayerTotal sums all player holding percentages.
func (c *Company) PlayerTotal() int {
	total := 0
	for _, h := range c.StockHoldings {
		total += h.Percentage
	}
	return total
}

type Flow struct {
	Step         Step `json:"step"`
	SetupLocked  bool `json:"setup_locked"`
	HasIPOShares bool `json:"has_ipo_shares"`
	NumORs       int  `json:"num_ors"`
}

type ActiveCycle struct {
	CycleNo           int              `json:"cycle_no"`
	CompanyOrder      []string         `json:"company_order"`
	CurrentOR         int              `json:"current_or"`
	CompletedByOR     map[int][]string `json:"completed_company_ids_by_or"`
	SelectedCompanyID string           `json:"selected_company_id"`
}

// CycleRecord is an immutable snapshot taken when a cycle closes.
type CycleRecord struct {
	CycleNo     int       `json:"cycle_no"`
	CompletedAt string    `json:"completed_at"`
	Players     []Player  `json:"players_snapshot"`
	Companies   []Company `json:"companies_snapshot"`
}

// Validation is the advisory result of a stock-allocation check.
type Validation struct {
	Invalid     bool   `json:"invalid"`
	Message     string `json:"message"`
	PlayerTotal int    `json:"player_total"`
	Treasury    int    `json:"treasury"`
	Bank        int    `json:"bank"`
	IPO         int    `json:"ipo"`
}

// State is the whole game tree. Every transition produces a new tree;
// no entity is mutated in place once it is part of a State.
type State struct {
	Players              []Player              `json:"players"`
	Companies            []Company             `json:"companies"`
	Flow                 Flow                  `json:"flow"`
	ActiveCycle          ActiveCycle           `json:"active_cycle"`
	CycleHistory         []CycleRecord         `json:"cycle_history"`
	SummarySelectedCycle int                   `json:"summary_selected_cycle_no"`
	SRValidation         map[string]Validation `json:"sr_validation"`
}

// NewState builds the fresh base state for a brand-new game.
func NewState() *State {
	return &State{
		Players:   []Player{},
		Companies: []Company{},
		Flow: Flow{
			Step:   StepSetup,
			NumORs: DefaultNumORs,
		},
		ActiveCycle: ActiveCycle{
			CycleNo:       1,
			CompanyOrder:  []string{},
			CurrentOR:     1,
			CompletedByOR: freshCompletedMap(DefaultNumORs),
		},
		CycleHistory:         []CycleRecord{},
		SummarySelectedCycle: 0,
	}
}

func (p Player) Clone() Player {
	return p
}

func (t Train) Clone() Train {
	out := t
	out.Stops = append([]int(nil), t.Stops...)
	return out
}

func (c Company) Clone() Company {
	out := c
	out.Trains = make([]Train, len(c.Trains))
	for i, t := range c.Trains {
		out.Trains[i] = t.Clone()
	}
	out.StockHoldings = append([]StockHolding(nil), c.StockHoldings...)
	out.ORRevenues = append([]ORRevenue(nil), c.ORRevenues...)
	return out
}

func clonePlayers(in []Player) []Player {
	out := make([]Player, len(in))
	copy(out, in)
	return out
}

func cloneCompanies(in []Company) []Company {
	out := make([]Company, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

func cloneCompletedByOR(in map[int][]string) map[int][]string {
	out := make(map[int][]string, len(in))
	for or, ids := range in {
		out[or] = append([]string(nil), ids...)
	}
	return out
}

func (a ActiveCycle) clone() ActiveCycle {
	out := a
	out.CompanyOrder = append([]string(nil), a.CompanyOrder...)
	out.CompletedByOR = cloneCompletedByOR(a.CompletedByOR)
	return out
}

// shallow returns a copy of the state that still shares all entity slices
// with the receiver. Transitions start from this and replace only the
// branches they touch, so unchanged branches stay reference-equal.
func (s *State) shallow() *State {
	out := *s
	return &out
}

func (s *State) companyIndex(id string) int {
	for i := range s.Companies {
		if s.Companies[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *State) playerIndex(id string) int {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// withCompany returns a new state whose company list has the company at
// index i replaced by mutate's result. Other companies keep their slices.
func (s *State) withCompany(i int, mutate func(Company) Company) *State {
	next := s.shallow()
	companies := make([]Company, len(s.Companies))
	copy(companies, s.Companies)
	companies[i] = mutate(s.Companies[i].Clone())
	next.Companies = companies
	return next
}
