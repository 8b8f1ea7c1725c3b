package game

// Action is a closed set of game-flow transitions. One struct per kind
// keeps the reducer's type switch exhaustive: an unhandled action is a
// compile-visible gap, not a silent default branch.
type Action interface {
	isAction()
}

// StockTarget selects which bucket an SR stock edit applies to.
type StockTarget string

const (
	TargetPlayer   StockTarget = "player"
	TargetTreasury StockTarget = "treasury"
	TargetBank     StockTarget = "bank"
)

// AddPlayers bulk-adds players by display name. Seat labels follow
// creation order.
type AddPlayers struct {
	Names []string
}

// UpdatePlayer edits display fields of an existing player. Empty fields
// are left untouched.
type UpdatePlayer struct {
	PlayerID string
	Name     string
	Color    string
	Symbol   string
}

// RemovePlayer deletes a player and cascades: the player's stock holdings
// are removed from every company.
type RemovePlayer struct {
	PlayerID string
}

// AddCompany creates a company with the next generic index.
type AddCompany struct {
	Name string
}

// UpdateCompany edits display fields of an existing company.
type UpdateCompany struct {
	CompanyID string
	Name      string
	Abbr      string
	Color     string
	Symbol    string
}

// RemoveCompany deletes a company. Generic indexes of the remaining
// companies are never reassigned.
type RemoveCompany struct {
	CompanyID string
}

// SetNumORs changes the operating-round count. Rejected once setup is
// locked.
type SetNumORs struct {
	NumORs int
}

// SetIPOMode toggles whether IPO shares exist. Rejected once setup is
// locked.
type SetIPOMode struct {
	HasIPOShares bool
}

// LockSetup finalizes setup and moves the flow into the first stock round.
// Unlocking is supported for tests but is not part of the normal flow.
type LockSetup struct {
	Locked bool
}

// SetStock writes one stock input. Value is raw user input; non-integer
// text counts as 0 and results are clamped to [0, 100].
type SetStock struct {
	CompanyID string
	Target    StockTarget
	PlayerID  string
	Value     string
}

// RunValidation recomputes the advisory stock-validation map on demand.
type RunValidation struct{}

// MoveCompanyUp swaps an established company with its predecessor in the
// operating order.
type MoveCompanyUp struct {
	CompanyID string
}

// MoveCompanyDown swaps an established company with its successor.
type MoveCompanyDown struct {
	CompanyID string
}

// RebalanceRemaining replaces the relative order of the not-yet-completed
// established companies. Draft must be exactly that set or the action is a
// no-op.
type RebalanceRemaining struct {
	Draft []string
}

// SelectCompany changes the highlighted company for the current round.
type SelectCompany struct {
	CompanyID string
}

// MarkCompanyDone records an established company as finished for the
// current operating round.
type MarkCompanyDone struct {
	CompanyID string
}

// NextOR advances to the next operating round, up to numORs.
type NextOR struct{}

// SetRevenue records one operating round's revenue for a company. The
// value is stored as given.
type SetRevenue struct {
	CompanyID string
	ORNum     int
	Revenue   int
}

// AddTrain appends a train with no stops to a company.
type AddTrain struct {
	CompanyID string
	TrainID   string
}

// UpdateTrainStops replaces a train's ordered stop list.
type UpdateTrainStops struct {
	CompanyID string
	TrainID   string
	Stops     []int
}

// ClearTrain empties a train's stops without deleting it.
type ClearTrain struct {
	CompanyID string
	TrainID   string
}

// DeleteTrain removes a train entirely.
type DeleteTrain struct {
	CompanyID string
	TrainID   string
}

// CloseCycle snapshots players and companies into the cycle history and
// starts the next cycle's stock round.
type CloseCycle struct {
	CompletedAt string
}

// GoToStep navigates between phases. Summary is reachable only this way.
type GoToStep struct {
	Step Step
}

// SelectSummaryCycle picks which closed cycle the summary shows.
type SelectSummaryCycle struct {
	CycleNo int
}

// Load replaces the whole state with the normalized payload. This is the
// only transition driven by storage or a remote peer.
type Load struct {
	Payload any
}

// Reset replaces the state with a fresh base state.
type Reset struct{}

func (AddPlayers) isAction()         {}
func (UpdatePlayer) isAction()       {}
func (RemovePlayer) isAction()       {}
func (AddCompany) isAction()         {}
func (UpdateCompany) isAction()      {}
func (RemoveCompany) isAction()      {}
func (SetNumORs) isAction()          {}
func (SetIPOMode) isAction()         {}
func (LockSetup) isAction()          {}
func (SetStock) isAction()           {}
func (RunValidation) isAction()      {}
func (MoveCompanyUp) isAction()      {}
func (MoveCompanyDown) isAction()    {}
func (RebalanceRemaining) isAction() {}
func (SelectCompany) isAction()      {}
func (MarkCompanyDone) isAction()    {}
func (NextOR) isAction()             {}
func (SetRevenue) isAction()         {}
func (AddTrain) isAction()           {}
func (UpdateTrainStops) isAction()   {}
func (ClearTrain) isAction()         {}
func (DeleteTrain) isAction()        {}
func (CloseCycle) isAction()         {}
func (GoToStep) isAction()           {}
func (SelectSummaryCycle) isAction() {}
func (Load) isAction()               {}
func (Reset) isAction()              {}
