package game

import "fmt"

// EvaluateStock checks one company's stock allocation. Player holdings and
// the treasury are always direct inputs. Without IPO shares the bank pool
// is derived as the remainder; with IPO shares the bank pool is a direct
// input and the IPO percentage is the remainder. The result is advisory:
// the game proceeds regardless.
func EvaluateStock(c Company, hasIPOShares bool) Validation {
	v := Validation{
		PlayerTotal: c.PlayerTotal(),
		Treasury:    c.TreasuryStockPercentage,
	}
	if hasIPOShares {
		v.Bank = c.BankPoolPercentage
		v.IPO = 100 - v.PlayerTotal - v.Treasury - v.Bank
		switch {
		case v.PlayerTotal+v.Treasury+v.Bank > 100:
			v.Invalid = true
			v.Message = fmt.Sprintf("players + treasury + bank pool exceed 100%% (%d%%)", v.PlayerTotal+v.Treasury+v.Bank)
		case v.IPO < 0:
			v.Invalid = true
			v.Message = fmt.Sprintf("IPO remainder is negative (%d%%)", v.IPO)
		default:
			v.Message = "OK"
		}
		return v
	}
	v.Bank = 100 - v.PlayerTotal - v.Treasury
	switch {
	case v.PlayerTotal+v.Treasury > 100:
		v.Invalid = true
		v.Message = fmt.Sprintf("players + treasury exceed 100%% (%d%%)", v.PlayerTotal+v.Treasury)
	case v.Bank < 0:
		v.Invalid = true
		v.Message = fmt.Sprintf("bank pool remainder is negative (%d%%)", v.Bank)
	default:
		v.Message = "OK"
	}
	return v
}

// BuildValidationMap evaluates every company, keyed by company id.
func BuildValidationMap(companies []Company, hasIPOShares bool) map[string]Validation {
	out := make(map[string]Validation, len(companies))
	for _, c := range companies {
		out[c.ID] = EvaluateStock(c, hasIPOShares)
	}
	return out
}
