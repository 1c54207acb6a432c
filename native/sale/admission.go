package sale

import "math/big"

// admit applies the admission checks in their fixed priority order. It never
// mutates state; lastPurchaseTime is only advanced once the purchase commits.
func (e *Engine) admit(counters *Counters, participant *Participant, now int64, amount *big.Int) error {
	if counters.Finalized || counters.Paused || !counters.Active {
		return ErrSaleInactive
	}
	if now < e.params.StartTime || (e.params.EndTime != 0 && now >= e.params.EndTime) {
		return ErrSaleInactive
	}
	if !participant.Whitelisted {
		return ErrNotWhitelisted
	}
	if e.params.MinInvestment.Sign() > 0 && amount.Cmp(e.params.MinInvestment) < 0 {
		return ErrOutOfRange
	}
	if e.params.MaxInvestment.Sign() > 0 && amount.Cmp(e.params.MaxInvestment) > 0 {
		return ErrOutOfRange
	}
	if counters.CooldownEnabled && participant.LastPurchaseTime > 0 &&
		now-participant.LastPurchaseTime < e.params.CooldownSeconds {
		return ErrCooldownActive
	}
	return nil
}
