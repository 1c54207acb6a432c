package sale

import "math/big"

// SetReferrer records the referrer for a participant. The assignment is
// allowed once per participant, independent of purchasing, and self-referral
// is rejected.
func (e *Engine) SetReferrer(addr [20]byte, referrer [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if addr == referrer {
		return ErrSelfReferral
	}
	participant, err := e.loadParticipant(addr)
	if err != nil {
		return err
	}
	if participant.ReferrerSet {
		return ErrReferrerAlreadySet
	}
	participant.Referrer = referrer
	participant.ReferrerSet = true
	return e.state.ParticipantPut(participant)
}

// ClaimReferralBonus transfers the caller's full accrued referral bonus to
// their token balance and resets the accrual to zero.
func (e *Engine) ClaimReferralBonus(addr [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	participant, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	if participant.BonusAccrued.Sign() == 0 {
		return nil, ErrNothingAccrued
	}
	bonus := new(big.Int).Set(participant.BonusAccrued)
	if err := e.transferToken(addr, bonus); err != nil {
		return nil, err
	}
	participant.BonusAccrued = big.NewInt(0)
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	e.emit(ReferralBonusClaimedEvent(hexAddr(addr), bonus.String()))
	return bonus, nil
}
