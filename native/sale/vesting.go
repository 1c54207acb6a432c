package sale

import "math/big"

// ReleaseVestedTokens transfers the releasable part of the caller's vesting
// schedule to their token balance. Before the cliff it rejects; afterwards it
// releases the vested fraction minus everything already released. Calling it
// again before more time has passed releases zero and is not an error.
func (e *Engine) ReleaseVestedTokens(addr [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.params.ReleasePolicy != PolicyVesting {
		return nil, ErrWrongPolicy
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	participant, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	schedule := participant.Vesting
	if schedule == nil || schedule.TotalAmount == nil || schedule.TotalAmount.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if now < schedule.StartTime+schedule.Cliff {
		return nil, ErrCliffNotOver
	}

	releasable := vestedAmount(schedule, now)
	releasable.Sub(releasable, schedule.ReleasedAmount)
	if releasable.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if err := e.transferToken(addr, releasable); err != nil {
		return nil, err
	}
	schedule.ReleasedAmount = new(big.Int).Add(schedule.ReleasedAmount, releasable)
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	e.emit(TokensReleasedEvent(hexAddr(addr), releasable.String(), schedule.ReleasedAmount.String()))
	return releasable, nil
}

// vestedAmount computes total * min(elapsed, duration) / duration. Elapsed is
// measured from the schedule start, which includes the cliff period.
func vestedAmount(schedule *VestingSchedule, now int64) *big.Int {
	if schedule.ReleasedAmount == nil {
		schedule.ReleasedAmount = big.NewInt(0)
	}
	elapsed := now - schedule.StartTime
	if elapsed >= schedule.Duration || schedule.Duration <= 0 {
		return new(big.Int).Set(schedule.TotalAmount)
	}
	vested := new(big.Int).Mul(schedule.TotalAmount, big.NewInt(elapsed))
	return vested.Div(vested, big.NewInt(schedule.Duration))
}

// UnlockTokens releases the caller's full locked balance once the flat lockup
// period has elapsed. The balance is released exactly once; a later call
// rejects with ErrNothingLocked and never re-releases.
func (e *Engine) UnlockTokens(addr [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.params.ReleasePolicy != PolicyVesting {
		return nil, ErrWrongPolicy
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	participant, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	if participant.LockedTokens.Sign() == 0 {
		return nil, ErrNothingLocked
	}
	if now < participant.LockStart+e.params.LockupDuration {
		return nil, ErrLockupNotOver
	}
	unlocked := new(big.Int).Set(participant.LockedTokens)
	if err := e.transferToken(addr, unlocked); err != nil {
		return nil, err
	}
	participant.LockedTokens = big.NewInt(0)
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	e.emit(TokensUnlockedEvent(hexAddr(addr), unlocked.String()))
	return unlocked, nil
}
