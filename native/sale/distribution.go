package sale

import "math/big"

// ClaimDistribution transfers the tranche at the supplied index to the
// caller's token balance once its release time has passed. Each tranche is
// claimable exactly once.
func (e *Engine) ClaimDistribution(addr [20]byte, index int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.params.ReleasePolicy != PolicyStaged {
		return nil, ErrWrongPolicy
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	participant, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(participant.Distributions) {
		return nil, ErrDistributionNotFound
	}
	tranche := &participant.Distributions[index]
	if tranche.Claimed {
		return nil, ErrAlreadyClaimed
	}
	if now < tranche.ReleaseTime {
		return nil, ErrDistributionNotReleasable
	}
	amount := cloneBigInt(tranche.Amount)
	if err := e.transferToken(addr, amount); err != nil {
		return nil, err
	}
	tranche.Claimed = true
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	e.emit(DistributionClaimedEvent(hexAddr(addr), index, amount.String()))
	return amount, nil
}
