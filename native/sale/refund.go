package sale

import "math/big"

// ClaimRefund returns a participant's entire payment once the sale window has
// closed without the soft cap being reached. Each participant can refund at
// most once; any replay rejects with ErrAlreadyRefunded.
func (e *Engine) ClaimRefund(addr [20]byte) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if e.params.EndTime == 0 || now <= e.params.EndTime {
		return nil, ErrRefundNotAvailable
	}
	counters, err := e.loadCounters()
	if err != nil {
		return nil, err
	}
	if counters.TotalRaised.Cmp(e.params.SoftCap) >= 0 {
		return nil, ErrSoftCapReached
	}
	participant, err := e.loadParticipant(addr)
	if err != nil {
		return nil, err
	}
	if participant.Refunded {
		return nil, ErrAlreadyRefunded
	}
	if participant.TotalInvested.Sign() == 0 {
		return nil, ErrNothingInvested
	}

	refund := new(big.Int).Set(participant.TotalInvested)
	vault, err := e.state.GetAccount(e.params.FundsVault[:])
	if err != nil {
		return nil, err
	}
	vault = ensureAccount(vault)
	if vault.BalancePayment.Cmp(refund) < 0 {
		return nil, ErrVaultUnderfunded
	}
	recipient, err := e.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	recipient = ensureAccount(recipient)
	vault.BalancePayment = new(big.Int).Sub(vault.BalancePayment, refund)
	recipient.BalancePayment = new(big.Int).Add(recipient.BalancePayment, refund)
	if err := e.state.PutAccount(e.params.FundsVault[:], vault); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(addr[:], recipient); err != nil {
		return nil, err
	}
	participant.Refunded = true
	if err := e.state.ParticipantPut(participant); err != nil {
		return nil, err
	}
	e.emit(RefundClaimedEvent(hexAddr(addr), refund.String()))
	return refund, nil
}
