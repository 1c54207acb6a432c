package types

import "math/big"

// Account holds the balances tracked for a single address. The payment
// balance is denominated in the sale's payment currency and the token balance
// in the smallest unit of the sale token (wei-style integers).
type Account struct {
	Nonce          uint64   `json:"nonce"`
	BalancePayment *big.Int `json:"balancePayment"`
	BalanceToken   *big.Int `json:"balanceToken"`
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.BalancePayment != nil {
		clone.BalancePayment = new(big.Int).Set(a.BalancePayment)
	}
	if a.BalanceToken != nil {
		clone.BalanceToken = new(big.Int).Set(a.BalanceToken)
	}
	return &clone
}
