package model

import "math/big"

// IdleBalance is a plain token balance not deposited into any yield
// protocol, keyed by (account, token).
type IdleBalance struct {
	ID      string   `db:"id"`
	Address string   `db:"address"`
	Token   string   `db:"token"`
	Balance *big.Int `db:"balance"`
}

// IdleBalanceID derives the deterministic identity of an idle balance record.
func IdleBalanceID(address, token string) string {
	return NormalizeAddress(address) + NormalizeAddress(token)
}

// EarnBalance is an account's claim, in pool shares, on a yield-bearing
// pool, keyed by (account, pool). LastIndex carries the accrual index last
// observed for the account; it is meaningful for lending pools only and
// stays zero elsewhere.
type EarnBalance struct {
	ID           string   `db:"id"`
	Address      string   `db:"address"`
	Pool         string   `db:"pool"`
	Protocol     Protocol `db:"protocol"`
	ShareBalance *big.Int `db:"share_balance"`
	LastIndex    *big.Int `db:"last_index"`
}

// EarnBalanceID derives the deterministic identity of an earn balance record.
func EarnBalanceID(address, pool string) string {
	return NormalizeAddress(address) + NormalizeAddress(pool)
}

// Prior is the pre-loaded state of a balance record: either absent or a
// concrete amount. Absent priors are treated as zero, never as errors.
type Prior struct {
	Amount *big.Int
	Exists bool
}

// PriorOf wraps a loaded record amount. A nil amount means the record was
// absent.
func PriorOf(amount *big.Int) Prior {
	if amount == nil {
		return Prior{}
	}
	return Prior{Amount: amount, Exists: true}
}

// OrZero returns the prior amount, substituting zero when the record was
// absent. The result never aliases the prior's value.
func (p Prior) OrZero() *big.Int {
	if !p.Exists || p.Amount == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(p.Amount)
}

// ApplyDelta computes prior + delta as a pure signed addition. Applying a
// set of deltas converges to the same result in any permutation, which is
// what makes same-block replay order irrelevant. The result can go
// negative when a burn or withdraw is observed before its matching mint.
func (p Prior) ApplyDelta(delta *big.Int) *big.Int {
	out := p.OrZero()
	return out.Add(out, delta)
}

// Neg returns -amount without mutating the argument.
func Neg(amount *big.Int) *big.Int {
	return new(big.Int).Neg(amount)
}
