package model

// Account is a tracked wallet. Created the first time the address shows up
// as a party to a tracked balance change; immutable after creation.
type Account struct {
	ID      string `db:"id"`
	Address string `db:"address"`
}

// NewAccount builds an Account from a raw address.
func NewAccount(address string) *Account {
	addr := NormalizeAddress(address)
	return &Account{ID: addr, Address: addr}
}
