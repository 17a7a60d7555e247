package models

// Transaction is a single immutable ledger entry. A negative amount is a
// debit, a positive amount a credit; a transfer is always written as one of
// each. Balances are never stored, they are summed from these rows.
type Transaction struct {
	ID          int     `json:"id" db:"id"`
	OwnerUserID int     `json:"owner_user_id" db:"owner_user_id"`
	Amount      float64 `json:"amount" db:"amount"`
	Description string  `json:"description" db:"description"`
}
