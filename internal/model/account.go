package model

import "time"

// InitialBalance is credited to every account at creation, in minor units.
const InitialBalance int64 = 50000

type Account struct {
	ID      int64 `db:"id"`
	UserID  int64 `db:"user_id"`
	Balance int64 `db:"balance"`
}

type Transaction struct {
	ID                int64     `db:"id"`
	SenderAccountID   int64     `db:"sender_account_id"`
	ReceiverAccountID int64     `db:"receiver_account_id"`
	Amount            int64     `db:"amount"`
	CreatedAt         time.Time `db:"created_at"`
}
