package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
)

const defaultTransferAttempts = 5

// ErrSameAccount rejects a transfer whose debit and credit hit one row.
var ErrSameAccount = core.E(core.KindValidation, "Cannot transfer to yourself")

type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*model.Account, error)
	// Transfer moves amount minor units between two accounts, records the
	// transaction and returns the sender's new balance.
	Transfer(ctx context.Context, senderAccountID, receiverAccountID, amount int64) (int64, error)
}

type accountRepository struct {
	db          *Database
	maxAttempts int
	backoff     time.Duration
}

func NewAccountRepository(db *Database) AccountRepository {
	return &accountRepository{
		db:          db,
		maxAttempts: defaultTransferAttempts,
		backoff:     10 * time.Millisecond,
	}
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	account := &model.Account{}
	query := `SELECT a.id, a.user_id, a.balance
              FROM accounts a
              INNER JOIN users u ON a.user_id = u.id
              WHERE u.username = $1
              ORDER BY a.id
              LIMIT 1`
	err := r.db.db.GetContext(ctx, account, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get account", err)
	}
	return account, nil
}

func (r *accountRepository) Transfer(ctx context.Context, senderAccountID, receiverAccountID, amount int64) (int64, error) {
	if senderAccountID == receiverAccountID {
		return 0, ErrSameAccount
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		balance, err := r.transferOnce(ctx, senderAccountID, receiverAccountID, amount)
		if err == nil {
			return balance, nil
		}
		if !isRetryable(err) {
			return 0, persistence("transfer", err)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return 0, persistence("transfer", ctx.Err())
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return 0, persistence(fmt.Sprintf("transfer after %d attempts", r.maxAttempts), lastErr)
}

// transferOnce runs the debit, credit and ledger insert as a single
// serializable unit. The debit is guarded so a concurrent drain can never
// push the sender below zero.
func (r *accountRepository) transferOnce(ctx context.Context, senderAccountID, receiverAccountID, amount int64) (int64, error) {
	tx, err := r.db.BeginTx(ctx, sql.LevelSerializable)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var balance int64
	query := `UPDATE accounts SET balance = balance - $1 WHERE id = $2 AND balance >= $1 RETURNING balance`
	if err := tx.QueryRowxContext(ctx, query, amount, senderAccountID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("debit account %d: %w", senderAccountID, ErrNoRowsAffected)
		}
		return 0, err
	}

	query = `UPDATE accounts SET balance = balance + $1 WHERE id = $2`
	if err := execOne(ctx, tx, query, amount, receiverAccountID); err != nil {
		return 0, fmt.Errorf("credit account %d: %w", receiverAccountID, err)
	}

	query = `INSERT INTO transactions (sender_account_id, receiver_account_id, amount) VALUES ($1, $2, $3)`
	if err := execOne(ctx, tx, query, senderAccountID, receiverAccountID, amount); err != nil {
		return 0, fmt.Errorf("record transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func execOne(ctx context.Context, ex execer, query string, args ...any) error {
	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
