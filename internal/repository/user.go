package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
)

type UserRepository interface {
	// CreateWithAccount inserts the user and its account in one transaction
	// and fills user.ID and user.CreatedAt.
	CreateWithAccount(ctx context.Context, user *model.User, initialBalance int64) (*model.Account, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
}

type userRepository struct {
	db *Database
}

func NewUserRepository(db *Database) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateWithAccount(ctx context.Context, user *model.User, initialBalance int64) (*model.Account, error) {
	tx, err := r.db.BeginTx(ctx, sql.LevelDefault)
	if err != nil {
		return nil, persistence("begin user creation", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id, created_at`
	err = tx.QueryRowxContext(ctx, query, user.Username, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, core.E(core.KindUsernameAlreadyExists, "User with username %s already exists", user.Username)
		}
		return nil, persistence("insert user", err)
	}

	// One account per user for now; the schema allows more.
	account := &model.Account{UserID: user.ID, Balance: initialBalance}
	query = `INSERT INTO accounts (user_id, balance) VALUES ($1, $2) RETURNING id`
	if err := tx.QueryRowxContext(ctx, query, account.UserID, account.Balance).Scan(&account.ID); err != nil {
		return nil, persistence("insert account", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, core.E(core.KindUsernameAlreadyExists, "User with username %s already exists", user.Username)
		}
		return nil, persistence("commit user creation", err)
	}
	return account, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT id, username, password_hash, created_at FROM users WHERE username = $1`
	err := r.db.db.GetContext(ctx, user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, persistence("get user", err)
	}
	return user, nil
}
