package core

import (
	"context"

	"github.com/Evgen-Mutagen/moneytransfer/internal/model"
	"github.com/shopspring/decimal"
)

type (
	AuthService interface {
		Register(ctx context.Context, login, password string) (*model.User, model.TokenPair, error)
		SignIn(ctx context.Context, login, password string) (*model.User, model.TokenPair, error)
		RefreshAccess(ctx context.Context, refreshToken string) (string, error)
		RotateRefresh(ctx context.Context, refreshToken string) (model.TokenPair, error)
	}

	LedgerService interface {
		GetBalance(ctx context.Context, username string) (decimal.Decimal, error)
		Transfer(ctx context.Context, sender, receiver string, amount decimal.Decimal) (decimal.Decimal, error)
	}
)
