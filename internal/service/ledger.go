package service

import (
	"context"
	"math"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNonPositiveAmount = core.E(core.KindValidation, "Amount should be positive")
	ErrAmountTooLarge    = core.E(core.KindValidation, "Amount is too large")
	ErrAmountOutOfRange  = core.E(core.KindValidation, "Amount is out of range")
	ErrEmptyReceiver     = core.E(core.KindValidation, "Receiver should not be empty")
	ErrSelfTransfer      = core.E(core.KindValidation, "Cannot transfer to yourself")

	maxMinorUnits = decimal.NewFromInt(math.MaxInt64)
)

// Bounds on a decoded amount checked before any rescaling. Rescaling builds
// a 10^|exponent| big.Int, so the exponent and coefficient must stay small.
const (
	maxAmountExponent    = 18
	maxAmountCoefficient = 127 // bits
)

type ledgerService struct {
	accountRepo repository.AccountRepository
	logger      *zap.Logger
}

func NewLedgerService(accountRepo repository.AccountRepository, logger *zap.Logger) core.LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ledgerService{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// ToMinorUnits scales a decimal amount to cents, dropping anything below
// one cent.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsZero() {
		return 0, nil
	}
	if exp := amount.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return 0, ErrAmountOutOfRange
	}
	if amount.Coefficient().BitLen() > maxAmountCoefficient {
		return 0, ErrAmountOutOfRange
	}

	scaled := amount.Shift(2).Truncate(0)
	if scaled.Abs().GreaterThan(maxMinorUnits) {
		return 0, ErrAmountTooLarge
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits renders cents as a two-digit decimal for display.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func (s *ledgerService) GetBalance(ctx context.Context, username string) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}
	if account == nil {
		return decimal.Zero, userNotFound(username)
	}

	s.logger.Debug("Balance requested",
		zap.String("login", username),
		zap.Int64("balance", account.Balance))
	return FromMinorUnits(account.Balance), nil
}

func (s *ledgerService) Transfer(ctx context.Context, sender, receiver string, amount decimal.Decimal) (decimal.Decimal, error) {
	senderAccount, err := s.accountRepo.GetByUsername(ctx, sender)
	if err != nil {
		return decimal.Zero, err
	}
	if senderAccount == nil {
		return decimal.Zero, userNotFound(sender)
	}

	minor, err := ToMinorUnits(amount)
	if err != nil {
		return decimal.Zero, err
	}
	if minor <= 0 {
		return decimal.Zero, ErrNonPositiveAmount
	}

	if senderAccount.Balance < minor {
		return decimal.Zero, core.E(core.KindInsufficientBalance, "User %s has insufficient balance", sender)
	}

	if receiver == "" {
		return decimal.Zero, ErrEmptyReceiver
	}
	receiverAccount, err := s.accountRepo.GetByUsername(ctx, receiver)
	if err != nil {
		return decimal.Zero, err
	}
	if receiverAccount == nil {
		return decimal.Zero, userNotFound(receiver)
	}
	if receiverAccount.ID == senderAccount.ID {
		return decimal.Zero, ErrSelfTransfer
	}

	balance, err := s.accountRepo.Transfer(ctx, senderAccount.ID, receiverAccount.ID, minor)
	if err != nil {
		return decimal.Zero, err
	}

	s.logger.Debug("Transfer committed",
		zap.String("sender", sender),
		zap.String("receiver", receiver),
		zap.Int64("amount", minor),
		zap.Int64("sender_balance", balance))
	return FromMinorUnits(balance), nil
}

func userNotFound(username string) error {
	return core.E(core.KindUserNotFound, "User %s not found or does not have an account", username)
}
