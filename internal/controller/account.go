package controller

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/metrics"
	"github.com/Evgen-Mutagen/moneytransfer/internal/middlewareinternal"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type transferRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// balanceResponse renders the balance as a bare JSON number with two
// fractional digits, e.g. {"balance":400.00}.
type balanceResponse struct {
	Balance json.RawMessage `json:"balance"`
}

func newBalanceResponse(balance decimal.Decimal) balanceResponse {
	return balanceResponse{Balance: json.RawMessage(balance.StringFixed(2))}
}

type AccountController struct {
	ledgerService core.LedgerService
	logger        *zap.Logger
	actions       *zap.Logger
}

func NewAccountController(ledgerService core.LedgerService, logger, actions *zap.Logger) *AccountController {
	return &AccountController{
		ledgerService: ledgerService,
		logger:        orNop(logger),
		actions:       orNop(actions),
	}
}

func (c *AccountController) GetMoney(ctx context.Context, req *wire.Request) *wire.Response {
	username, ok := middlewareinternal.GetSubjectFromContext(ctx)
	if !ok {
		c.logger.Error("Subject not found in context")
		return wire.Message(http.StatusUnauthorized, "Authorization header not found")
	}

	balance, err := c.ledgerService.GetBalance(ctx, username)
	if err != nil {
		return errorResponse(c.logger, req, err)
	}

	c.actions.Info("User requested balance",
		zap.String("login", username),
		zap.String("balance", balance.StringFixed(2)))
	return wire.JSON(http.StatusOK, newBalanceResponse(balance))
}

func (c *AccountController) SendMoney(ctx context.Context, req *wire.Request) *wire.Response {
	username, ok := middlewareinternal.GetSubjectFromContext(ctx)
	if !ok {
		c.logger.Error("Subject not found in context")
		return wire.Message(http.StatusUnauthorized, "Authorization header not found")
	}

	var request transferRequest
	if resp := decodeBody(c.logger, req, &request); resp != nil {
		return resp
	}

	balance, err := c.ledgerService.Transfer(ctx, username, request.To, request.Amount)
	if err != nil {
		metrics.RecordTransfer(core.KindOf(err).String())
		c.logger.Warn("Transfer failed",
			zap.String("sender", username),
			zap.String("receiver", request.To),
			zap.String("amount", request.Amount.String()),
			zap.Error(err))
		return errorResponse(c.logger, req, err)
	}

	metrics.RecordTransfer("ok")
	c.actions.Info("User has sent money",
		zap.String("login", username),
		zap.String("receiver", request.To),
		zap.String("amount", request.Amount.StringFixed(2)))
	return wire.JSON(http.StatusOK, newBalanceResponse(balance))
}
