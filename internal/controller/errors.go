package controller

import (
	"bytes"
	"net/http"

	"github.com/Evgen-Mutagen/moneytransfer/internal/core"
	"github.com/Evgen-Mutagen/moneytransfer/internal/wire"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

var (
	errBodyAbsent    = core.E(core.KindValidation, "Request body is absent")
	errMalformedBody = core.E(core.KindValidation, "Malformed request body")
)

// errorResponse is the single place where error kinds become status codes.
// Only client errors echo their message; everything else is a bare 500.
func errorResponse(logger *zap.Logger, req *wire.Request, err error) *wire.Response {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch core.KindOf(err) {
	case core.KindValidation,
		core.KindUserNotFound,
		core.KindUsernameAlreadyExists,
		core.KindInsufficientBalance:
		status, message = http.StatusBadRequest, core.MessageOf(err)
	case core.KindAuthentication, core.KindInvalidToken:
		status, message = http.StatusUnauthorized, core.MessageOf(err)
	case core.KindParse:
		status, message = http.StatusBadRequest, "Malformed request"
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
	} else {
		logger.Debug("Request rejected",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	return wire.Message(status, message)
}

// decodeBody decodes the JSON body of req into v. A nil response means
// success; otherwise the response is ready to return.
func decodeBody(logger *zap.Logger, req *wire.Request, v any) *wire.Response {
	if !req.HasBody() {
		return errorResponse(logger, req, errBodyAbsent)
	}
	if err := render.DecodeJSON(bytes.NewReader(req.Body), v); err != nil {
		logger.Debug("Invalid request format",
			zap.String("path", req.Path),
			zap.Error(err))
		return wire.Message(http.StatusUnprocessableEntity, core.MessageOf(errMalformedBody))
	}
	return nil
}
