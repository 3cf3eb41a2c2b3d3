package middleware

import (
	"errors"

	"github.com/TradeGateHQ/tradegate/internal/identity"
	"github.com/TradeGateHQ/tradegate/internal/pkg/apperrors"
	"github.com/TradeGateHQ/tradegate/internal/pkg/logger"
	"github.com/TradeGateHQ/tradegate/internal/session"
	"github.com/TradeGateHQ/tradegate/internal/venue"
	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr := classify(err)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}

		if appErr.HTTPStatus >= 500 {
			logger.LogError(c.Request.Context(), appErr, "Internal Server Error", logFields...)
		} else {
			logger.Warn(appErr.Message, logFields...)
		}

		c.JSON(appErr.HTTPStatus, appErr)
	}
}

// classify maps domain errors onto the application error envelope.
func classify(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, session.ErrUnknownSession) {
		// Forged or expired callback: reject without revealing whether the
		// session ever existed.
		return apperrors.New(apperrors.ErrUnknownSession, "unknown or expired login session", err)
	}
	if errors.Is(err, session.ErrCompletionInProgress) {
		return apperrors.New(apperrors.ErrLoginCompletion, "login completion already in progress", err)
	}

	var completion *session.CompletionError
	if errors.As(err, &completion) {
		return apperrors.New(apperrors.ErrLoginCompletion, completion.Error(), err)
	}
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return apperrors.New(apperrors.ErrUpstreamAuth, authErr.Error(), err)
	}
	var idpErr *identity.APIError
	if errors.As(err, &idpErr) {
		return apperrors.New(apperrors.ErrUpstream, idpErr.Error(), err)
	}
	var venueErr *venue.APIError
	if errors.As(err, &venueErr) {
		return apperrors.New(apperrors.ErrVenueAPI, venueErr.Error(), err)
	}

	return apperrors.New(apperrors.ErrInternal, err.Error(), err)
}
