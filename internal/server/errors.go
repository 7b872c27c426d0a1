package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/swap-router/internal/auth"
	"github.com/aman-zulfiqar/swap-router/internal/ledger"
	"github.com/aman-zulfiqar/swap-router/internal/mev"
	"github.com/aman-zulfiqar/swap-router/internal/router"
	"github.com/aman-zulfiqar/swap-router/internal/swapengine"
	"github.com/aman-zulfiqar/swap-router/internal/venue"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if he, ok := err.(*echo.HTTPError); ok {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

// statusFor maps engine errors to HTTP status codes. Validation is checked first because a
// ValidationError may wrap a more specific sentinel such as venue.ErrNotFound.
func statusFor(err error) int {
	switch {
	case errors.Is(err, router.ErrValidation), errors.Is(err, venue.ErrInvalidVenue),
		errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, venue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, venue.ErrAlreadyExists), errors.Is(err, swapengine.ErrReentrant),
		errors.Is(err, swapengine.ErrPaused):
		return http.StatusConflict
	case errors.Is(err, router.ErrRouteNotFound), errors.Is(err, swapengine.ErrSlippageExceeded),
		errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, ledger.ErrInsufficientAllowance),
		errors.Is(err, ledger.ErrApproveNotReset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mev.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, swapengine.ErrVenueCall):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorDetails exposes the rejected field of a validation error.
func errorDetails(err error) any {
	var ve *router.ValidationError
	if errors.As(err, &ve) {
		return map[string]any{"field": ve.Field, "reason": ve.Reason}
	}
	var se *swapengine.SlippageError
	if errors.As(err, &se) {
		return map[string]any{"hop": se.Hop, "min": amountString(se.Min), "actual": amountString(se.Actual)}
	}
	var te *mev.ThrottleError
	if errors.As(err, &te) {
		return map[string]any{"unit": te.Unit, "last_unit": te.LastUnit, "min_gap": te.MinGap}
	}
	return nil
}
