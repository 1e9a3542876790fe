package handlers

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"rifa/internal/status"
)

func ok(e *core.RequestEvent, data any) error {
	return e.JSON(http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
	})
}

// apiError maps service errors to PocketBase API errors.
func apiError(e *core.RequestEvent, err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidInput):
		var fields validation.Errors
		if errors.As(err, &fields) {
			return apis.NewBadRequestError(status.ErrInvalidInput.Error(), fields)
		}
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidNumber),
		errors.Is(err, status.ErrTicketUnavailable),
		errors.Is(err, status.ErrInvalidTransition),
		errors.Is(err, status.ErrDrawFinalized),
		errors.Is(err, status.ErrProofTooLarge),
		errors.Is(err, status.ErrProofNotImage):
		return apis.NewBadRequestError(err.Error(), nil)
	case errors.Is(err, status.ErrTicketNotFound),
		errors.Is(err, status.ErrProofNotFound):
		return apis.NewNotFoundError(err.Error(), nil)
	case errors.Is(err, status.ErrInvalidAdminSecret):
		return apis.NewForbiddenError(err.Error(), nil)
	}

	e.App.Logger().Error("Request failed", "path", e.Request.Pattern, "error", err)
	return apis.NewInternalServerError("Error interno del servidor", err)
}
