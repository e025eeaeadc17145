package handlers

import (
	"errors"
	"net/http"

	"auction-bidding/internal/domain"

	"github.com/labstack/echo/v4"
)

type errorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	MinimumBid *int64 `json:"minimum_bid,omitempty"`
	Status     string `json:"status,omitempty"`
}

// respondError maps domain failures onto HTTP statuses.
func respondError(c echo.Context, err error) error {
	resp := errorResponse{Message: err.Error()}
	code := http.StatusInternalServerError

	var tooLow *domain.BidTooLowError
	var notOpen *domain.AuctionNotOpenError

	switch {
	case errors.As(err, &tooLow):
		code, resp.Error = http.StatusBadRequest, "validation_error"
		resp.MinimumBid = &tooLow.Minimum
	case errors.As(err, &notOpen):
		code, resp.Error = http.StatusConflict, "state_conflict"
		resp.Status = notOpen.Status.String()
	case errors.Is(err, domain.ErrNotFound):
		code, resp.Error = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation):
		code, resp.Error = http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrStateConflict):
		code, resp.Error = http.StatusConflict, "state_conflict"
	case errors.Is(err, domain.ErrAlreadyExists):
		code, resp.Error = http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrContention):
		code, resp.Error = http.StatusServiceUnavailable, "contention"
		c.Response().Header().Set("Retry-After", "1")
	case errors.Is(err, domain.ErrCancelled):
		code, resp.Error = http.StatusRequestTimeout, "cancelled"
	default:
		resp.Error = "internal_error"
		resp.Message = "internal server error"
	}

	return c.JSON(code, resp)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation_error", Message: message})
}
