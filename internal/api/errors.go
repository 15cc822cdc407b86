package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"pricewatch/internal/storage"
)

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func badRequest(c echo.Context, details string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request", Details: details})
}

func notFound(c echo.Context, details string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Details: details})
}

func unprocessable(c echo.Context, details string) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unprocessable", Details: details})
}

// writeError maps storage errors onto HTTP status codes. Unrecognised
// errors become opaque 500s; details stay in the log, not the response.
func writeError(c echo.Context, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return notFound(c, err.Error())
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}
