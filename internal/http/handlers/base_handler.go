// README: Base handler utilities (JSON helpers, domain error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"leafline/internal/modules/catalog"
	"leafline/internal/modules/dispatch"
	"leafline/internal/modules/driver"
	"leafline/internal/modules/order"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module sentinel errors onto HTTP status codes.
// Business errors keep their message so the client can explain the
// rejection; anything unrecognised becomes an opaque 500.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrInvalidItem),
		errors.Is(err, catalog.ErrInsufficientStock),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrAlreadyAssigned),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, dispatch.ErrDriverUnavailable):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
