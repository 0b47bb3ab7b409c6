package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gin-gonic/gin"
)

const (
	msgInternal    = "Internal server error"
	msgUnavailable = "Service temporarily unavailable"
	msgBadBody     = "Malformed request body."
)

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation), errors.Is(err, common.ErrorConflict):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers the request for err. Errors carrying a user message
// are shown as {"msg"}; everything else is logged and hidden behind a
// generic {"error"}.
func writeError(c *gin.Context, logger logging.Logger, err error) {
	status := statusFor(err)

	if msg, ok := common.UserMessage(err); ok && status < http.StatusInternalServerError {
		c.AbortWithStatusJSON(status, gin.H{"msg": msg})
		return
	}

	logger.Error(c.Request.Context(), "request failed",
		"path", c.Request.URL.Path,
		"status", status,
		"error", err,
	)

	msg := msgInternal
	if status == http.StatusServiceUnavailable {
		msg = msgUnavailable
	} else {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
