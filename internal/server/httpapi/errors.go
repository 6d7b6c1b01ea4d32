package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type errorMapping struct {
	status int
	code   string
}

var errorKinds = map[error]errorMapping{
	common.ErrValidation:   {http.StatusBadRequest, "VALIDATION"},
	common.ErrUnauthorized: {http.StatusUnauthorized, "UNAUTHORIZED"},
	common.ErrForbidden:    {http.StatusForbidden, "FORBIDDEN"},
	common.ErrNotFound:     {http.StatusNotFound, "NOT_FOUND"},
	common.ErrConflict:     {http.StatusConflict, "CONFLICT"},
	common.ErrGone:         {http.StatusGone, "GONE"},
	common.ErrIntegrity:    {http.StatusUnprocessableEntity, "INTEGRITY"},
	common.ErrAuditWrite:   {http.StatusServiceUnavailable, "AUDIT_WRITE"},
}

// statusFor maps an engine error onto an HTTP status and code.
func statusFor(err error) (int, string) {
	if m, ok := errorKinds[common.Kind(err)]; ok {
		return m.status, m.code
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// respondError writes err as an APIError. Internal errors are logged and
// replaced with a generic message.
func (s *Server) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		s.logger.Error(c.Request.Context(), "request failed", "route", c.FullPath(), "error", err)
		msg = "internal error"
	case errors.Is(err, common.ErrAuditWrite):
		s.logger.Error(c.Request.Context(), "audit write failed", "route", c.FullPath(), "error", err)
	case status == http.StatusUnprocessableEntity:
		s.logger.Warn(c.Request.Context(), "integrity check failed", "route", c.FullPath())
		msg = "stored secret failed integrity check"
	}
	c.AbortWithStatusJSON(status, APIError{Error: msg, Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Error: msg, Code: "VALIDATION"})
}
