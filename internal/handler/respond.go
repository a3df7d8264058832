package handler

import (
	"net/http"

	"hokenhub/internal/middleware"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:         http.StatusBadRequest,
	service.KindAuth:               http.StatusUnauthorized,
	service.KindUnauthenticated:    http.StatusUnauthorized,
	service.KindTokenInvalid:       http.StatusUnauthorized,
	service.KindTokenExpired:       http.StatusUnauthorized,
	service.KindApprovalPending:    http.StatusForbidden,
	service.KindFacilityDenied:     http.StatusForbidden,
	service.KindForbidden:          http.StatusForbidden,
	service.KindNotFound:           http.StatusNotFound,
	service.KindConflict:           http.StatusConflict,
	service.KindInvariantViolation: http.StatusBadRequest,
	service.KindInternal:           http.StatusInternalServerError,
}

// statusOf maps a service error to its HTTP status
func statusOf(err error) int {
	if status, ok := kindStatus[service.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes the error envelope. The cause is attached to the gin
// context for the request logger and never rendered.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, response.Error(status, service.MessageOf(err)))
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, message))
}

// caller returns the authenticated identity; routes using it sit behind Authenticate
func caller(c *gin.Context) service.Caller {
	cl, _ := middleware.CallerFrom(c)
	return cl
}
