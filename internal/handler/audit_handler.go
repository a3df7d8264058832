package handler

import (
	"net/http"

	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/pkg/pagination"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	guard        *middleware.AuthGuard
}

func NewAuditHandler(auditService service.AuditService, guard *middleware.AuthGuard) *AuditHandler {
	return &AuditHandler{auditService: auditService, guard: guard}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/admin/audit-logs", h.guard.Authenticate(), h.guard.RequireRole(model.RoleAdmin))
	group.GET("", h.GetAuditLogs)
}

// GetAuditLogs returns the audit trail, newest first
// @Summary      Get audit logs
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Items per page (default 20)"
// @Param        action   query     string  false  "Action, e.g. APPROVE_USER"
// @Param        actorId  query     string  false  "Acting user ID"
// @Success      200      {object}  response.Response{data=pagination.Page}
// @Router       /admin/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.AuditFilter{
		Action:  c.Query("action"),
		ActorID: c.Query("actorId"),
	}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(logs, total)))
}
