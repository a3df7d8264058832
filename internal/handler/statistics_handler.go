package handler

import (
	"net/http"
	"time"

	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	guard             *middleware.AuthGuard
	now               func() time.Time
}

func NewStatisticsHandler(statisticsService service.StatisticsService, guard *middleware.AuthGuard) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, guard: guard, now: time.Now}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	statsGroup := router.Group("/admin/statistics", h.guard.Authenticate(), h.guard.RequireRole(model.RoleAdmin))
	statsGroup.GET("", h.GetStatistics)
}

// GetStatistics returns the admin dashboard summary
// @Summary      Get dashboard statistics
// @Description  Pending approvals, plans per facility and plans created in a time range
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339), default start of current month"
// @Param        end_date   query string false "End Date (RFC3339), default now"
// @Success      200 {object} response.Response{data=model.DirectoryStatistics}
// @Failure      400 {object} response.Response "Invalid date format"
// @Failure      403 {object} response.Response
// @Router       /admin/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	now := h.now()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	endDate := now

	if raw := c.Query("start_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid start_date format, expected RFC3339")
			return
		}
		startDate = t
	}
	if raw := c.Query("end_date"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid end_date format, expected RFC3339")
			return
		}
		endDate = t
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, stats))
}
