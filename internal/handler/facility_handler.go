package handler

import (
	"net/http"

	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type FacilityHandler struct {
	facilityService service.FacilityService
	guard           *middleware.AuthGuard
}

func NewFacilityHandler(facilityService service.FacilityService, guard *middleware.AuthGuard) *FacilityHandler {
	return &FacilityHandler{facilityService: facilityService, guard: guard}
}

func (h *FacilityHandler) RegisterRoutes(router *gin.RouterGroup) {
	facilities := router.Group("/facilities")
	facilities.GET("", h.ListFacilities)
	facilities.GET("/:name", h.GetFacility)

	admin := facilities.Group("", h.guard.Authenticate(), h.guard.RequireRole(model.RoleAdmin))
	admin.POST("", h.CreateFacility)
	admin.PUT("/:name", h.UpdateFacility)
}

// ListFacilities handles GET /facilities
// @Summary      List facilities
// @Tags         facilities
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Facility}
// @Router       /facilities [get]
func (h *FacilityHandler) ListFacilities(c *gin.Context) {
	facilities, err := h.facilityService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, facilities))
}

// GetFacility handles GET /facilities/:name
// @Summary      Get facility
// @Tags         facilities
// @Produce      json
// @Param        name  path      string  true  "Facility name"
// @Success      200   {object}  response.Response{data=model.Facility}
// @Failure      404   {object}  response.Response
// @Router       /facilities/{name} [get]
func (h *FacilityHandler) GetFacility(c *gin.Context) {
	facility, err := h.facilityService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, facility))
}

// CreateFacility handles POST /facilities
// @Summary      Create facility
// @Tags         facilities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.FacilityRequest  true  "Facility"
// @Success      201      {object}  response.Response{data=model.Facility}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /facilities [post]
func (h *FacilityHandler) CreateFacility(c *gin.Context) {
	var req service.FacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	facility, err := h.facilityService.Create(c.Request.Context(), caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, facility))
}

// UpdateFacility handles PUT /facilities/:name
// @Summary      Update facility metadata
// @Tags         facilities
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        name     path      string                   true  "Facility name"
// @Param        payload  body      service.FacilityRequest  true  "Metadata"
// @Success      200      {object}  response.Response{data=model.Facility}
// @Failure      404      {object}  response.Response
// @Router       /facilities/{name} [put]
func (h *FacilityHandler) UpdateFacility(c *gin.Context) {
	var req service.FacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	facility, err := h.facilityService.Update(c.Request.Context(), caller(c), c.Param("name"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, facility))
}
