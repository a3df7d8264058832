package handler

import (
	"net/http"
	"strconv"

	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/pkg/pagination"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler exposes the admin approval workflow
type UserHandler struct {
	adminService service.AdminService
	guard        *middleware.AuthGuard
}

func NewUserHandler(adminService service.AdminService, guard *middleware.AuthGuard) *UserHandler {
	return &UserHandler{adminService: adminService, guard: guard}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users", h.guard.Authenticate(), h.guard.RequireRole(model.RoleAdmin))
	{
		users.GET("", h.ListUsers)
		users.PUT("/grant-facility", h.GrantFacility)
		users.PUT("/approve/:id", h.ApproveUser)
		users.PUT("/make-admin/:id", h.MakeAdmin)
		users.PUT("/demote/:id", h.Demote)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
		users.DELETE("/:id", h.DeleteUser)
	}
}

// ListUsers handles GET /users
// @Summary      List users
// @Description  Paginated users without password hashes, optionally filtered
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Items per page (default 20)"
// @Param        role      query     string  false  "user or admin"
// @Param        approved  query     bool    false  "Approval state"
// @Param        facility  query     string  false  "Granted facility"
// @Success      200       {object}  response.Response{data=pagination.Page}
// @Failure      403       {object}  response.Response
// @Router       /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	filter := repository.UserFilter{
		Role:     c.Query("role"),
		Facility: c.Query("facility"),
	}
	if raw, ok := c.GetQuery("approved"); ok {
		approved, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "approved must be true or false")
			return
		}
		filter.Approved = &approved
	}

	users, total, err := h.adminService.ListUsers(c.Request.Context(), filter, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, p.Wrap(users, total)))
}

// GetUser handles GET /users/:id
// @Summary      Get user
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      404  {object}  response.Response
// @Router       /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.adminService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// ApproveUser handles PUT /users/approve/:id
// @Summary      Approve user
// @Description  Approves a pending user and adds the given facilities to their access
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "User ID"
// @Param        payload  body      service.ApproveUserRequest  true  "Facilities to grant"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /users/approve/{id} [put]
func (h *UserHandler) ApproveUser(c *gin.Context) {
	var req service.ApproveUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	user, err := h.adminService.ApproveUser(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// GrantFacility handles PUT /users/grant-facility
// @Summary      Grant facility
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.GrantFacilityRequest  true  "User and facility"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Router       /users/grant-facility [put]
func (h *UserHandler) GrantFacility(c *gin.Context) {
	var req service.GrantFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "User ID and facility are required")
		return
	}

	user, err := h.adminService.GrantFacility(c.Request.Context(), caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// MakeAdmin handles PUT /users/make-admin/:id
// @Summary      Promote to admin
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /users/make-admin/{id} [put]
func (h *UserHandler) MakeAdmin(c *gin.Context) {
	user, err := h.adminService.MakeAdmin(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// Demote handles PUT /users/demote/:id
// @Summary      Demote admin
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Failure      400  {object}  response.Response
// @Router       /users/demote/{id} [put]
func (h *UserHandler) Demote(c *gin.Context) {
	user, err := h.adminService.Demote(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateUser handles PUT /users/:id
// @Summary      Admin edit user
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "User ID"
// @Param        payload  body      service.AdminUpdateUserRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /users/{id} [put]
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req service.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.adminService.UpdateUser(c.Request.Context(), caller(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeleteUser handles DELETE /users/:id
// @Summary      Delete user
// @Description  The super admin account cannot be deleted
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /users/{id} [delete]
func (h *UserHandler) DeleteUser(c *gin.Context) {
	if err := h.adminService.DeleteUser(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "User deleted successfully"))
}
