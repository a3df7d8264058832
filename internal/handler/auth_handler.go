package handler

import (
	"net/http"

	"hokenhub/internal/middleware"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

const msgForgotAck = "If your email exists, a password reset link has been sent."

type AuthHandler struct {
	authService service.AuthService
	guard       *middleware.AuthGuard
	cookies     middleware.CookieConfig
	limit       gin.HandlerFunc
}

// NewAuthHandler wires the session endpoints. limit throttles the credential routes.
func NewAuthHandler(authService service.AuthService, guard *middleware.AuthGuard, cookies middleware.CookieConfig, limit gin.HandlerFunc) *AuthHandler {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	return &AuthHandler{authService: authService, guard: guard, cookies: cookies, limit: limit}
}

func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup) {
	auth := router.Group("/auth")
	auth.POST("/register", h.limit, h.Register)
	auth.POST("/login", h.limit, h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/forgot-password", h.limit, h.ForgotPassword)
	auth.POST("/reset-password", h.limit, h.ResetPassword)

	authed := auth.Group("", h.guard.Authenticate())
	authed.POST("/logout", h.Logout)
	authed.POST("/set-facility", h.SetFacility)
	authed.GET("/me", h.Me)
	authed.PUT("/me", h.UpdateMe)
}

// Register creates a pending account
// @Summary      Register
// @Description  Creates a user awaiting admin approval and notifies admins
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegisterRequest  true  "Registration"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// Login authenticates against a facility
// @Summary      Login
// @Description  Verifies credentials, sets the refresh cookie and returns an access token scoped to activeFacility
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.LoginRequest  true  "Credentials"
// @Success      200      {object}  response.Response{data=service.LoginResponse}
// @Failure      401      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload")
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.SetRefreshCookie(c, res.RefreshToken)
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Refresh issues a new access token from the refresh cookie
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RefreshRequest  true  "Facility for the new token"
// @Success      200      {object}  response.Response{data=service.AccessTokenResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, _ := c.Cookie(middleware.RefreshCookie)

	var req service.RefreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request payload")
			return
		}
	}

	res, err := h.authService.Refresh(c.Request.Context(), refreshToken, req.ActiveFacility)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// Logout clears the refresh cookie; repeated calls behave the same
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	h.cookies.ClearRefreshCookie(c)
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Logged out successfully"))
}

// SetFacility switches the active facility of the session
// @Summary      Switch active facility
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.SetFacilityRequest  true  "Facility"
// @Success      200      {object}  response.Response{data=service.AccessTokenResponse}
// @Failure      403      {object}  response.Response
// @Router       /auth/set-facility [post]
func (h *AuthHandler) SetFacility(c *gin.Context) {
	var req service.SetFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Facility is required")
		return
	}

	res, err := h.authService.SetActiveFacility(c.Request.Context(), caller(c), req.ActiveFacility)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ForgotPassword always acknowledges
// @Summary      Request a password reset link
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ForgotPasswordRequest  true  "Email"
// @Success      200      {object}  response.Response
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req service.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email is required")
		return
	}

	if err := h.authService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		// the response stays the same either way
		_ = c.Error(err)
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, msgForgotAck))
}

// ResetPassword sets a new password from a reset token
// @Summary      Reset password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ResetPasswordRequest  true  "Token and new password"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req service.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing token or password")
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Password has been reset successfully"))
}

// Me returns the caller's profile
// @Summary      Current user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(c.Request.Context(), caller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateMe edits the caller's own contact fields
// @Summary      Update current user
// @Tags         auth
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.UpdateProfileRequest  true  "Profile fields"
// @Success      200      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /auth/me [put]
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.authService.UpdateMe(c.Request.Context(), caller(c).ID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}
