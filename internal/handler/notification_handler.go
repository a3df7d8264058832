package handler

import (
	"io"
	"net/http"

	"hokenhub/internal/mailer"
	"hokenhub/internal/middleware"
	"hokenhub/internal/model"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxAttachmentBytes = 10 << 20

type broadcastResult struct {
	Recipients int `json:"recipients"`
}

// NotificationHandler serves outbound email endpoints
type NotificationHandler struct {
	notifications service.NotificationService
	guard         *middleware.AuthGuard
}

func NewNotificationHandler(notifications service.NotificationService, guard *middleware.AuthGuard) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, guard: guard}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/request-update", h.RequestUpdate)

	admin := router.Group("/admin", h.guard.Authenticate(), h.guard.RequireRole(model.RoleAdmin))
	admin.POST("/broadcast-email", h.Broadcast)
	admin.POST("/weekly-digest", h.SendDigest)
}

// Broadcast handles POST /admin/broadcast-email
// @Summary      Email all approved users
// @Tags         admin
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        subject     formData  string  true   "Subject"
// @Param        message     formData  string  true   "Plain text message"
// @Param        attachment  formData  file    false  "Optional attachment"
// @Success      200         {object}  response.Response{data=broadcastResult}
// @Failure      400         {object}  response.Response
// @Router       /admin/broadcast-email [post]
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	req := service.BroadcastRequest{
		Subject: c.PostForm("subject"),
		Message: c.PostForm("message"),
	}

	if header, err := c.FormFile("attachment"); err == nil {
		if header.Size > maxAttachmentBytes {
			badRequest(c, "Attachment must be 10MB or smaller")
			return
		}
		file, err := header.Open()
		if err != nil {
			badRequest(c, "Could not read attachment")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			badRequest(c, "Could not read attachment")
			return
		}
		req.Attachment = &mailer.Attachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	n, err := h.notifications.Broadcast(c.Request.Context(), caller(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, broadcastResult{Recipients: n}))
}

// RequestUpdate handles POST /request-update
// @Summary      Request a directory update
// @Description  Emails the admins on behalf of a visitor
// @Tags         notifications
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RequestUpdateRequest  true  "Request"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Router       /request-update [post]
func (h *NotificationHandler) RequestUpdate(c *gin.Context) {
	var req service.RequestUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Name, email, and message are required.")
		return
	}

	if err := h.notifications.RequestUpdate(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Request sent successfully"))
}

// SendDigest handles POST /admin/weekly-digest, running the scheduled digest now
// @Summary      Send weekly digest now
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.DigestResult}
// @Failure      500  {object}  response.Response
// @Router       /admin/weekly-digest [post]
func (h *NotificationHandler) SendDigest(c *gin.Context) {
	res, err := h.notifications.SendWeeklyDigest(c.Request.Context())
	if err != nil {
		// partial delivery still reports what went out
		_ = c.Error(err)
		if res == nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
