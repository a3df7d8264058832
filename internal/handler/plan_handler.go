package handler

import (
	"io"
	"net/http"

	"hokenhub/internal/middleware"
	"hokenhub/internal/repository"
	"hokenhub/internal/service"
	"hokenhub/pkg/response"

	"github.com/gin-gonic/gin"
)

const maxImageBytes = 5 << 20

// PlanHandler serves the insurance plan directory under /books
type PlanHandler struct {
	planService service.PlanService
	guard       *middleware.AuthGuard
}

func NewPlanHandler(planService service.PlanService, guard *middleware.AuthGuard) *PlanHandler {
	return &PlanHandler{planService: planService, guard: guard}
}

func (h *PlanHandler) RegisterRoutes(router *gin.RouterGroup) {
	books := router.Group("/books")
	books.GET("", h.ListPlans)

	authed := books.Group("", h.guard.Authenticate(), h.guard.RequireActiveFacility())
	authed.POST("", h.CreatePlan)
	authed.POST("/images", h.UploadImage)
	authed.GET("/:id", h.GetPlan)
	authed.PUT("/:id", h.UpdatePlan)
	authed.DELETE("/:id", h.DeletePlan)
}

func bindFields(c *gin.Context) (service.PlanFields, bool) {
	var fields service.PlanFields
	if err := c.ShouldBindJSON(&fields); err != nil || fields == nil {
		badRequest(c, "Request body must be a JSON object")
		return nil, false
	}
	return fields, true
}

// ListPlans handles GET /books
// @Summary      List insurance plans
// @Description  Public directory listing, optionally narrowed by facility and plan name
// @Tags         books
// @Produce      json
// @Param        facility  query     string  false  "Owning facility"
// @Param        planName  query     string  false  "Case-insensitive partial plan name"
// @Success      200       {object}  response.Response{data=[]model.InsurancePlan}
// @Router       /books [get]
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.List(c.Request.Context(), repository.PlanFilter{
		Facility: c.Query("facility"),
		PlanName: c.Query("planName"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, plans))
}

// CreatePlan handles POST /books
// @Summary      Create insurance plan
// @Description  The plan is stamped with the caller's active facility; facilityName in the body is ignored
// @Tags         books
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.PlanRequest  true  "Plan"
// @Success      201      {object}  response.Response{data=model.InsurancePlan}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /books [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	plan, err := h.planService.Create(c.Request.Context(), caller(c), fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, plan))
}

// GetPlan handles GET /books/:id
// @Summary      Get insurance plan
// @Tags         books
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  response.Response{data=model.InsurancePlan}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /books/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	plan, err := h.planService.Get(c.Request.Context(), caller(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, plan))
}

// UpdatePlan handles PUT /books/:id
// @Summary      Update insurance plan
// @Description  Applies allow-listed fields only; the owning facility never changes
// @Tags         books
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string               true  "Plan ID"
// @Param        payload  body      service.PlanRequest  true  "Fields to change"
// @Success      200      {object}  response.Response{data=model.InsurancePlan}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /books/{id} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	fields, ok := bindFields(c)
	if !ok {
		return
	}

	plan, err := h.planService.Update(c.Request.Context(), caller(c), c.Param("id"), fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, plan))
}

// DeletePlan handles DELETE /books/:id
// @Summary      Delete insurance plan
// @Tags         books
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Plan ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /books/{id} [delete]
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	if err := h.planService.Delete(c.Request.Context(), caller(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Message(http.StatusOK, "Insurance plan deleted successfully"))
}

// UploadImage handles POST /books/images
// @Summary      Upload plan image
// @Tags         books
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        image  formData  file  true  "Card image"
// @Success      201    {object}  response.Response{data=storage.Image}
// @Failure      400    {object}  response.Response
// @Failure      403    {object}  response.Response
// @Router       /books/images [post]
func (h *PlanHandler) UploadImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "No image uploaded")
		return
	}
	if header.Size > maxImageBytes {
		badRequest(c, "Image must be 5MB or smaller")
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, "Could not read image")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		respondError(c, err)
		return
	}
	if len(body) > maxImageBytes {
		badRequest(c, "Image must be 5MB or smaller")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	img, err := h.planService.UploadImage(c.Request.Context(), caller(c), header.Filename, contentType, body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, img))
}
