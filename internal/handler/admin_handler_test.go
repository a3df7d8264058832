package handler

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"hokenhub/internal/model"
	"hokenhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilityRoutes(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)
	staff := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)

	var facilities []model.Facility
	rec := a.do(t, call{method: http.MethodGet, path: "/facilities"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &facilities)
	assert.Len(t, facilities, 2)

	rec = a.do(t, call{method: http.MethodGet, path: "/facilities/Nowhere"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	body := gin.H{"name": "Mercy General"}
	rec = a.do(t, call{method: http.MethodPost, path: "/facilities", token: a.bearer(t, staff, facilityA), body: body})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, call{method: http.MethodPost, path: "/facilities", token: a.bearer(t, admin, facilityA), body: body})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = a.do(t, call{method: http.MethodPost, path: "/facilities", token: a.bearer(t, admin, facilityA), body: body})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBroadcastEmail(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)
	a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)

	send := func(fields map[string]string, attach bool) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range fields {
			require.NoError(t, w.WriteField(k, v))
		}
		if attach {
			part, err := w.CreateFormFile("attachment", "notice.txt")
			require.NoError(t, err)
			_, _ = part.Write([]byte("hello"))
		}
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/admin/broadcast-email", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+a.bearer(t, admin, facilityA))
		rec := httptest.NewRecorder()
		a.router.ServeHTTP(rec, req)
		return rec
	}

	rec := send(map[string]string{"subject": "Hi"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(map[string]string{"subject": "Maintenance", "message": "Tonight"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res struct {
		Recipients int `json:"recipients"`
	}
	decode(t, rec, &res)
	assert.Equal(t, 2, res.Recipients)
	assert.Equal(t, 1, a.mail.count())

	rec = a.do(t, call{method: http.MethodGet, path: "/admin/audit-logs?action=" + model.ActionBroadcastEmail, token: a.bearer(t, admin, facilityA)})
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []service.AuditLogResponse `json:"items"`
		Total int64                      `json:"total"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, superAdmin, page.Items[0].ActorEmail)
}

func TestRequestUpdate(t *testing.T) {
	a := newApp(t)
	a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)

	rec := a.do(t, call{method: http.MethodPost, path: "/request-update", body: gin.H{"name": "Dana"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, call{method: http.MethodPost, path: "/request-update", body: gin.H{
		"name": "Dana", "email": "dana@example.com", "message": "Aetna changed its phone number",
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, a.mail.count())
}

func TestOperationalRoutes(t *testing.T) {
	a := newApp(t)

	rec := a.do(t, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)

	a.do(t, call{method: http.MethodGet, path: "/facilities"})
	rec = a.do(t, call{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/facilities",status="200"}`)

	rec = a.do(t, call{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusOf(t *testing.T) {
	tests := map[service.Kind]int{
		service.KindValidation:      http.StatusBadRequest,
		service.KindAuth:            http.StatusUnauthorized,
		service.KindTokenExpired:    http.StatusUnauthorized,
		service.KindApprovalPending: http.StatusForbidden,
		service.KindFacilityDenied:  http.StatusForbidden,
		service.KindNotFound:        http.StatusNotFound,
		service.KindConflict:        http.StatusConflict,
		service.KindInternal:        http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, statusOf(&service.Error{Kind: kind}), string(kind))
	}
	assert.Equal(t, http.StatusInternalServerError, statusOf(assert.AnError))
}

func TestStatistics(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA, facilityB)
	a.seed(t, "pending@example.com", model.RoleUser, false)
	for i, facility := range []string{facilityA, facilityA, facilityB} {
		body := samplePlan()
		body["descriptiveName"] = fmt.Sprintf("Plan %d", i)
		rec := a.do(t, call{method: http.MethodPost, path: "/books", token: a.bearer(t, admin, facility), body: body})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	tok := a.bearer(t, admin, facilityA)
	rec := a.do(t, call{method: http.MethodGet, path: "/admin/statistics", token: tok})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats model.DirectoryStatistics
	decode(t, rec, &stats)
	assert.EqualValues(t, 1, stats.PendingUsers)
	assert.EqualValues(t, 3, stats.TotalPlans)
	assert.EqualValues(t, 3, stats.PlansCreated)
	assert.Equal(t, []model.FacilityTally{{FacilityName: facilityA, Total: 2}, {FacilityName: facilityB, Total: 1}}, stats.PlansByFacility)

	rec = a.do(t, call{method: http.MethodGet, path: "/admin/statistics?start_date=2001-01-01T00:00:00Z&end_date=2001-02-01T00:00:00Z", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &stats)
	assert.Zero(t, stats.PlansCreated)
	assert.EqualValues(t, 3, stats.TotalPlans)

	cases := []string{
		"/admin/statistics?start_date=yesterday",
		"/admin/statistics?end_date=2001-13-01",
		"/admin/statistics?start_date=2002-01-01T00:00:00Z&end_date=2001-01-01T00:00:00Z",
	}
	for _, path := range cases {
		rec = a.do(t, call{method: http.MethodGet, path: path, token: tok})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	staff := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)
	rec = a.do(t, call{method: http.MethodGet, path: "/admin/statistics", token: a.bearer(t, staff, facilityA)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
