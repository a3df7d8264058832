package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"

	"hokenhub/internal/model"
	"hokenhub/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePlan() gin.H {
	return gin.H{
		"facilityName":    facilityB,
		"descriptiveName": "Blue Shield PPO",
		"payerName":       "Blue Shield",
		"planName":        "PPO Gold",
		"payerCode":       120,
		"planCode":        7,
		"financialClass":  "Commercial",
		"prefixes":        []string{"XEA"},
		"phoneNumbers":    []gin.H{{"title": "Eligibility", "number": "800-555-0100"}},
		"facilityContracts": []gin.H{
			{"facilityName": facilityA, "contractStatus": model.ContractContracted},
		},
	}
}

func createPlan(t *testing.T, a *app, tok string) model.InsurancePlan {
	t.Helper()
	rec := a.do(t, call{method: http.MethodPost, path: "/books", token: tok, body: samplePlan()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var plan model.InsurancePlan
	decode(t, rec, &plan)
	return plan
}

func TestCreatePlan_StampsActiveFacility(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)

	plan := createPlan(t, a, a.bearer(t, u, facilityA))
	assert.Equal(t, facilityA, plan.FacilityName)

	stored, err := a.plans.GetByID(context.Background(), plan.ID.String())
	require.NoError(t, err)
	assert.Equal(t, facilityA, stored.FacilityName)

	rec := a.do(t, call{method: http.MethodPost, path: "/books", token: a.bearer(t, u, facilityA), body: samplePlan()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, call{method: http.MethodPost, path: "/books", body: samplePlan()})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlan_TenantIsolation(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)
	plan := createPlan(t, a, a.bearer(t, u, facilityA))
	path := "/books/" + plan.ID.String()
	tokB := a.bearer(t, u, facilityB)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := a.do(t, call{method: method, path: path, token: tokB, body: gin.H{"notes": "x"}})
		assert.Equal(t, http.StatusForbidden, rec.Code, method)
	}

	tokA := a.bearer(t, u, facilityA)
	rec := a.do(t, call{method: http.MethodGet, path: path, token: tokA})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, call{method: http.MethodGet, path: "/books/does-not-exist", token: tokA})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatePlan_KeepsFacility(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)
	tok := a.bearer(t, u, facilityA)
	plan := createPlan(t, a, tok)

	rec := a.do(t, call{method: http.MethodPut, path: "/books/" + plan.ID.String(), token: tok, body: gin.H{
		"facilityName": facilityB,
		"notes":        "Requires referral",
		"isAdmin":      true,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated model.InsurancePlan
	decode(t, rec, &updated)
	assert.Equal(t, facilityA, updated.FacilityName)
	assert.Equal(t, "Requires referral", updated.Notes)

	rec = a.do(t, call{method: http.MethodPut, path: "/books/" + plan.ID.String(), token: tok, body: []string{"not", "an", "object"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPlans_Public(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)
	createPlan(t, a, a.bearer(t, u, facilityA))
	createPlan(t, a, a.bearer(t, u, facilityB))

	var plans []model.InsurancePlan
	rec := a.do(t, call{method: http.MethodGet, path: "/books"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &plans)
	assert.Len(t, plans, 2)

	rec = a.do(t, call{method: http.MethodGet, path: "/books?facility=" + url.QueryEscape(facilityB) + "&planName=gold"})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &plans)
	require.Len(t, plans, 1)
	assert.Equal(t, facilityB, plans[0].FacilityName)
}

func TestDeletePlan_RemovesImages(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)
	tok := a.bearer(t, u, facilityA)
	front := storage.FacilityFolder(facilityA) + "/front.png"
	body := samplePlan()
	body["imagePublicId"] = front
	rec := a.do(t, call{method: http.MethodPost, path: "/books", token: tok, body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var plan model.InsurancePlan
	decode(t, rec, &plan)

	rec = a.do(t, call{method: http.MethodDelete, path: "/books/" + plan.ID.String(), token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{front}, a.images.deleted)

	rec = a.do(t, call{method: http.MethodGet, path: "/books/" + plan.ID.String(), token: tok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadImage(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="image"; filename="card.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/books/images", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.bearer(t, u, facilityA))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var img storage.Image
	decode(t, rec, &img)
	assert.Equal(t, storage.FacilityFolder(facilityA)+"/card.png", img.PublicID)

	rec = a.do(t, call{method: http.MethodPost, path: "/books/images", token: a.bearer(t, u, facilityA)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlan_RevokedFacilityLosesAccess(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)
	tok := a.bearer(t, u, facilityA)
	plan := createPlan(t, a, tok)
	path := "/books/" + plan.ID.String()

	u.FacilityAccess = []string{facilityB}
	require.NoError(t, a.users.Update(context.Background(), u))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := a.do(t, call{method: method, path: path, token: tok, body: gin.H{"notes": "x"}})
		assert.Equal(t, http.StatusForbidden, rec.Code, method)
	}
	rec := a.do(t, call{method: http.MethodPost, path: "/books/images", token: tok})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	stored, err := a.plans.GetByID(context.Background(), plan.ID.String())
	require.NoError(t, err)
	assert.Empty(t, stored.Notes)
}

func TestPlan_ForeignImageKeyRejected(t *testing.T) {
	a := newApp(t)
	u := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)
	victimKey := storage.FacilityFolder(facilityB) + "/card.png"
	body := samplePlan()
	body["imagePublicId"] = victimKey
	rec := a.do(t, call{method: http.MethodPost, path: "/books", token: a.bearer(t, u, facilityB), body: body})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tokA := a.bearer(t, u, facilityA)
	rec = a.do(t, call{method: http.MethodPost, path: "/books", token: tokA, body: body})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	plan := createPlan(t, a, tokA)
	path := "/books/" + plan.ID.String()
	rec = a.do(t, call{method: http.MethodPut, path: path, token: tokA, body: gin.H{"imagePublicId": victimKey}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, call{method: http.MethodDelete, path: path, token: tokA})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, a.images.deleted)
}
