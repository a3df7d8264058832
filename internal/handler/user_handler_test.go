package handler

import (
	"net/http"
	"testing"

	"hokenhub/internal/model"
	"hokenhub/internal/service"
	"hokenhub/pkg/pagination"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRoutes_RequireAdmin(t *testing.T) {
	a := newApp(t)
	staff := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)

	rec := a.do(t, call{method: http.MethodGet, path: "/users"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, call{method: http.MethodGet, path: "/users", token: a.bearer(t, staff, facilityA)})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApproveUser(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)
	pending := a.seed(t, "pending@example.com", model.RoleUser, false)
	tok := a.bearer(t, admin, facilityA)
	path := "/users/approve/" + pending.ID.String()

	rec := a.do(t, call{method: http.MethodPut, path: path, token: tok, body: gin.H{"approvedFacilities": []string{}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec, nil).Message, "select at least one facility")

	rec = a.do(t, call{method: http.MethodPut, path: path, token: tok, body: gin.H{"approvedFacilities": []string{facilityA}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user service.UserResponse
	decode(t, rec, &user)
	assert.Contains(t, user.FacilityAccess, facilityA)
	assert.Equal(t, model.StatusApproved, user.Status)
	assert.True(t, user.IsApproved)

	rec = a.do(t, call{method: http.MethodPost, path: "/auth/login", body: gin.H{"email": "pending@example.com", "password": password, "activeFacility": facilityA}})
	assert.Equal(t, http.StatusOK, rec.Code, "approved user can log in")

	rec = a.do(t, call{method: http.MethodPut, path: "/users/grant-facility", token: tok, body: gin.H{"userId": pending.ID.String(), "facility": " " + facilityB + " "}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &user)
	assert.Equal(t, []string{facilityA, facilityB}, user.FacilityAccess)
}

func TestRoleToggle(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)
	staff := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)
	tok := a.bearer(t, admin, facilityA)

	rec := a.do(t, call{method: http.MethodPut, path: "/users/demote/" + staff.ID.String(), token: tok})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, call{method: http.MethodPut, path: "/users/make-admin/" + staff.ID.String(), token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	var user service.UserResponse
	decode(t, rec, &user)
	assert.Equal(t, model.RoleAdmin, user.Role)

	// the promoted user's existing token now passes the admin guard
	rec = a.do(t, call{method: http.MethodGet, path: "/users", token: a.bearer(t, staff, facilityA)})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, call{method: http.MethodPut, path: "/users/demote/" + staff.ID.String(), token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &user)
	assert.Equal(t, model.RoleUser, user.Role)
}

func TestDeleteUser(t *testing.T) {
	a := newApp(t)
	root := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)
	other := a.seed(t, "ops@example.com", model.RoleAdmin, true, facilityA)
	staff := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)

	for _, actor := range []*model.User{root, other} {
		rec := a.do(t, call{method: http.MethodDelete, path: "/users/" + root.ID.String(), token: a.bearer(t, actor, facilityA)})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}

	tok := a.bearer(t, other, facilityA)
	rec := a.do(t, call{method: http.MethodDelete, path: "/users/" + staff.ID.String(), token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, call{method: http.MethodDelete, path: "/users/" + staff.ID.String(), token: tok})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAndEditUsers(t *testing.T) {
	a := newApp(t)
	admin := a.seed(t, superAdmin, model.RoleAdmin, true, facilityA)
	staff := a.seed(t, "nurse@example.com", model.RoleUser, true, facilityA)
	a.seed(t, "pending@example.com", model.RoleUser, false)
	tok := a.bearer(t, admin, facilityA)

	rec := a.do(t, call{method: http.MethodGet, path: "/users?approved=false", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		pagination.Page
		Items []service.UserResponse `json:"items"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "pending@example.com", page.Items[0].Email)
	assert.EqualValues(t, 1, page.Total)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(t, call{method: http.MethodGet, path: "/users?approved=maybe", token: tok})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, call{method: http.MethodPut, path: "/users/" + staff.ID.String(), token: tok, body: gin.H{"npi": "42"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(t, call{method: http.MethodPut, path: "/users/" + staff.ID.String(), token: tok, body: gin.H{"facilityAccess": []string{facilityB}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var user service.UserResponse
	decode(t, rec, &user)
	assert.Equal(t, []string{facilityB}, user.FacilityAccess)

	rec = a.do(t, call{method: http.MethodGet, path: "/users/" + staff.ID.String(), token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &user)
	assert.Equal(t, []string{facilityB}, user.FacilityAccess)

	// revoked facility takes effect before the token expires
	rec = a.do(t, call{method: http.MethodPost, path: "/books", token: a.bearer(t, staff, facilityA), body: samplePlan()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
