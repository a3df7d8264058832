package service

import (
	"context"
	"testing"

	"hokenhub/internal/logger"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdmin(e *env) AdminService {
	return NewAdminService(e.tm, e.users, e.facilities, e.audits, superAdmin, logger.Discard())
}

func TestApproveUser(t *testing.T) {
	e := newEnv(t)
	svc := newAdmin(e)
	ctx := context.Background()
	admin := e.seedUser(t, "boss@example.com", model.RoleAdmin, true, facilityA)
	caller := callerOf(admin, facilityA)

	pending := e.seedUser(t, "new@example.com", model.RoleUser, false)

	_, err := svc.ApproveUser(ctx, caller, pending.ID.String(), ApproveUserRequest{ApprovedFacilities: []string{}})
	requireKind(t, err, KindValidation)
	assert.Equal(t, "Please select at least one facility to approve.", MessageOf(err))

	_, err = svc.ApproveUser(ctx, caller, pending.ID.String(), ApproveUserRequest{ApprovedFacilities: []string{" ", ""}})
	requireKind(t, err, KindValidation)

	_, err = svc.ApproveUser(ctx, caller, pending.ID.String(), ApproveUserRequest{ApprovedFacilities: []string{"Nowhere"}})
	requireKind(t, err, KindValidation)

	res, err := svc.ApproveUser(ctx, caller, pending.ID.String(), ApproveUserRequest{ApprovedFacilities: []string{facilityA}})
	require.NoError(t, err)
	assert.True(t, res.IsApproved)
	assert.Equal(t, model.StatusApproved, res.Status)
	assert.Equal(t, []string{facilityA}, res.FacilityAccess)

	res, err = svc.ApproveUser(ctx, caller, pending.ID.String(), ApproveUserRequest{ApprovedFacilities: []string{facilityB, facilityA, facilityB}})
	require.NoError(t, err)
	assert.Equal(t, []string{facilityA, facilityB}, res.FacilityAccess)

	_, err = svc.ApproveUser(ctx, caller, "3f0c6a1e-0000-4000-8000-000000000000", ApproveUserRequest{ApprovedFacilities: []string{facilityA}})
	requireKind(t, err, KindNotFound)

	assert.Equal(t, []string{model.ActionApproveUser, model.ActionApproveUser}, e.auditActions(t))
}

func TestGrantFacility(t *testing.T) {
	e := newEnv(t)
	svc := newAdmin(e)
	ctx := context.Background()
	caller := callerOf(e.seedUser(t, "boss@example.com", model.RoleAdmin, true, facilityA), facilityA)
	u := e.seedUser(t, "new@example.com", model.RoleUser, false)

	res, err := svc.GrantFacility(ctx, caller, GrantFacilityRequest{UserID: u.ID.String(), Facility: "  " + facilityB + " "})
	require.NoError(t, err)
	assert.Equal(t, []string{facilityB}, res.FacilityAccess)
	assert.True(t, res.IsApproved)

	res, err = svc.GrantFacility(ctx, caller, GrantFacilityRequest{UserID: u.ID.String(), Facility: facilityB})
	require.NoError(t, err)
	assert.Equal(t, []string{facilityB}, res.FacilityAccess)

	_, err = svc.GrantFacility(ctx, caller, GrantFacilityRequest{UserID: u.ID.String(), Facility: "Nowhere"})
	requireKind(t, err, KindValidation)
}

func TestRoleToggle(t *testing.T) {
	e := newEnv(t)
	svc := newAdmin(e)
	ctx := context.Background()
	caller := callerOf(e.seedUser(t, "boss@example.com", model.RoleAdmin, true, facilityA), facilityA)
	u := e.seedUser(t, "nurse@example.com", model.RoleUser, true, facilityA)

	_, err := svc.Demote(ctx, caller, u.ID.String())
	requireKind(t, err, KindValidation)
	assert.Equal(t, "User is not an admin", MessageOf(err))

	res, err := svc.MakeAdmin(ctx, caller, u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, res.Role)

	res, err = svc.Demote(ctx, caller, u.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, res.Role)

	root := e.seedUser(t, superAdmin, model.RoleAdmin, true, facilityA)
	_, err = svc.Demote(ctx, caller, root.ID.String())
	requireKind(t, err, KindForbidden)
}

func TestAdminUpdateUser(t *testing.T) {
	e := newEnv(t)
	svc := newAdmin(e)
	ctx := context.Background()
	caller := callerOf(e.seedUser(t, "boss@example.com", model.RoleAdmin, true, facilityA), facilityA)
	u := e.seedUser(t, "nurse@example.com", model.RoleUser, true, facilityA, facilityB)

	res, err := svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{
		UpdateProfileRequest: UpdateProfileRequest{PhoneNumber: "555-9999"},
	})
	require.NoError(t, err)
	assert.Equal(t, "555-9999", res.PhoneNumber)
	assert.Equal(t, []string{facilityA, facilityB}, res.FacilityAccess, "absent facilityAccess keeps the set")

	res, err = svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{FacilityAccess: []string{facilityB}})
	require.NoError(t, err)
	assert.Equal(t, []string{facilityB}, res.FacilityAccess)

	res, err = svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{FacilityAccess: []string{}})
	require.NoError(t, err)
	assert.Empty(t, res.FacilityAccess)

	_, err = svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{FacilityAccess: []string{"Nowhere"}})
	requireKind(t, err, KindValidation)

	_, err = svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{UpdateProfileRequest: UpdateProfileRequest{NPI: "99"}})
	requireKind(t, err, KindValidation)
	assert.Equal(t, "Invalid NPI", MessageOf(err))

	_, err = svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{Password: "brandnew1"})
	require.NoError(t, err)
	auth := newAuth(e, newFakeNotifier())
	_, err = svc.UpdateUser(ctx, caller, u.ID.String(), AdminUpdateUserRequest{FacilityAccess: []string{facilityA}})
	require.NoError(t, err)
	_, err = auth.Login(ctx, LoginRequest{Email: u.Email, Password: "brandnew1", ActiveFacility: facilityA})
	require.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	e := newEnv(t)
	svc := newAdmin(e)
	ctx := context.Background()
	admin := e.seedUser(t, "boss@example.com", model.RoleAdmin, true, facilityA)
	caller := callerOf(admin, facilityA)
	root := e.seedUser(t, superAdmin, model.RoleAdmin, true, facilityA)
	u := e.seedUser(t, "nurse@example.com", model.RoleUser, true, facilityA)

	err := svc.DeleteUser(ctx, caller, root.ID.String())
	requireKind(t, err, KindForbidden)
	assert.Equal(t, "Cannot delete Super Admin account.", MessageOf(err))

	require.NoError(t, svc.DeleteUser(ctx, caller, u.ID.String()))
	_, err = svc.GetUser(ctx, u.ID.String())
	requireKind(t, err, KindNotFound)

	err = svc.DeleteUser(ctx, caller, u.ID.String())
	requireKind(t, err, KindNotFound)

	_, err = e.users.GetByID(ctx, root.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{model.ActionDeleteUser}, e.auditActions(t))
}

func TestListUsers(t *testing.T) {
	e := newEnv(t)
	svc := newAdmin(e)
	e.seedUser(t, "a@example.com", model.RoleUser, true, facilityA)
	e.seedUser(t, "b@example.com", model.RoleUser, false)

	pending := false
	res, total, err := svc.ListUsers(context.Background(), repository.UserFilter{Approved: &pending}, 1, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, res, 1)
	assert.Equal(t, "b@example.com", res[0].Email)
	assert.NotNil(t, res[0].FacilityAccess)
}
