package service

import (
	"context"
	"testing"

	"hokenhub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilityService(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := callerOf(e.seedUser(t, superAdmin, model.RoleAdmin, true), "")
	svc := NewFacilityService(e.tm, e.facilities, e.audits)

	f, err := svc.Create(ctx, admin, FacilityRequest{Name: "  Mercy General  "})
	require.NoError(t, err)
	assert.Equal(t, "Mercy General", f.Name)
	assert.Equal(t, defaultFacilityColor, f.PrimaryColor)

	_, err = svc.Create(ctx, admin, FacilityRequest{Name: "Mercy General"})
	requireKind(t, err, KindConflict)
	_, err = svc.Create(ctx, admin, FacilityRequest{})
	requireKind(t, err, KindValidation)

	updated, err := svc.Update(ctx, admin, "Mercy General", FacilityRequest{Name: "Renamed", PrimaryColor: "#ff0000"})
	require.NoError(t, err)
	assert.Equal(t, "Mercy General", updated.Name)
	assert.Equal(t, "#ff0000", updated.PrimaryColor)

	_, err = svc.Update(ctx, admin, "Nowhere", FacilityRequest{})
	requireKind(t, err, KindNotFound)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := svc.Get(ctx, "Mercy General")
	require.NoError(t, err)
	assert.Equal(t, "#ff0000", got.PrimaryColor)

	assert.Equal(t, []string{model.ActionUpdateFacility, model.ActionCreateFacility}, e.auditActions(t))
}
