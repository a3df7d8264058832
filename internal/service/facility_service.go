package service

import (
	"context"
	"errors"
	"strings"

	"hokenhub/internal/model"
	"hokenhub/internal/repository"
)

const defaultFacilityColor = "#007BFF"

type FacilityRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	PrimaryColor string `json:"primaryColor"`
	LogoURL      string `json:"logoUrl"`
}

type FacilityService interface {
	List(ctx context.Context) ([]model.Facility, error)
	Get(ctx context.Context, name string) (*model.Facility, error)
	Create(ctx context.Context, caller Caller, req FacilityRequest) (*model.Facility, error)
	// Update edits display metadata; the name is the facility's identity and stays fixed
	Update(ctx context.Context, caller Caller, name string, req FacilityRequest) (*model.Facility, error)
}

type facilityService struct {
	tm         repository.TransactionManager
	facilities repository.FacilityRepository
	audit      auditor
}

func NewFacilityService(tm repository.TransactionManager, facilities repository.FacilityRepository, audits repository.AuditRepository) FacilityService {
	return &facilityService{tm: tm, facilities: facilities, audit: auditor{repo: audits}}
}

func (s *facilityService) List(ctx context.Context) ([]model.Facility, error) {
	facilities, err := s.facilities.List(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return facilities, nil
}

func (s *facilityService) Get(ctx context.Context, name string) (*model.Facility, error) {
	f, err := s.facilities.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, storeError(err, "Facility not found")
	}
	return f, nil
}

func (s *facilityService) Create(ctx context.Context, caller Caller, req FacilityRequest) (*model.Facility, error) {
	trimAll(&req.Name, &req.Description, &req.PrimaryColor, &req.LogoURL)
	if req.Name == "" {
		return nil, newError(KindValidation, "Facility name is required")
	}
	if req.PrimaryColor == "" {
		req.PrimaryColor = defaultFacilityColor
	}

	f := &model.Facility{
		Name:         req.Name,
		Description:  req.Description,
		PrimaryColor: req.PrimaryColor,
		LogoURL:      req.LogoURL,
	}
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.facilities.Create(txCtx, f); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &Error{Kind: KindConflict, Message: "Facility already exists", Err: err}
			}
			return internalError(err)
		}
		return s.audit.record(txCtx, caller, model.ActionCreateFacility, f.ID.String(), f.Name, f.Name, nil)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *facilityService) Update(ctx context.Context, caller Caller, name string, req FacilityRequest) (*model.Facility, error) {
	var f *model.Facility
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if f, err = s.facilities.GetByName(txCtx, strings.TrimSpace(name)); err != nil {
			return storeError(err, "Facility not found")
		}
		trimAll(&req.Description, &req.PrimaryColor, &req.LogoURL)
		if req.Description != "" {
			f.Description = req.Description
		}
		if req.PrimaryColor != "" {
			f.PrimaryColor = req.PrimaryColor
		}
		if req.LogoURL != "" {
			f.LogoURL = req.LogoURL
		}
		if err := s.facilities.Update(txCtx, f); err != nil {
			return internalError(err)
		}
		return s.audit.record(txCtx, caller, model.ActionUpdateFacility, f.ID.String(), f.Name, f.Name, nil)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
