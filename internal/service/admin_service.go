package service

import (
	"context"
	"errors"
	"strings"

	"hokenhub/internal/model"
	"hokenhub/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

type ApproveUserRequest struct {
	ApprovedFacilities []string `json:"approvedFacilities"`
}

type GrantFacilityRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Facility string `json:"facility" binding:"required"`
}

// AdminUpdateUserRequest extends the self-service fields. FacilityAccess
// replaces the whole set only when present in the body.
type AdminUpdateUserRequest struct {
	UpdateProfileRequest
	FacilityAccess    []string `json:"facilityAccess"`
	RequestedFacility string   `json:"requestedFacility"`
	Password          string   `json:"password"`
}

type AdminService interface {
	ListUsers(ctx context.Context, filter repository.UserFilter, page, limit int) ([]UserResponse, int64, error)
	GetUser(ctx context.Context, id string) (*UserResponse, error)
	ApproveUser(ctx context.Context, caller Caller, id string, req ApproveUserRequest) (*UserResponse, error)
	GrantFacility(ctx context.Context, caller Caller, req GrantFacilityRequest) (*UserResponse, error)
	MakeAdmin(ctx context.Context, caller Caller, id string) (*UserResponse, error)
	Demote(ctx context.Context, caller Caller, id string) (*UserResponse, error)
	UpdateUser(ctx context.Context, caller Caller, id string, req AdminUpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, caller Caller, id string) error
}

type adminService struct {
	tm         repository.TransactionManager
	users      repository.UserRepository
	facilities repository.FacilityRepository
	audit      auditor
	superAdmin string
	log        *logrus.Logger
}

func NewAdminService(
	tm repository.TransactionManager,
	users repository.UserRepository,
	facilities repository.FacilityRepository,
	audits repository.AuditRepository,
	superAdminEmail string,
	log *logrus.Logger,
) AdminService {
	return &adminService{
		tm:         tm,
		users:      users,
		facilities: facilities,
		audit:      auditor{repo: audits},
		superAdmin: model.NormalizeEmail(superAdminEmail),
		log:        log,
	}
}

func (s *adminService) ListUsers(ctx context.Context, filter repository.UserFilter, page, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.users.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, internalError(err)
	}
	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, toUserResponse(&users[i]))
	}
	return res, total, nil
}

func (s *adminService) GetUser(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res := toUserResponse(user)
	return &res, nil
}

func (s *adminService) load(ctx context.Context, id string) (*model.User, error) {
	if !validUUID(id) {
		return nil, newError(KindNotFound, msgUserNotFound)
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, msgUserNotFound)
	}
	return user, nil
}

// requireFacilities fails with a ValidationError naming any facility that does not exist
func (s *adminService) requireFacilities(ctx context.Context, names []string) error {
	missing, err := s.facilities.Missing(ctx, names)
	if err != nil {
		return internalError(err)
	}
	if len(missing) > 0 {
		return newError(KindValidation, "Unknown facility: "+strings.Join(missing, ", "))
	}
	return nil
}

// mutate loads the user, applies fn and saves it with an audit entry in one transaction
func (s *adminService) mutate(ctx context.Context, caller Caller, id, action string, fn func(txCtx context.Context, u *model.User) (map[string]interface{}, error)) (*UserResponse, error) {
	var res UserResponse
	err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		details, err := fn(txCtx, user)
		if err != nil {
			return err
		}
		if err := s.users.Update(txCtx, user); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return &Error{Kind: KindConflict, Message: msgEmailInUse, Err: err}
			}
			return internalError(err)
		}
		if err := s.audit.record(txCtx, caller, action, user.ID.String(), user.Email, "", details); err != nil {
			return err
		}
		res = toUserResponse(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ApproveUser unions the approved facilities into the user's existing access
func (s *adminService) ApproveUser(ctx context.Context, caller Caller, id string, req ApproveUserRequest) (*UserResponse, error) {
	approved := model.UniqueFacilities(req.ApprovedFacilities)
	if len(approved) == 0 {
		return nil, newError(KindValidation, "Please select at least one facility to approve.")
	}
	if err := s.requireFacilities(ctx, approved); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, id, model.ActionApproveUser, func(_ context.Context, u *model.User) (map[string]interface{}, error) {
		u.FacilityAccess = datatypes.JSONSlice[string](model.UniqueFacilities(u.FacilityAccess, approved))
		u.SetApproved(true)
		return map[string]interface{}{"approvedFacilities": approved, "facilityAccess": u.FacilityAccess}, nil
	})
}

func (s *adminService) GrantFacility(ctx context.Context, caller Caller, req GrantFacilityRequest) (*UserResponse, error) {
	facility := strings.TrimSpace(req.Facility)
	if facility == "" {
		return nil, newError(KindValidation, "Facility is required")
	}
	if err := s.requireFacilities(ctx, []string{facility}); err != nil {
		return nil, err
	}

	return s.mutate(ctx, caller, req.UserID, model.ActionGrantFacility, func(_ context.Context, u *model.User) (map[string]interface{}, error) {
		if !u.HasFacility(facility) {
			u.FacilityAccess = append(u.FacilityAccess, facility)
		}
		u.SetApproved(true)
		return map[string]interface{}{"facility": facility}, nil
	})
}

func (s *adminService) MakeAdmin(ctx context.Context, caller Caller, id string) (*UserResponse, error) {
	return s.mutate(ctx, caller, id, model.ActionPromoteUser, func(_ context.Context, u *model.User) (map[string]interface{}, error) {
		previous := u.Role
		u.Role = model.RoleAdmin
		return map[string]interface{}{"from": previous, "to": u.Role}, nil
	})
}

func (s *adminService) Demote(ctx context.Context, caller Caller, id string) (*UserResponse, error) {
	return s.mutate(ctx, caller, id, model.ActionDemoteUser, func(_ context.Context, u *model.User) (map[string]interface{}, error) {
		if u.Role != model.RoleAdmin {
			return nil, newError(KindValidation, "User is not an admin")
		}
		if u.Email == s.superAdmin {
			return nil, newError(KindForbidden, "Cannot demote Super Admin account.")
		}
		u.Role = model.RoleUser
		return map[string]interface{}{"from": model.RoleAdmin, "to": u.Role}, nil
	})
}

func (s *adminService) UpdateUser(ctx context.Context, caller Caller, id string, req AdminUpdateUserRequest) (*UserResponse, error) {
	var access []string
	if req.FacilityAccess != nil {
		access = model.UniqueFacilities(req.FacilityAccess)
		if err := s.requireFacilities(ctx, access); err != nil {
			return nil, err
		}
	}

	var hashed string
	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			return nil, newError(KindValidation, "Password must be at least 6 characters")
		}
		var err error
		if hashed, err = hashPassword(req.Password); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, caller, id, model.ActionAdminEditUser, func(txCtx context.Context, u *model.User) (map[string]interface{}, error) {
		if err := applyContactFields(txCtx, s.users, u, req.UpdateProfileRequest); err != nil {
			return nil, err
		}
		changed := []string{}
		if req.FacilityAccess != nil {
			u.FacilityAccess = datatypes.JSONSlice[string](access)
			changed = append(changed, "facilityAccess")
		}
		if rf := strings.TrimSpace(req.RequestedFacility); rf != "" {
			u.RequestedFacility = rf
			changed = append(changed, "requestedFacility")
		}
		if hashed != "" {
			u.Password = hashed
			changed = append(changed, "password")
		}
		return map[string]interface{}{"changed": changed, "facilityAccess": u.FacilityAccess}, nil
	})
}

func (s *adminService) DeleteUser(ctx context.Context, caller Caller, id string) error {
	return s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		user, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if user.Email == s.superAdmin {
			return newError(KindForbidden, "Cannot delete Super Admin account.")
		}
		if err := s.users.Delete(txCtx, id); err != nil {
			return storeError(err, msgUserNotFound)
		}
		return s.audit.record(txCtx, caller, model.ActionDeleteUser, id, user.Email, "", nil)
	})
}
