package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"hokenhub/internal/metrics"
	"hokenhub/internal/model"
	"hokenhub/internal/repository"
	"hokenhub/internal/token"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	msgUserExists        = "User already exists"
	msgInvalidLogin      = "Invalid email or password"
	msgPendingApproval   = "Account pending approval"
	msgFacilityDenied    = "Access denied to selected facility"
	msgNoRefreshToken    = "No refresh token provided"
	msgBadActiveFacility = "Invalid or missing active facility"
	msgForgotAck         = "If your email exists, a password reset link has been sent."
	msgResetExpired      = "Reset link expired. Please request a new one."
	msgResetFailed       = "Failed to reset password"
	msgInvalidNPI        = "Invalid NPI"
	msgUserNotFound      = "User not found"
	msgEmailInUse        = "Email already in use"
	minPasswordLength    = 6
	mailTimeout          = 30 * time.Second
)

type RegisterRequest struct {
	FirstName         string `json:"firstName" binding:"required"`
	LastName          string `json:"lastName" binding:"required"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=6"`
	RequestedFacility string `json:"requestedFacility"`
	PhoneNumber       string `json:"phoneNumber"`
	Department        string `json:"department"`
	NPI               string `json:"npi"`
}

type LoginRequest struct {
	Email          string `json:"email" binding:"required"`
	Password       string `json:"password" binding:"required"`
	ActiveFacility string `json:"activeFacility"`
}

type RefreshRequest struct {
	ActiveFacility string `json:"activeFacility"`
}

type SetFacilityRequest struct {
	ActiveFacility string `json:"activeFacility" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// UpdateProfileRequest holds self-editable contact fields; empty means unchanged
type UpdateProfileRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email" binding:"omitempty,email"`
	PhoneNumber string `json:"phoneNumber"`
	Department  string `json:"department"`
	NPI         string `json:"npi"`
}

// LoginResponse is the profile plus the new access token. The refresh token
// travels in a cookie only.
type LoginResponse struct {
	UserResponse
	ActiveFacility string `json:"activeFacility"`
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"-"`
}

type AccessTokenResponse struct {
	AccessToken    string `json:"accessToken"`
	ActiveFacility string `json:"activeFacility"`
}

// AuthService drives the registration → approval → session lifecycle
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, refreshToken, activeFacility string) (*AccessTokenResponse, error)
	SetActiveFacility(ctx context.Context, caller Caller, facility string) (*AccessTokenResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	Me(ctx context.Context, callerID string) (*UserResponse, error)
	UpdateMe(ctx context.Context, callerID string, req UpdateProfileRequest) (*UserResponse, error)
}

type authService struct {
	users       repository.UserRepository
	facilities  repository.FacilityRepository
	tokens      *token.Service
	notifier    NotificationService
	frontendURL string
	log         *logrus.Logger
}

func NewAuthService(
	users repository.UserRepository,
	facilities repository.FacilityRepository,
	tokens *token.Service,
	notifier NotificationService,
	frontendURL string,
	log *logrus.Logger,
) AuthService {
	return &authService{
		users:       users,
		facilities:  facilities,
		tokens:      tokens,
		notifier:    notifier,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
	}
}

func subjectOf(u *model.User) token.Subject {
	return token.Subject{
		ID:             u.ID.String(),
		Email:          u.Email,
		Role:           u.Role,
		FacilityAccess: []string(u.FacilityAccess),
	}
}

// tokenError maps a verification failure of the given flow to a domain error
func tokenError(err error, expired, invalid string) error {
	if errors.Is(err, token.ErrTokenExpired) {
		return &Error{Kind: KindTokenExpired, Message: expired, Err: err}
	}
	return &Error{Kind: KindTokenInvalid, Message: invalid, Err: err}
}

func issueError(err error) error {
	if errors.Is(err, token.ErrInvariantViolation) {
		return &Error{Kind: KindInvariantViolation, Message: msgBadActiveFacility, Err: err}
	}
	return internalError(err)
}

func (s *authService) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	trimAll(&req.FirstName, &req.LastName, &req.Email, &req.RequestedFacility, &req.PhoneNumber, &req.Department, &req.NPI)
	req.Email = model.NormalizeEmail(req.Email)

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, newError(KindValidation, msgUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internalError(err)
	}

	if req.PhoneNumber == "" {
		return nil, newError(KindValidation, "Phone number is required")
	}
	if req.RequestedFacility == "" {
		return nil, newError(KindValidation, "Facility is required")
	}
	if _, err := s.facilities.GetByName(ctx, req.RequestedFacility); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(KindValidation, "Invalid facility selection")
		}
		return nil, internalError(err)
	}
	if !validNPI(req.NPI) {
		return nil, newError(KindValidation, msgInvalidNPI)
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Password:          hashed,
		PhoneNumber:       req.PhoneNumber,
		Department:        req.Department,
		NPI:               req.NPI,
		Role:              model.RoleUser,
		RequestedFacility: req.RequestedFacility,
		FacilityAccess:    datatypes.JSONSlice[string]{},
	}
	user.SetApproved(false)

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &Error{Kind: KindConflict, Message: msgUserExists, Err: err}
		}
		return nil, internalError(err)
	}
	metrics.Auth("register", "success")

	registered := *user
	detach(s.log, "notify_registration", mailTimeout, func(ctx context.Context) error {
		return s.notifier.NotifyRegistration(ctx, &registered)
	})

	res := toUserResponse(user)
	return &res, nil
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, internalError(err)
	}
	if !checkPassword(user, req.Password) {
		metrics.Auth("login", "bad_credentials")
		return nil, newError(KindAuth, msgInvalidLogin)
	}

	if !user.IsApproved {
		metrics.Auth("login", "approval_pending")
		return nil, newError(KindApprovalPending, msgPendingApproval)
	}

	activeFacility := strings.TrimSpace(req.ActiveFacility)
	if !user.HasFacility(activeFacility) {
		metrics.Auth("login", "facility_denied")
		return nil, newError(KindFacilityDenied, msgFacilityDenied)
	}

	sub := subjectOf(user)
	accessToken, err := s.tokens.IssueAccessToken(sub, activeFacility)
	if err != nil {
		return nil, issueError(err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(sub)
	if err != nil {
		return nil, internalError(err)
	}
	metrics.Auth("login", "success")

	return &LoginResponse{
		UserResponse:   toUserResponse(user),
		ActiveFacility: activeFacility,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
	}, nil
}

// Refresh mints an access token for the live user record named by the refresh
// token, so revoked facilities and approvals apply. The refresh token is not
// rotated.
func (s *authService) Refresh(ctx context.Context, refreshToken, activeFacility string) (*AccessTokenResponse, error) {
	if refreshToken == "" {
		return nil, newError(KindUnauthenticated, msgNoRefreshToken)
	}

	claims, err := s.tokens.Verify(refreshToken, token.Refresh)
	if err != nil {
		metrics.Auth("refresh", "token_rejected")
		return nil, tokenError(err, "Refresh token expired", "Invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.Auth("refresh", "user_missing")
			return nil, newError(KindUnauthenticated, msgUserNotFound)
		}
		return nil, internalError(err)
	}
	if !user.IsApproved {
		metrics.Auth("refresh", "approval_pending")
		return nil, newError(KindApprovalPending, msgPendingApproval)
	}

	activeFacility = strings.TrimSpace(activeFacility)
	if !user.HasFacility(activeFacility) {
		metrics.Auth("refresh", "facility_denied")
		return nil, newError(KindValidation, msgBadActiveFacility)
	}

	accessToken, err := s.tokens.IssueAccessToken(subjectOf(user), activeFacility)
	if err != nil {
		return nil, issueError(err)
	}
	metrics.Auth("refresh", "success")
	return &AccessTokenResponse{AccessToken: accessToken, ActiveFacility: activeFacility}, nil
}

func (s *authService) SetActiveFacility(ctx context.Context, caller Caller, facility string) (*AccessTokenResponse, error) {
	facility = strings.TrimSpace(facility)
	if !model.ContainsFacility(caller.FacilityAccess, facility) {
		metrics.Auth("set_facility", "facility_denied")
		return nil, newError(KindFacilityDenied, msgFacilityDenied)
	}

	accessToken, err := s.tokens.IssueAccessToken(token.Subject{
		ID:             caller.ID,
		Email:          caller.Email,
		Role:           caller.Role,
		FacilityAccess: caller.FacilityAccess,
	}, facility)
	if err != nil {
		return nil, issueError(err)
	}
	return &AccessTokenResponse{AccessToken: accessToken, ActiveFacility: facility}, nil
}

// ForgotPassword never reveals whether email is registered; mail goes out in the background
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.WithError(err).Error("forgot password lookup failed")
		}
		return nil
	}

	raw, err := s.tokens.IssueResetToken(user.ID.String(), passwordFingerprint(user.Password))
	if err != nil {
		return internalError(err)
	}
	link := s.frontendURL + "/reset-password/" + raw
	to := user.Email
	detach(s.log, "password_reset_email", mailTimeout, func(ctx context.Context) error {
		return s.notifier.SendPasswordReset(ctx, to, link)
	})
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if req.Token == "" || req.Password == "" {
		return newError(KindValidation, "Missing token or password")
	}
	if len(req.Password) < minPasswordLength {
		return newError(KindValidation, "Password must be at least 6 characters")
	}

	claims, err := s.tokens.Verify(req.Token, token.Reset)
	if err != nil {
		return tokenError(err, msgResetExpired, msgResetFailed)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return storeError(err, msgUserNotFound)
	}
	// the fingerprint changes with the hash, so a token works once
	if claims.Fingerprint != passwordFingerprint(user.Password) {
		return newError(KindTokenInvalid, msgResetFailed)
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return err
	}
	user.Password = hashed
	if err := s.users.Update(ctx, user); err != nil {
		return internalError(err)
	}
	metrics.Auth("reset_password", "success")
	return nil
}

func (s *authService) Me(ctx context.Context, callerID string) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, storeError(err, msgUserNotFound)
	}
	res := toUserResponse(user)
	return &res, nil
}

func (s *authService) UpdateMe(ctx context.Context, callerID string, req UpdateProfileRequest) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, storeError(err, msgUserNotFound)
	}

	if err := applyContactFields(ctx, s.users, user, req); err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &Error{Kind: KindConflict, Message: msgEmailInUse, Err: err}
		}
		return nil, internalError(err)
	}
	res := toUserResponse(user)
	return &res, nil
}

// applyContactFields copies the non-empty contact fields of req onto user,
// revalidating NPI and email uniqueness
func applyContactFields(ctx context.Context, users repository.UserRepository, user *model.User, req UpdateProfileRequest) error {
	trimAll(&req.FirstName, &req.LastName, &req.Email, &req.PhoneNumber, &req.Department, &req.NPI)

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.Department != "" {
		user.Department = req.Department
	}
	if req.NPI != "" && req.NPI != user.NPI {
		if !validNPI(req.NPI) {
			return newError(KindValidation, msgInvalidNPI)
		}
		user.NPI = req.NPI
	}
	if email := model.NormalizeEmail(req.Email); email != "" && email != user.Email {
		existing, err := users.GetByEmail(ctx, email)
		switch {
		case err == nil && existing.ID != user.ID:
			return newError(KindConflict, msgEmailInUse)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return internalError(err)
		}
		user.Email = email
	}
	return nil
}
