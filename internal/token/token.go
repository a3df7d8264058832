package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind tells which secret and lifetime a token was minted with
type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
	Reset   Kind = "reset"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
	ResetTTL   = 15 * time.Minute
)

var (
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenExpired       = errors.New("token expired")
	ErrInvariantViolation = errors.New("active facility is not in facility access")
)

// Subject is the identity a token is minted for
type Subject struct {
	ID             string
	Email          string
	Role           string
	FacilityAccess []string
}

// Claims is the payload of every token kind. Refresh tokens leave
// ActiveFacility empty; reset tokens carry only UserID and Fingerprint.
type Claims struct {
	Type           Kind     `json:"typ"`
	UserID         string   `json:"id"`
	Email          string   `json:"email,omitempty"`
	Role           string   `json:"role,omitempty"`
	ActiveFacility string   `json:"activeFacility,omitempty"`
	FacilityAccess []string `json:"facilityAccess,omitempty"`
	Fingerprint    string   `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

// HasFacility reports whether name is in the facilityAccess claim
func (c *Claims) HasFacility(name string) bool {
	if name == "" {
		return false
	}
	for _, f := range c.FacilityAccess {
		if f == name {
			return true
		}
	}
	return false
}

// Service signs and verifies HS256 tokens
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	resetTTL      time.Duration
	now           func() time.Time
}

type Option func(*Service)

// WithTTLs overrides the token lifetimes
func WithTTLs(access, refresh, reset time.Duration) Option {
	return func(s *Service) {
		s.accessTTL, s.refreshTTL, s.resetTTL = access, refresh, reset
	}
}

// WithClock replaces time.Now for issuance and verification
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(accessSecret, refreshSecret string, opts ...Option) *Service {
	s := &Service{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     AccessTTL,
		refreshTTL:    RefreshTTL,
		resetTTL:      ResetTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueAccessToken mints a token scoped to activeFacility, which must be one of sub's facilities
func (s *Service) IssueAccessToken(sub Subject, activeFacility string) (string, error) {
	if !contains(sub.FacilityAccess, activeFacility) {
		return "", ErrInvariantViolation
	}
	return s.sign(Claims{
		Type:           Access,
		UserID:         sub.ID,
		Email:          sub.Email,
		Role:           sub.Role,
		ActiveFacility: activeFacility,
		FacilityAccess: sub.FacilityAccess,
	}, s.accessTTL, s.accessSecret)
}

// IssueRefreshToken mints a facility-agnostic refresh token
func (s *Service) IssueRefreshToken(sub Subject) (string, error) {
	return s.sign(Claims{
		Type:           Refresh,
		UserID:         sub.ID,
		Email:          sub.Email,
		Role:           sub.Role,
		FacilityAccess: sub.FacilityAccess,
	}, s.refreshTTL, s.refreshSecret)
}

// IssueResetToken mints a password reset token. fingerprint is derived from the
// current password hash so the token stops verifying once the password changes.
func (s *Service) IssueResetToken(userID, fingerprint string) (string, error) {
	return s.sign(Claims{
		Type:        Reset,
		UserID:      userID,
		Fingerprint: fingerprint,
	}, s.resetTTL, s.accessSecret)
}

// Verify parses raw as a token of the given kind. Expired tokens yield
// ErrTokenExpired; every other failure yields ErrTokenInvalid.
func (s *Service) Verify(raw string, kind Kind) (*Claims, error) {
	secret := s.accessSecret
	if kind == Refresh {
		secret = s.refreshSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Type != kind || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *Service) sign(claims Claims, ttl time.Duration, secret []byte) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}

func contains(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
