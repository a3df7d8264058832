package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"

	"hokenhub/internal/model"
	"hokenhub/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

const (
	bcryptCost = 10
	timeLayout = "2006-01-02T15:04:05Z07:00"
)

var npiPattern = regexp.MustCompile(`^\d{10}$`)

// Caller is the authenticated identity of a request. FacilityAccess is read
// from the store on every request; ActiveFacility comes from the access token.
type Caller struct {
	ID             string
	Email          string
	Role           string
	FacilityAccess []string
	ActiveFacility string
}

func (c Caller) IsAdmin() bool { return c.Role == model.RoleAdmin }

// HasActiveFacility reports whether the session is scoped to a facility the
// caller still holds
func (c Caller) HasActiveFacility() bool {
	return model.ContainsFacility(c.FacilityAccess, c.ActiveFacility)
}

// UserResponse is a user without the password hash
type UserResponse struct {
	ID                string   `json:"id"`
	FirstName         string   `json:"firstName"`
	LastName          string   `json:"lastName"`
	Email             string   `json:"email"`
	PhoneNumber       string   `json:"phoneNumber"`
	Department        string   `json:"department"`
	NPI               string   `json:"npi"`
	Role              string   `json:"role"`
	IsApproved        bool     `json:"isApproved"`
	Status            string   `json:"status"`
	RequestedFacility string   `json:"requestedFacility"`
	FacilityAccess    []string `json:"facilityAccess"`
	CreatedAt         string   `json:"createdAt"`
	UpdatedAt         string   `json:"updatedAt"`
}

func toUserResponse(u *model.User) UserResponse {
	access := []string(u.FacilityAccess)
	if access == nil {
		access = []string{}
	}
	return UserResponse{
		ID:                u.ID.String(),
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		Email:             u.Email,
		PhoneNumber:       u.PhoneNumber,
		Department:        u.Department,
		NPI:               u.NPI,
		Role:              u.Role,
		IsApproved:        u.IsApproved,
		Status:            u.Status,
		RequestedFacility: u.RequestedFacility,
		FacilityAccess:    access,
		CreatedAt:         u.CreatedAt.Format(timeLayout),
		UpdatedAt:         u.UpdatedAt.Format(timeLayout),
	}
}

func validNPI(npi string) bool {
	return npiPattern.MatchString(npi)
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", internalError(err)
	}
	return string(hashed), nil
}

// unknownUserHash is compared against when a login names no stored user so
// both paths pay for one bcrypt comparison
var unknownUserHash = sync.OnceValue(func() []byte {
	hashed, err := bcrypt.GenerateFromPassword([]byte("no such user"), bcryptCost)
	if err != nil {
		panic(err)
	}
	return hashed
})

// checkPassword compares password with the user's hash, or with
// unknownUserHash when user is nil
func checkPassword(user *model.User, password string) bool {
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(unknownUserHash(), []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}

// passwordFingerprint ties a reset token to the hash it was issued against
func passwordFingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// validUUID guards lookups so malformed ids read as not found rather than as store errors
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// auditor writes audit entries inside the caller's transaction
type auditor struct {
	repo repository.AuditRepository
}

func (a auditor) record(ctx context.Context, actor Caller, action, entityID, entityName, facility string, details map[string]interface{}) error {
	entry := &model.AuditLog{
		ActorEmail: actor.Email,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Facility:   facility,
		CreatedAt:  time.Now(),
	}
	if id, err := uuid.Parse(actor.ID); err == nil {
		entry.ActorID = &id
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return internalError(err)
		}
		entry.Details = datatypes.JSON(raw)
	}
	if err := a.repo.Log(ctx, entry); err != nil {
		return internalError(err)
	}
	return nil
}

// detach runs fn after the request returns; failures are logged only
func detach(log *logrus.Logger, what string, timeout time.Duration, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.WithError(err).WithField("task", what).Warn("background task failed")
		}
	}()
}

func trimAll(values ...*string) {
	for _, v := range values {
		*v = strings.TrimSpace(*v)
	}
}
