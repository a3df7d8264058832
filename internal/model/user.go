package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Approval states; Status always mirrors IsApproved
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// User is one staff account of the directory
type User struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	FirstName         string                      `gorm:"type:varchar(100);not null" json:"firstName"`
	LastName          string                      `gorm:"type:varchar(100);not null" json:"lastName"`
	Email             string                      `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password          string                      `gorm:"type:varchar(255);not null" json:"-"`
	PhoneNumber       string                      `gorm:"type:varchar(30);not null" json:"phoneNumber"`
	Department        string                      `gorm:"type:varchar(255)" json:"department"`
	NPI               string                      `gorm:"type:varchar(10);not null" json:"npi"`
	Role              string                      `gorm:"type:varchar(20);not null;index" json:"role"`
	IsApproved        bool                        `gorm:"not null;index" json:"isApproved"`
	Status            string                      `gorm:"type:varchar(20);not null" json:"status"`
	RequestedFacility string                      `gorm:"type:varchar(255)" json:"requestedFacility"`
	FacilityAccess    datatypes.JSONSlice[string] `gorm:"not null" json:"facilityAccess"`
	CreatedAt         time.Time                   `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time                   `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate assigns the primary key and normalizes the email
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.FacilityAccess == nil {
		u.FacilityAccess = datatypes.JSONSlice[string]{}
	}
	return nil
}

// HasFacility reports whether name is one of the user's granted facilities
func (u *User) HasFacility(name string) bool {
	return ContainsFacility(u.FacilityAccess, name)
}

// SetApproved flips approval and keeps Status in sync
func (u *User) SetApproved(approved bool) {
	u.IsApproved = approved
	if approved {
		u.Status = StatusApproved
	} else {
		u.Status = StatusPending
	}
}

// NormalizeEmail lower-cases and trims an address; emails compare case-insensitively
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ContainsFacility reports whether name is an element of set
func ContainsFacility(set []string, name string) bool {
	if name == "" {
		return false
	}
	for _, f := range set {
		if f == name {
			return true
		}
	}
	return false
}

// UniqueFacilities trims names and drops blanks and duplicates, keeping first-seen order
func UniqueFacilities(names ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range names {
		for _, n := range list {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
