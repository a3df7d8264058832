package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionApproveUser    = "APPROVE_USER"
	ActionGrantFacility  = "GRANT_FACILITY"
	ActionPromoteUser    = "PROMOTE_USER"
	ActionDemoteUser     = "DEMOTE_USER"
	ActionAdminEditUser  = "ADMIN_EDIT_USER"
	ActionDeleteUser     = "DELETE_USER"
	ActionCreatePlan     = "CREATE_PLAN"
	ActionUpdatePlan     = "UPDATE_PLAN"
	ActionDeletePlan     = "DELETE_PLAN"
	ActionCreateFacility = "CREATE_FACILITY"
	ActionUpdateFacility = "UPDATE_FACILITY"
	ActionBroadcastEmail = "BROADCAST_EMAIL"
)

// AuditLog tracks who changed what, and when
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    *uuid.UUID     `gorm:"type:uuid;index" json:"actorId"` // nil for system jobs
	ActorEmail string         `gorm:"type:varchar(255)" json:"actorEmail"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(64);index" json:"entityId"`
	EntityName string         `gorm:"type:varchar(255)" json:"entityName,omitempty"`
	Facility   string         `gorm:"type:varchar(255);index" json:"facility,omitempty"`
	Details    datatypes.JSON `json:"details"`
	CreatedAt  time.Time      `gorm:"index" json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
