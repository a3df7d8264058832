package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Facility is a hospital tenant; users and plans reference it by name
type Facility struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	PrimaryColor string    `gorm:"type:varchar(20)" json:"primaryColor"`
	LogoURL      string    `gorm:"type:varchar(512)" json:"logoUrl"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (f *Facility) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
