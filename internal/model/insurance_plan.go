package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contract statuses allowed on a facility contract line
const (
	ContractContracted    = "Contracted"
	ContractNotContracted = "Not Contracted"
	ContractMustCall      = "Must Call"
	ContractSeeNotes      = "See Notes"
)

// Address is an embedded mailing address
type Address struct {
	Street  string `json:"street"`
	Street2 string `json:"street2"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
}

// PhoneNumber is a titled phone line, e.g. "Eligibility"
type PhoneNumber struct {
	Title  string `json:"title"`
	Number string `json:"number"`
}

// FacilityContract records whether a facility is contracted for the plan
type FacilityContract struct {
	FacilityName   string `json:"facilityName"`
	ContractStatus string `json:"contractStatus"`
}

// InsurancePlan is one directory entry ("book"). It belongs to exactly one
// facility; FacilityName is writable on create only.
type InsurancePlan struct {
	ID                     uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"id"`
	FacilityName           string                                `gorm:"<-:create;type:varchar(255);not null;uniqueIndex:idx_plan_facility_name,priority:1" json:"facilityName"`
	DescriptiveName        string                                `gorm:"type:varchar(255);not null;uniqueIndex:idx_plan_facility_name,priority:2" json:"descriptiveName"`
	PayerName              string                                `gorm:"type:varchar(255);not null" json:"payerName"`
	PlanName               string                                `gorm:"type:varchar(255);not null;index" json:"planName"`
	PayerCode              int                                   `gorm:"not null;index:idx_plan_codes,priority:1" json:"payerCode"`
	PlanCode               int                                   `gorm:"not null;index:idx_plan_codes,priority:2" json:"planCode"`
	FinancialClass         string                                `gorm:"type:varchar(100);not null" json:"financialClass"`
	Notes                  string                                `gorm:"type:text" json:"notes"`
	AuthorizationNotes     string                                `gorm:"type:text" json:"authorizationNotes"`
	IPAPayerID             string                                `gorm:"type:varchar(100)" json:"ipaPayerId"`
	PayerID                string                                `gorm:"type:varchar(100)" json:"payerId"`
	FacilityAddress        datatypes.JSONType[Address]           `json:"facilityAddress"`
	ProviderAddress        datatypes.JSONType[Address]           `json:"providerAddress"`
	PhoneNumbers           datatypes.JSONSlice[PhoneNumber]      `json:"phoneNumbers"`
	Prefixes               datatypes.JSONSlice[string]           `json:"prefixes"`
	FacilityContracts      datatypes.JSONSlice[FacilityContract] `json:"facilityContracts"`
	Image                  string                                `gorm:"type:varchar(1024)" json:"image"`
	ImagePublicID          string                                `gorm:"type:varchar(512)" json:"imagePublicId"`
	SecondaryImage         string                                `gorm:"type:varchar(1024)" json:"secondaryImage"`
	SecondaryImagePublicID string                                `gorm:"type:varchar(512)" json:"secondaryImagePublicId"`
	CreatedAt              time.Time                             `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt              time.Time                             `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p *InsurancePlan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PhoneNumbers == nil {
		p.PhoneNumbers = datatypes.JSONSlice[PhoneNumber]{}
	}
	if p.Prefixes == nil {
		p.Prefixes = datatypes.JSONSlice[string]{}
	}
	if p.FacilityContracts == nil {
		p.FacilityContracts = datatypes.JSONSlice[FacilityContract]{}
	}
	return nil
}

// ImageKeys returns the blob keys currently attached to the plan
func (p *InsurancePlan) ImageKeys() []string {
	var keys []string
	if p.ImagePublicID != "" {
		keys = append(keys, p.ImagePublicID)
	}
	if p.SecondaryImagePublicID != "" {
		keys = append(keys, p.SecondaryImagePublicID)
	}
	return keys
}
