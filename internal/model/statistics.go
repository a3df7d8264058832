package model

import (
	"time"
)

// DirectoryStatistics is the admin dashboard summary of the directory
type DirectoryStatistics struct {
	PendingUsers       int64           `json:"pendingUsers"`
	TotalPlans         int64           `json:"totalPlans"`
	PlansCreated       int64           `json:"plansCreated"`
	PlansByFacility    []FacilityTally `json:"plansByFacility"`
	TimeRangeStartDate time.Time       `json:"timeRangeStartDate"`
	TimeRangeEndDate   time.Time       `json:"timeRangeEndDate"`
}

// FacilityTally is the number of plans one facility owns
type FacilityTally struct {
	FacilityName string `json:"facilityName"`
	Total        int64  `json:"total"`
}
