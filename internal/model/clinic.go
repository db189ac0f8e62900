package model

import (
	"github.com/google/uuid"
)

// Clinic carries the scheduling-relevant settings of a tenant clinic.
// OpenMinute/CloseMinute are minutes since midnight in clinic-local
// wall-clock time.
type Clinic struct {
	Base
	OrganizationID uuid.UUID `db:"organization_id" json:"organization_id"`
	Name           string    `db:"name" json:"name"`
	Timezone       string    `db:"timezone" json:"timezone"`
	OpenMinute     int       `db:"open_minute" json:"open_minute"`
	CloseMinute    int       `db:"close_minute" json:"close_minute"`
	DailyCapacity  int       `db:"daily_capacity" json:"daily_capacity"`
	Status         string    `db:"status" json:"status"`
}
