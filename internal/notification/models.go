package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

// Only StatusSent is produced today: delivery happens after the row is
// written and its outcome lands in delivery_failures, not here. PENDING and
// FAILED stay valid so the column keeps accepting them.
const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

const DefaultType = "COMMON"

// Model for the notifications table
type Notification struct {
	ID             string    `json:"id"                       gorm:"column:id;primaryKey;type:varchar(36)"`
	VehicleID      string    `json:"vehicleId"                gorm:"column:vehicle_id;type:varchar(36);index:idx_notifications_vehicle_created,priority:1"`
	Content        string    `json:"content"                  gorm:"column:content;type:text"`
	Type           string    `json:"type"                     gorm:"column:type"`
	Status         Status    `json:"status"                   gorm:"column:status"`
	CreatedAt      time.Time `json:"createdAt"                gorm:"column:created_at;index:idx_notifications_vehicle_created,priority:2"`
	OrganizationID *string   `json:"organizationId,omitempty" gorm:"column:organization_id;type:varchar(36)"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
