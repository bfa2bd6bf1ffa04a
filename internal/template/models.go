package template

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("template not found")

const (
	CategoryCommon = "COMMON"
	CategoryUrgent = "URGENT"
)

// NotificationTemplate is a canned message offered to whoever looks up a plate.
// An empty VehicleType means the template applies to every vehicle type.
type NotificationTemplate struct {
	ID             string    `json:"id"                       gorm:"column:id;primaryKey;type:varchar(36)"`
	Content        string    `json:"content"                  gorm:"column:content;type:text"`
	Category       string    `json:"category"                 gorm:"column:category;default:COMMON"`
	VehicleType    string    `json:"vehicleType"              gorm:"column:vehicle_type"`
	OrganizationID *string   `json:"organizationId,omitempty" gorm:"column:organization_id;type:varchar(36)"`
	Active         bool      `json:"active"                   gorm:"column:active;default:true"`
	CreatedAt      time.Time `json:"createdAt"                gorm:"column:created_at"`
}

func (NotificationTemplate) TableName() string {
	return "notification_templates"
}

func (t *NotificationTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

type Filter struct {
	VehicleType string
	Category    string
}

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) FindByID(ctx context.Context, id string) (*NotificationTemplate, error) {
	var t NotificationTemplate
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListActive returns active templates matching f. Templates without a vehicle
// type are included for every vehicle type.
func (r *Repository) ListActive(ctx context.Context, f Filter) ([]NotificationTemplate, error) {
	query := r.DB.WithContext(ctx).Where("active = ?", true)
	if f.VehicleType != "" {
		query = query.Where("(vehicle_type = ? OR vehicle_type = '' OR vehicle_type IS NULL)", f.VehicleType)
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}

	var out []NotificationTemplate
	if err := query.Order("category").Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
