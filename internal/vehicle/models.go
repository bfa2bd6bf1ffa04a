package vehicle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("vehicle not found")

type Type string

const (
	TypeCar        Type = "CAR"
	TypeMotorcycle Type = "MOTORCYCLE"
)

// Model for the vehicles table
type Vehicle struct {
	ID             string    `json:"id"                       gorm:"column:id;primaryKey;type:varchar(36)"`
	Plate          string    `json:"plate"                    gorm:"column:plate;uniqueIndex"`
	Type           Type      `json:"type"                     gorm:"column:type;default:CAR"`
	IsElectric     bool      `json:"isElectric"               gorm:"column:is_electric"`
	OwnerName      string    `json:"ownerName"                gorm:"column:owner_name"`
	OwnerPhone     string    `json:"ownerPhone"               gorm:"column:owner_phone"`
	DriverName     string    `json:"driverName"               gorm:"column:driver_name"`
	DriverPhone    string    `json:"driverPhone"              gorm:"column:driver_phone"`
	UserID         string    `json:"userId"                   gorm:"column:user_id;type:varchar(36);index"`
	OrganizationID *string   `json:"organizationId,omitempty" gorm:"column:organization_id;type:varchar(36)"`
	CreatedAt      time.Time `json:"createdAt"                gorm:"column:created_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	v.Plate = NormalizePlate(v.Plate)
	return nil
}

// PublicVehicle is what anyone looking up a plate gets to see. No contact data.
type PublicVehicle struct {
	ID         string `json:"id"`
	Plate      string `json:"plate"`
	Type       Type   `json:"type"`
	IsElectric bool   `json:"isElectric"`
}

func (v *Vehicle) Public() PublicVehicle {
	return PublicVehicle{ID: v.ID, Plate: v.Plate, Type: v.Type, IsElectric: v.IsElectric}
}

// NormalizePlate makes "abc-123", " ABC 123 " and "ABC123" the same key.
func NormalizePlate(plate string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(plate)))
}

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Vehicle, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) FindByPlate(ctx context.Context, plate string) (*Vehicle, error) {
	return r.first(ctx, "plate = ?", NormalizePlate(plate))
}

func (r *Repository) first(ctx context.Context, query string, arg interface{}) (*Vehicle, error) {
	var v Vehicle
	if err := r.DB.WithContext(ctx).Where(query, arg).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}
