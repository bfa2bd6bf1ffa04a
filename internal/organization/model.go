package organization

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("organization not found")

type Organization struct {
	ID             string    `json:"id"             gorm:"column:id;primaryKey;type:varchar(36)"`
	Name           string    `json:"name"           gorm:"column:name"`
	MessageWrapper *string   `json:"messageWrapper" gorm:"column:message_wrapper;type:text"`
	Active         bool      `json:"active"         gorm:"column:active;default:true"`
	CreatedAt      time.Time `json:"createdAt"      gorm:"column:created_at"`
}

func (Organization) TableName() string {
	return "organizations"
}

func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// Wrapper returns the override wrapper, or "" when none is set.
func (o *Organization) Wrapper() string {
	if o == nil || o.MessageWrapper == nil {
		return ""
	}
	return *o.MessageWrapper
}

type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Organization, error) {
	var org Organization
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}
