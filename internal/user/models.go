package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin         Role = "ADMIN"
	RoleCorporate     Role = "CORPORATE"
	RoleInstitutional Role = "INSTITUTIONAL"
	RoleUser          Role = "USER"
)

// User is the account holder behind a vehicle.
type User struct {
	ID             string    `json:"id"                       gorm:"column:id;primaryKey;type:varchar(36)"`
	Email          string    `json:"email"                    gorm:"column:email;uniqueIndex"`
	PasswordHash   string    `json:"-"                        gorm:"column:password_hash"`
	Name           string    `json:"name"                     gorm:"column:name"`
	PhonePrefix    string    `json:"phonePrefix"              gorm:"column:phone_prefix"`
	PhoneNumber    string    `json:"phoneNumber"              gorm:"column:phone_number"`
	Country        string    `json:"country"                  gorm:"column:country"`
	Role           Role      `json:"role"                     gorm:"column:role;default:USER"`
	OrganizationID *string   `json:"organizationId,omitempty" gorm:"column:organization_id;type:varchar(36)"`
	Active         bool      `json:"active"                   gorm:"column:active;default:true"`
	CreatedAt      time.Time `json:"createdAt"                gorm:"column:created_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// FullPhone is prefix and number concatenated, e.g. "+57" + "3001234567".
// A prefix without a number is not a phone.
func (u *User) FullPhone() string {
	number := strings.TrimSpace(u.PhoneNumber)
	if number == "" {
		return ""
	}
	return strings.TrimSpace(u.PhonePrefix) + number
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
