package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const fallbackNumber = "123"

// Config holds the emergency numbers of one country. Country is stored
// trimmed and uppercased and is matched exactly.
type Config struct {
	Country   string    `json:"country"   gorm:"column:country;primaryKey"`
	Police    string    `json:"police"    gorm:"column:police"`
	Transit   string    `json:"transit"   gorm:"column:transit"`
	Emergency string    `json:"emergency" gorm:"column:emergency"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

func (Config) TableName() string {
	return "emergency_configs"
}

type Numbers struct {
	Police    string
	Transit   string
	Emergency string
}

var (
	colombia = Numbers{Police: "123", Transit: "127", Emergency: "123"}
	mexico   = Numbers{Police: "911", Transit: "911", Emergency: "911"}
	generic  = Numbers{Police: fallbackNumber, Transit: fallbackNumber, Emergency: fallbackNumber}
)

// NormalizeCountry is the lookup key for a stored country string.
func NormalizeCountry(country string) string {
	return strings.ToUpper(strings.TrimSpace(country))
}

// Defaults returns the built-in numbers for a normalized country when no
// row exists for it.
func Defaults(country string) Numbers {
	switch country {
	case "CO", "COL", "COLOMBIA", "57", "+57":
		return colombia
	case "MX", "MEX", "MEXICO", "MÉXICO", "52", "+52":
		return mexico
	default:
		return generic
	}
}

func (c Config) numbers() Numbers {
	return Numbers{
		Police:    orFallback(c.Police),
		Transit:   orFallback(c.Transit),
		Emergency: orFallback(c.Emergency),
	}
}

func orFallback(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallbackNumber
	}
	return s
}

// Directory resolves emergency numbers from the emergency_configs table.
type Directory struct {
	DB *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{DB: db}
}

// Lookup returns the configured numbers for country, falling back to Defaults.
func (d *Directory) Lookup(ctx context.Context, country string) (Numbers, error) {
	key := NormalizeCountry(country)
	if key == "" {
		return generic, nil
	}

	var row Config
	err := d.DB.WithContext(ctx).Where("country = ?", key).First(&row).Error
	switch {
	case err == nil:
		return row.numbers(), nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Defaults(key), nil
	default:
		return Numbers{}, fmt.Errorf("lookup emergency config %q: %w", key, err)
	}
}
