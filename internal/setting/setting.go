package setting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultID is the primary key of the only SystemSetting row.
const DefaultID = "default"

// SystemSetting is the global configuration row edited from the admin panel.
type SystemSetting struct {
	ID             string    `json:"id"             gorm:"column:id;primaryKey;type:varchar(36)"`
	MessageWrapper string    `json:"messageWrapper" gorm:"column:message_wrapper;type:text"`
	WebhookURL     string    `json:"webhookUrl"     gorm:"column:webhook_url"`
	UpdatedAt      time.Time `json:"updatedAt"      gorm:"column:updated_at"`
}

func (SystemSetting) TableName() string {
	return "system_settings"
}

// Settings is the resolved view consumed by the notification flow.
type Settings struct {
	MessageWrapper string
	WebhookURL     string
}

// Provider loads the current settings. Callers load once per request.
type Provider interface {
	Load(ctx context.Context) (Settings, error)
}

// StaticProvider always returns the same Settings.
type StaticProvider Settings

func (p StaticProvider) Load(context.Context) (Settings, error) {
	return Settings(p), nil
}

// GormProvider reads the "default" row. A missing row means nothing is configured.
type GormProvider struct {
	DB *gorm.DB
}

func NewGormProvider(db *gorm.DB) *GormProvider {
	return &GormProvider{DB: db}
}

func (p *GormProvider) Load(ctx context.Context) (Settings, error) {
	row, err := p.get(ctx)
	if err != nil {
		return Settings{}, err
	}
	return Settings{MessageWrapper: row.MessageWrapper, WebhookURL: row.WebhookURL}, nil
}

func (p *GormProvider) get(ctx context.Context) (SystemSetting, error) {
	var row SystemSetting
	err := p.DB.WithContext(ctx).Where("id = ?", DefaultID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SystemSetting{ID: DefaultID}, nil
	}
	if err != nil {
		return SystemSetting{}, fmt.Errorf("load system settings: %w", err)
	}
	return row, nil
}

func (p *GormProvider) save(ctx context.Context, row SystemSetting) error {
	row.ID = DefaultID
	row.UpdatedAt = time.Now().UTC()
	return p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_wrapper", "webhook_url", "updated_at"}),
	}).Create(&row).Error
}
