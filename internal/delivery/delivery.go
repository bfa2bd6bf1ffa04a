// Package delivery relays composed notifications to the outbound channel
// (a WhatsApp automation webhook or Twilio) from a background worker pool.
// Each job gets exactly one attempt; failures end up in delivery_failures.
package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Payload is the JSON body POSTed to the webhook.
type Payload struct {
	NotificationID string `json:"notificationId"`
	Plate          string `json:"plate"`
	OwnerName      string `json:"ownerName"`
	PhoneNumber    string `json:"phoneNumber"`
	RawMessage     string `json:"raw_message"`
	Message        string `json:"message"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
}

// Job is one outbound delivery. URL is only used by the webhook channel.
type Job struct {
	URL     string
	Payload Payload
}

// Sender delivers a single job over one channel.
type Sender interface {
	Name() string
	// Ready reports whether the job carries what this channel needs.
	Ready(job Job) bool
	Deliver(ctx context.Context, job Job) error
}

// NormalizePhone strips "+" and whitespace: "+57 300 111 2222" -> "573001112222".
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r == '+' || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			return -1
		}
		return r
	}, phone)
}

const (
	ReasonQueueFull     = "queue_full"
	ReasonDeliveryError = "delivery_error"
)

// Failure is a dead-letter row for a delivery that did not go through.
type Failure struct {
	ID             string         `json:"id"             gorm:"column:id;primaryKey;type:varchar(36)"`
	NotificationID string         `json:"notificationId" gorm:"column:notification_id;type:varchar(36);index"`
	Channel        string         `json:"channel"        gorm:"column:channel"`
	URL            string         `json:"url"            gorm:"column:url"`
	Payload        datatypes.JSON `json:"payload"        gorm:"column:payload"`
	Reason         string         `json:"reason"         gorm:"column:reason"`
	Error          string         `json:"error"          gorm:"column:error;type:text"`
	CreatedAt      time.Time      `json:"createdAt"      gorm:"column:created_at;index"`
}

func (Failure) TableName() string {
	return "delivery_failures"
}

func (f *Failure) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
