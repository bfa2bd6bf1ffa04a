// Package notification implements the send flow behind POST /api/notifications:
// cooldown gate, recipient resolution, message composition, persistence and
// hand-off to the delivery worker.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KellyGutierrez/notifycar-sub000/internal/delivery"
	"github.com/KellyGutierrez/notifycar-sub000/internal/metrics"
	"github.com/KellyGutierrez/notifycar-sub000/internal/setting"
	"github.com/KellyGutierrez/notifycar-sub000/internal/template"
	"github.com/KellyGutierrez/notifycar-sub000/internal/user"
	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

var (
	ErrVehicleNotFound = vehicle.ErrNotFound
	ErrInvalidInput    = errors.New("vehicleId and content are required")
)

// SendInput is the body of POST /api/notifications.
type SendInput struct {
	VehicleID     string `json:"vehicleId"     binding:"required,notblank,max=64"`
	Content       string `json:"content"       binding:"required,notblank,max=2000"`
	Type          string `json:"type"          binding:"omitempty,max=32"`
	TemplateID    string `json:"templateId"    binding:"omitempty,max=64"`
	RecipientRole string `json:"recipientRole" binding:"omitempty,max=16"`
}

// Deliverer is the background delivery pool as seen by the dispatcher.
type Deliverer interface {
	Ready(job delivery.Job) bool
	Enqueue(job delivery.Job) bool
}

// Options wires a Service. WebhookURL is the configured default used when
// the system settings carry none.
type Options struct {
	DB         *gorm.DB
	Vehicles   *vehicle.Repository
	Templates  *template.Repository
	Settings   setting.Provider
	Composer   *Composer
	Limiter    Limiter
	Deliverer  Deliverer
	WebhookURL string
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

type Service struct {
	db         *gorm.DB
	vehicles   *vehicle.Repository
	templates  *template.Repository
	settings   setting.Provider
	composer   *Composer
	limiter    Limiter
	deliverer  Deliverer
	webhookURL string
	logger     *zap.Logger
	metrics    *metrics.Metrics

	now func() time.Time
}

func NewService(opts Options) *Service {
	return &Service{
		db:         opts.DB,
		vehicles:   opts.Vehicles,
		templates:  opts.Templates,
		settings:   opts.Settings,
		composer:   opts.Composer,
		limiter:    opts.Limiter,
		deliverer:  opts.Deliverer,
		webhookURL: opts.WebhookURL,
		logger:     opts.Logger.Named("notification"),
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// Send persists a notification for in.VehicleID and queues its delivery.
// It returns a *CooldownError while the vehicle is cooling down and
// ErrVehicleNotFound for an unknown vehicle.
func (s *Service) Send(ctx context.Context, in SendInput) (*Notification, error) {
	vehicleID := strings.TrimSpace(in.VehicleID)
	if vehicleID == "" || strings.TrimSpace(in.Content) == "" {
		return nil, ErrInvalidInput
	}
	now := s.now().UTC()

	if err := s.limiter.Check(ctx, vehicleID, now); err != nil {
		return nil, s.limitError(err)
	}

	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("load vehicle %s: %w", vehicleID, err)
	}

	holder, err := s.loadHolder(ctx, v.UserID)
	if err != nil {
		return nil, err
	}

	tmpl, err := s.loadTemplate(ctx, in.TemplateID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	rcpt := ResolveRecipient(v, holder, in.RecipientRole)

	country := ""
	if holder != nil {
		country = holder.Country
	}
	numbers, err := s.composer.EmergencyNumbers(ctx, country)
	if err != nil {
		return nil, err
	}

	wrapper, err := s.composer.ResolveWrapper(ctx, tmpl, settings)
	if err != nil {
		return nil, err
	}

	message := Compose(wrapper, ComposeInput{
		VehicleType:   v.Type,
		Plate:         v.Plate,
		IsElectric:    v.IsElectric,
		RecipientName: rcpt.Name,
		RawMessage:    in.Content,
		Emergency:     numbers,
	})

	n := &Notification{
		VehicleID: v.ID,
		Content:   message,
		Type:      notificationType(in.Type, tmpl),
		Status:    StatusSent,
		CreatedAt: now,
	}
	if tmpl != nil {
		n.OrganizationID = tmpl.OrganizationID
	}

	err = s.limiter.Guard(ctx, v.ID, now, func(tx *gorm.DB) error {
		return tx.Create(n).Error
	})
	if err != nil {
		return nil, s.limitError(err)
	}
	s.metrics.NotificationsTotal.WithLabelValues(n.Type).Inc()

	s.dispatch(n, v, rcpt, in.Content, settings)
	return n, nil
}

func (s *Service) limitError(err error) error {
	var cd *CooldownError
	if errors.As(err, &cd) {
		s.metrics.NotificationsRateLimited.Inc()
		return err
	}
	return fmt.Errorf("cooldown gate: %w", err)
}

// dispatch hands the composed message to the delivery pool and returns
// immediately. Nothing is queued when the channel lacks a URL or a phone.
func (s *Service) dispatch(n *Notification, v *vehicle.Vehicle, rcpt Recipient, raw string, settings setting.Settings) {
	url := strings.TrimSpace(settings.WebhookURL)
	if url == "" {
		url = s.webhookURL
	}

	job := delivery.Job{
		URL: url,
		Payload: delivery.Payload{
			NotificationID: n.ID,
			Plate:          v.Plate,
			OwnerName:      rcpt.Name,
			PhoneNumber:    delivery.NormalizePhone(rcpt.Phone),
			RawMessage:     raw,
			Message:        n.Content,
			Content:        n.Content,
			Timestamp:      n.CreatedAt.UTC().Format(time.RFC3339),
		},
	}

	if !s.deliverer.Ready(job) {
		s.logger.Info("delivery skipped",
			zap.String("notification_id", n.ID),
			zap.Bool("has_url", job.URL != ""),
			zap.Bool("has_phone", job.Payload.PhoneNumber != ""))
		return
	}
	s.deliverer.Enqueue(job)
}

func (s *Service) loadHolder(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, nil
	}
	var u user.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load account holder %s: %w", userID, err)
	}
	return &u, nil
}

// loadTemplate treats an unknown template id like no template at all.
func (s *Service) loadTemplate(ctx context.Context, id string) (*template.NotificationTemplate, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	t, err := s.templates.FindByID(ctx, id)
	if errors.Is(err, template.ErrNotFound) {
		s.logger.Debug("template not found, composing without it", zap.String("template_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", id, err)
	}
	return t, nil
}

func notificationType(requested string, tmpl *template.NotificationTemplate) string {
	if t := strings.TrimSpace(requested); t != "" {
		return t
	}
	if tmpl != nil && strings.TrimSpace(tmpl.Category) != "" {
		return tmpl.Category
	}
	return DefaultType
}

// History returns the notifications of a vehicle, newest first.
func (s *Service) History(ctx context.Context, vehicleID string, limit, offset int) ([]Notification, int64, error) {
	query := s.db.WithContext(ctx).Model(&Notification{}).Where("vehicle_id = ?", vehicleID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	out := []Notification{}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	return out, total, nil
}
