package notification

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

const DefaultCooldown = 10 * time.Minute

// CooldownError means the vehicle was notified less than one window ago.
type CooldownError struct {
	Remaining time.Duration
}

// Minutes is the remaining wait rounded up, never below 1.
func (e *CooldownError) Minutes() int {
	m := int(math.Ceil(e.Remaining.Minutes()))
	if m < 1 {
		return 1
	}
	return m
}

func (e *CooldownError) Error() string {
	unit := "minutos"
	if e.Minutes() == 1 {
		unit = "minuto"
	}
	return fmt.Sprintf("Debes esperar %d %s antes de enviar otra notificación a este vehículo", e.Minutes(), unit)
}

// Limiter enforces at most one notification per vehicle per window.
type Limiter interface {
	// Check is the early, read-only gate.
	Check(ctx context.Context, vehicleID string, now time.Time) error
	// Guard re-checks and runs insert atomically with that check.
	Guard(ctx context.Context, vehicleID string, now time.Time, insert func(tx *gorm.DB) error) error
}

// DBLimiter looks at the notifications table. Guard takes a row lock on the
// vehicle so two sends for the same vehicle cannot both pass the check.
type DBLimiter struct {
	DB     *gorm.DB
	Window time.Duration
}

func NewDBLimiter(db *gorm.DB, window time.Duration) *DBLimiter {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &DBLimiter{DB: db, Window: window}
}

func (l *DBLimiter) Check(ctx context.Context, vehicleID string, now time.Time) error {
	return l.check(l.DB.WithContext(ctx), vehicleID, now)
}

func (l *DBLimiter) Guard(ctx context.Context, vehicleID string, now time.Time, insert func(tx *gorm.DB) error) error {
	return l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked vehicle.Vehicle
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", vehicleID).
			First(&locked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return vehicle.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock vehicle: %w", err)
		}

		if err := l.check(tx, vehicleID, now); err != nil {
			return err
		}
		return insert(tx)
	})
}

// check rejects when a notification exists with created_at > now - window,
// so a row at T blocks [T, T+window) and T+window itself is allowed.
func (l *DBLimiter) check(db *gorm.DB, vehicleID string, now time.Time) error {
	var last Notification
	res := db.Select("id", "created_at").
		Where("vehicle_id = ? AND created_at > ?", vehicleID, now.UTC().Add(-l.Window)).
		Order("created_at DESC").
		Limit(1).
		Find(&last)
	if res.Error != nil {
		return fmt.Errorf("cooldown query: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return &CooldownError{Remaining: last.CreatedAt.Add(l.Window).Sub(now)}
}

const (
	cooldownKeyPrefix  = "notifycar:cooldown:"
	cooldownKeyCleanup = 2 * time.Second
)

// RedisLimiter keeps a per-vehicle key with the window as TTL in front of
// the database limiter, so API instances agree on the cooldown without
// hitting the notifications table on every rejected send.
type RedisLimiter struct {
	Client redis.Cmdable
	Next   *DBLimiter
	Logger *zap.Logger
}

func NewRedisLimiter(client redis.Cmdable, next *DBLimiter, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLimiter{Client: client, Next: next, Logger: logger.Named("cooldown")}
}

func cooldownKey(vehicleID string) string {
	return cooldownKeyPrefix + vehicleID
}

func (l *RedisLimiter) Check(ctx context.Context, vehicleID string, now time.Time) error {
	ttl, err := l.Client.PTTL(ctx, cooldownKey(vehicleID)).Result()
	if err != nil {
		return fmt.Errorf("redis pttl: %w", err)
	}
	if ttl > 0 {
		return &CooldownError{Remaining: ttl}
	}
	return l.Next.Check(ctx, vehicleID, now)
}

func (l *RedisLimiter) Guard(ctx context.Context, vehicleID string, now time.Time, insert func(tx *gorm.DB) error) error {
	key := cooldownKey(vehicleID)

	ok, err := l.Client.SetNX(ctx, key, now.UTC().Format(time.RFC3339Nano), l.Next.Window).Result()
	if err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		ttl, err := l.Client.PTTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis pttl: %w", err)
		}
		return &CooldownError{Remaining: ttl}
	}

	err = l.Next.Guard(ctx, vehicleID, now, insert)
	if err == nil {
		return nil
	}

	// keep the key only as long as the database says the vehicle is cooling down
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cooldownKeyCleanup)
	defer cancel()

	var cd *CooldownError
	if errors.As(err, &cd) {
		if perr := l.Client.PExpire(cleanupCtx, key, cd.Remaining).Err(); perr != nil {
			l.Logger.Warn("failed to shorten cooldown key",
				zap.String("vehicle_id", vehicleID),
				zap.Duration("remaining", cd.Remaining),
				zap.Error(perr),
			)
		}
		return err
	}

	if derr := l.Client.Del(cleanupCtx, key).Err(); derr != nil {
		// the key outlives the failed send and blocks the vehicle until it expires
		l.Logger.Error("failed to release cooldown key",
			zap.String("vehicle_id", vehicleID),
			zap.Duration("ttl", l.Next.Window),
			zap.NamedError("cause", err),
			zap.Error(derr),
		)
	}
	return err
}
