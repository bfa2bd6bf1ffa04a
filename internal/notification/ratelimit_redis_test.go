package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newRedisLimiter(t *testing.T, db *gorm.DB) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, NewDBLimiter(db, DefaultCooldown), zap.NewNop()), mr
}

func insertAt(at time.Time, vehicleID string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		return tx.Create(&Notification{VehicleID: vehicleID, Status: StatusSent, CreatedAt: at}).Error
	}
}

func TestRedisLimiter_GuardSetsCooldownKey(t *testing.T) {
	env := newTestEnv(t)
	v, _ := seedVehicle(t, env.db)
	limiter, mr := newRedisLimiter(t, env.db)
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, v.ID, baseTime))
	require.NoError(t, limiter.Guard(ctx, v.ID, baseTime, insertAt(baseTime, v.ID)))
	assert.True(t, mr.Exists(cooldownKey(v.ID)))
	assert.Equal(t, DefaultCooldown, mr.TTL(cooldownKey(v.ID)))

	var cd *CooldownError
	require.ErrorAs(t, limiter.Check(ctx, v.ID, baseTime), &cd)
	assert.Equal(t, 10, cd.Minutes())

	called := false
	err := limiter.Guard(ctx, v.ID, baseTime, func(tx *gorm.DB) error {
		called = true
		return nil
	})
	require.ErrorAs(t, err, &cd)
	assert.False(t, called)

	mr.FastForward(DefaultCooldown)
	assert.False(t, mr.Exists(cooldownKey(v.ID)))
	assert.NoError(t, limiter.Check(ctx, v.ID, baseTime.Add(DefaultCooldown)))
}

func TestRedisLimiter_FailedInsertReleasesKey(t *testing.T) {
	env := newTestEnv(t)
	v, _ := seedVehicle(t, env.db)
	limiter, mr := newRedisLimiter(t, env.db)

	boom := errors.New("insert failed")
	err := limiter.Guard(context.Background(), v.ID, baseTime, func(tx *gorm.DB) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(cooldownKey(v.ID)))

	assert.NoError(t, limiter.Guard(context.Background(), v.ID, baseTime, insertAt(baseTime, v.ID)))
}

func TestRedisLimiter_LogsKeyStuckAfterFailedInsert(t *testing.T) {
	env := newTestEnv(t)
	v, _ := seedVehicle(t, env.db)
	limiter, mr := newRedisLimiter(t, env.db)
	core, logs := observer.New(zapcore.WarnLevel)
	limiter.Logger = zap.New(core)

	boom := errors.New("insert failed")
	err := limiter.Guard(context.Background(), v.ID, baseTime, func(tx *gorm.DB) error {
		mr.SetError("ERR redis unavailable")
		return boom
	})
	mr.SetError("")

	assert.ErrorIs(t, err, boom, "the insert error wins over the cleanup error")
	assert.True(t, mr.Exists(cooldownKey(v.ID)))

	entries := logs.FilterMessage("failed to release cooldown key").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, v.ID, entries[0].ContextMap()["vehicle_id"])
}

func TestRedisLimiter_FallsBackToDatabaseWindow(t *testing.T) {
	env := newTestEnv(t)
	v, _ := seedVehicle(t, env.db)
	limiter, mr := newRedisLimiter(t, env.db)
	ctx := context.Background()

	// a row written while redis had no key, e.g. after a flush
	require.NoError(t, insertAt(baseTime, v.ID)(env.db))

	var cd *CooldownError
	require.ErrorAs(t, limiter.Check(ctx, v.ID, baseTime.Add(2*time.Minute)), &cd)
	assert.Equal(t, 8, cd.Minutes())

	err := limiter.Guard(ctx, v.ID, baseTime.Add(2*time.Minute), insertAt(baseTime.Add(2*time.Minute), v.ID))
	require.ErrorAs(t, err, &cd)
	assert.Equal(t, 8*time.Minute, mr.TTL(cooldownKey(v.ID)))
	assert.Equal(t, int64(1), countNotifications(t, env.db))
}

func TestSend_WithRedisLimiter(t *testing.T) {
	env := newTestEnv(t)
	v, _ := seedVehicle(t, env.db)
	limiter, _ := newRedisLimiter(t, env.db)
	env.svc.limiter = limiter

	_, err := env.svc.Send(context.Background(), SendInput{VehicleID: v.ID, Content: "hola"})
	require.NoError(t, err)

	env.now = baseTime.Add(time.Minute)
	_, err = env.svc.Send(context.Background(), SendInput{VehicleID: v.ID, Content: "hola"})
	var cd *CooldownError
	assert.ErrorAs(t, err, &cd)
	assert.Equal(t, int64(1), countNotifications(t, env.db))
}
