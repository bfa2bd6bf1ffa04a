package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/KellyGutierrez/notifycar-sub000/internal/config"
	"github.com/KellyGutierrez/notifycar-sub000/internal/delivery"
	"github.com/KellyGutierrez/notifycar-sub000/internal/emergency"
	"github.com/KellyGutierrez/notifycar-sub000/internal/logger"
	"github.com/KellyGutierrez/notifycar-sub000/internal/metrics"
	"github.com/KellyGutierrez/notifycar-sub000/internal/notification"
	"github.com/KellyGutierrez/notifycar-sub000/internal/organization"
	"github.com/KellyGutierrez/notifycar-sub000/internal/setting"
	"github.com/KellyGutierrez/notifycar-sub000/internal/template"
	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := migrateUp(cfg.Migrations.Path, cfg.Database.URL, log); err != nil {
		return err
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	log.Info("database connection opened")

	m := metrics.New()

	worker := delivery.NewWorker(newSender(cfg), db, log, m, delivery.Options{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
		Timeout:   cfg.Webhook.Timeout(),
	})

	limiter, closeLimiter, err := newLimiter(cfg, db, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	svc := notification.NewService(notification.Options{
		DB:         db,
		Vehicles:   vehicle.NewRepository(db),
		Templates:  template.NewRepository(db),
		Settings:   setting.NewGormProvider(db),
		Composer:   notification.NewComposer(organization.NewRepository(db), emergency.NewDirectory(db)),
		Limiter:    limiter,
		Deliverer:  worker,
		WebhookURL: cfg.Webhook.URL,
		Logger:     log,
		Metrics:    m,
	})

	router, err := newRouter(routerDeps{
		DB:             db,
		Logger:         log,
		Metrics:        m,
		JWTSecret:      []byte(cfg.JWT.Secret),
		PublicRPM:      cfg.RateLimit.PerMinute,
		TrustedProxies: cfg.Server.TrustedProxies,
		Notifications:  svc,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerCtx, stopWorker := context.WithCancel(context.Background())
	worker.Start(workerCtx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("channel", worker.Channel()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err = <-serveErr:
		log.Error("http server failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("http server shutdown", zap.Error(shutdownErr))
	}

	// stop accepting work first, then let queued deliveries finish
	stopWorker()
	worker.Close()

	if sqlDB, dbErr := db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}

func newSender(cfg *config.Config) delivery.Sender {
	if cfg.Delivery.Channel == config.ChannelTwilio {
		return delivery.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From, cfg.Webhook.Timeout())
	}
	return delivery.NewWebhookSender(cfg.Webhook.Timeout())
}

// newLimiter returns the database limiter, fronted by Redis when REDIS_URL is set.
func newLimiter(cfg *config.Config, db *gorm.DB, log *zap.Logger) (notification.Limiter, func(), error) {
	dbLimiter := notification.NewDBLimiter(db, cfg.Cooldown.Window())
	if cfg.Redis.URL == "" {
		return dbLimiter, func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info("cooldown gate backed by redis", zap.String("addr", opts.Addr))

	return notification.NewRedisLimiter(client, dbLimiter, log), func() { _ = client.Close() }, nil
}
