package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KellyGutierrez/notifycar-sub000/internal/auth"
	"github.com/KellyGutierrez/notifycar-sub000/internal/delivery"
	"github.com/KellyGutierrez/notifycar-sub000/internal/emergency"
	"github.com/KellyGutierrez/notifycar-sub000/internal/metrics"
	"github.com/KellyGutierrez/notifycar-sub000/internal/middleware"
	"github.com/KellyGutierrez/notifycar-sub000/internal/notification"
	"github.com/KellyGutierrez/notifycar-sub000/internal/organization"
	"github.com/KellyGutierrez/notifycar-sub000/internal/setting"
	"github.com/KellyGutierrez/notifycar-sub000/internal/template"
	"github.com/KellyGutierrez/notifycar-sub000/internal/user"
	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

type routerDeps struct {
	DB        *gorm.DB
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	JWTSecret []byte
	PublicRPM int
	// TrustedProxies may set X-Forwarded-For. Nil trusts no one.
	TrustedProxies []string
	Notifications  *notification.Service
}

func newRouter(d routerDeps) (*gin.Engine, error) {
	router := gin.New()
	// ClientIP feeds the public throttle; only configured proxies may override it
	if err := router.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(middleware.Recovery(d.Logger), middleware.RequestLogger(d.Logger), middleware.CORSMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	vehicles := vehicle.NewRepository(d.DB)
	settings := setting.NewGormProvider(d.DB)

	authH := auth.NewHandler(d.DB, d.JWTSecret, d.Logger)
	vehicleH := vehicle.NewHandler(vehicles, d.Logger)
	templateH := template.NewHandler(template.NewRepository(d.DB), d.Logger)
	notificationH := notification.NewHandler(d.Notifications, vehicles, d.Logger)
	userH := user.NewHandler(d.DB, d.Logger)
	orgH := organization.NewHandler(organization.NewRepository(d.DB), d.Logger)
	settingH := setting.NewHandler(settings, d.Logger)
	emergencyH := emergency.NewHandler(emergency.NewDirectory(d.DB), d.Logger)
	deliveryH := delivery.NewHandler(d.DB, d.Logger)

	authH.RegisterRoutes(router)

	// public: used by whoever is standing next to the vehicle
	api := router.Group("/api", middleware.ClientRateLimit(d.PublicRPM))
	vehicleH.RegisterRoutes(api)
	templateH.RegisterRoutes(api)
	notificationH.RegisterRoutes(api)

	authenticated := router.Group("/api/admin", auth.AuthMiddleware(d.JWTSecret))
	vehicleH.RegisterAdminRoutes(authenticated)

	history := router.Group("/api/admin", auth.AuthMiddleware(d.JWTSecret), auth.RequireRole(user.RoleAdmin, user.RoleCorporate))
	notificationH.RegisterAdminRoutes(history)

	admin := router.Group("/api/admin", auth.AuthMiddleware(d.JWTSecret), auth.RequireRole(user.RoleAdmin))
	userH.RegisterAdminRoutes(admin)
	orgH.RegisterAdminRoutes(admin)
	settingH.RegisterAdminRoutes(admin)
	emergencyH.RegisterAdminRoutes(admin)
	deliveryH.RegisterAdminRoutes(admin)

	return router, nil
}
