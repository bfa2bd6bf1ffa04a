package delivery

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KellyGutierrez/notifycar-sub000/internal/pagination"
)

// Handler exposes the dead-letter log to admins.
type Handler struct {
	DB     *gorm.DB
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	return &Handler{DB: db, logger: logger.Named("delivery")}
}

// RegisterAdminRoutes expects a group already guarded by auth.RequireRole(ADMIN).
func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.GET("/delivery-failures", h.ListFailures)
}

// ListFailures lists dead letters, newest first. ?notificationId= narrows it down.
func (h *Handler) ListFailures(c *gin.Context) {
	p := pagination.ParsePagination(c)
	if c.IsAborted() {
		return
	}

	query := h.DB.WithContext(c.Request.Context()).Model(&Failure{})
	if id := strings.TrimSpace(c.Query("notificationId")); id != "" {
		query = query.Where("notification_id = ?", id)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.dbError(c, err)
		return
	}

	failures := []Failure{}
	if err := query.Order("created_at DESC").Limit(p.Limit).Offset(p.Offset).Find(&failures).Error; err != nil {
		h.dbError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": failures, "pagination": p.Meta(total)})
}

func (h *Handler) dbError(c *gin.Context, err error) {
	h.logger.Error("database error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
}
