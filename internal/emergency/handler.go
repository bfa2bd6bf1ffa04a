package emergency

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

type Handler struct {
	dir    *Directory
	logger *zap.Logger
}

func NewHandler(dir *Directory, logger *zap.Logger) *Handler {
	return &Handler{dir: dir, logger: logger.Named("emergency")}
}

// RegisterAdminRoutes expects a group already guarded by auth.RequireRole(ADMIN).
func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.GET("/emergency-configs", h.ListConfigs)
	r.PUT("/emergency-configs/:country", h.UpsertConfig)
	r.DELETE("/emergency-configs/:country", h.DeleteConfig)
}

type UpsertConfigRequest struct {
	Police    string `json:"police"    binding:"required,max=20"`
	Transit   string `json:"transit"   binding:"required,max=20"`
	Emergency string `json:"emergency" binding:"required,max=20"`
}

func (h *Handler) ListConfigs(c *gin.Context) {
	var rows []Config
	if err := h.dir.DB.WithContext(c.Request.Context()).Order("country").Find(&rows).Error; err != nil {
		h.dbError(c, err)
		return
	}
	if rows == nil {
		rows = []Config{}
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h *Handler) UpsertConfig(c *gin.Context) {
	country := NormalizeCountry(c.Param("country"))
	if country == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "country is required"})
		return
	}

	var req UpsertConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "police, transit and emergency are required",
		})
		return
	}

	row := Config{
		Country:   country,
		Police:    req.Police,
		Transit:   req.Transit,
		Emergency: req.Emergency,
		UpdatedAt: time.Now().UTC(),
	}
	err := h.dir.DB.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "country"}},
		DoUpdates: clause.AssignmentColumns([]string{"police", "transit", "emergency", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		h.dbError(c, err)
		return
	}

	h.logger.Info("emergency config saved", zap.String("country", country))
	c.JSON(http.StatusOK, row)
}

func (h *Handler) DeleteConfig(c *gin.Context) {
	country := NormalizeCountry(c.Param("country"))
	res := h.dir.DB.WithContext(c.Request.Context()).Where("country = ?", country).Delete(&Config{})
	if res.Error != nil {
		h.dbError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "no config for country"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) dbError(c *gin.Context, err error) {
	h.logger.Error("database error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
}
