package template

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger.Named("template")}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/templates", h.ListTemplates)
}

// ListTemplates serves ?vehicleType=CAR|MOTORCYCLE&category=...
func (h *Handler) ListTemplates(c *gin.Context) {
	f := Filter{
		VehicleType: strings.ToUpper(strings.TrimSpace(c.Query("vehicleType"))),
		Category:    strings.ToUpper(strings.TrimSpace(c.Query("category"))),
	}
	switch f.VehicleType {
	case "", "CAR", "MOTORCYCLE":
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "vehicleType must be one of: CAR, MOTORCYCLE",
		})
		return
	}

	templates, err := h.repo.ListActive(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list templates failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
		return
	}
	if templates == nil {
		templates = []NotificationTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{"data": templates})
}
