package setting

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	provider *GormProvider
	logger   *zap.Logger
}

func NewHandler(provider *GormProvider, logger *zap.Logger) *Handler {
	return &Handler{provider: provider, logger: logger.Named("setting")}
}

// RegisterAdminRoutes expects a group already guarded by auth.RequireRole(ADMIN).
func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.GET("/settings", h.GetSettings)
	r.PUT("/settings", h.UpdateSettings)
}

// UpdateSettingsRequest leaves a field untouched when it is omitted.
type UpdateSettingsRequest struct {
	MessageWrapper *string `json:"messageWrapper"`
	WebhookURL     *string `json:"webhookUrl"`
}

func (h *Handler) GetSettings(c *gin.Context) {
	row, err := h.provider.get(c.Request.Context())
	if err != nil {
		h.logger.Error("load settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "invalid JSON body"})
		return
	}

	ctx := c.Request.Context()
	row, err := h.provider.get(ctx)
	if err != nil {
		h.logger.Error("load settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
		return
	}

	if req.MessageWrapper != nil {
		row.MessageWrapper = *req.MessageWrapper
	}
	if req.WebhookURL != nil {
		webhookURL := strings.TrimSpace(*req.WebhookURL)
		if webhookURL != "" && !isAbsoluteHTTPURL(webhookURL) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "bad_request",
				"message": "webhookUrl must be an absolute http(s) URL",
			})
			return
		}
		row.WebhookURL = webhookURL
	}

	if err := h.provider.save(ctx, row); err != nil {
		h.logger.Error("save settings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
		return
	}

	h.logger.Info("system settings updated",
		zap.Bool("wrapper_set", row.MessageWrapper != ""),
		zap.Bool("webhook_set", row.WebhookURL != ""),
	)
	c.JSON(http.StatusOK, row)
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
