package organization

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KellyGutierrez/notifycar-sub000/internal/pagination"
)

type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger.Named("organization")}
}

// RegisterAdminRoutes expects a group already guarded by auth.RequireRole(ADMIN).
func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.GET("/organizations", h.ListOrganizations)
	r.GET("/organizations/:id", h.GetOrganizationByID)
	r.PUT("/organizations/:id/message-wrapper", h.UpdateMessageWrapper)
}

type UpdateWrapperRequest struct {
	// empty string clears the override so the global wrapper applies
	MessageWrapper *string `json:"messageWrapper" binding:"required"`
}

func (h *Handler) ListOrganizations(c *gin.Context) {
	p := pagination.ParsePagination(c)
	if c.IsAborted() {
		return
	}

	var orgs []Organization
	var total int64

	query := h.repo.DB.WithContext(c.Request.Context()).Model(&Organization{})
	if err := query.Count(&total).Error; err != nil {
		h.dbError(c, err)
		return
	}
	if err := query.Order("name").Limit(p.Limit).Offset(p.Offset).Find(&orgs).Error; err != nil {
		h.dbError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orgs, "pagination": p.Meta(total)})
}

func (h *Handler) GetOrganizationByID(c *gin.Context) {
	org, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		h.dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// UpdateMessageWrapper sets or clears the organization's wrapper override.
func (h *Handler) UpdateMessageWrapper(c *gin.Context) {
	var req UpdateWrapperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": "messageWrapper is required"})
		return
	}

	org, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "organization not found"})
			return
		}
		h.dbError(c, err)
		return
	}

	if *req.MessageWrapper == "" {
		org.MessageWrapper = nil
	} else {
		org.MessageWrapper = req.MessageWrapper
	}

	if err := h.repo.DB.WithContext(c.Request.Context()).
		Model(org).Update("message_wrapper", org.MessageWrapper).Error; err != nil {
		h.dbError(c, err)
		return
	}

	h.logger.Info("message wrapper updated",
		zap.String("organization_id", org.ID),
		zap.Bool("cleared", org.MessageWrapper == nil),
	)
	c.JSON(http.StatusOK, org)
}

func (h *Handler) dbError(c *gin.Context, err error) {
	h.logger.Error("database error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
}
