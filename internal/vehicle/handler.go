package vehicle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KellyGutierrez/notifycar-sub000/internal/auth"
)

// Handler holds the dependencies of the vehicle routes
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger.Named("vehicle")}
}

// RegisterRoutes registers the public lookup used before sending a notification.
func (h *Handler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/vehicles/lookup", h.LookupByPlate)
}

// RegisterAdminRoutes expects a group behind AuthMiddleware.
func (h *Handler) RegisterAdminRoutes(router gin.IRoutes) {
	router.GET("/vehicles/:id", h.GetVehicleByID)
}

// LookupByPlate resolves ?plate= to the public view of a vehicle.
func (h *Handler) LookupByPlate(c *gin.Context) {
	plate := strings.TrimSpace(c.Query("plate"))
	if plate == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "plate is required",
		})
		return
	}

	v, err := h.repo.FindByPlate(c.Request.Context(), plate)
	if err != nil {
		h.writeFindError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.Public())
}

// GetVehicleByID returns the full record, contacts included.
// ADMIN sees every vehicle, other roles only vehicles of their organization.
func (h *Handler) GetVehicleByID(c *gin.Context) {
	cu, ok := auth.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	v, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeFindError(c, err)
		return
	}

	if v.UserID != cu.ID && !cu.CanAccessOrganization(v.OrganizationID) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "vehicle belongs to another organization",
		})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) writeFindError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "vehículo no encontrado",
		})
		return
	}
	h.logger.Error("vehicle lookup failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "db_error",
		"message": "unexpected database error",
	})
}
