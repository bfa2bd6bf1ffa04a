package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"go.uber.org/zap"

	"github.com/KellyGutierrez/notifycar-sub000/internal/auth"
	"github.com/KellyGutierrez/notifycar-sub000/internal/pagination"
	"github.com/KellyGutierrez/notifycar-sub000/internal/user"
	"github.com/KellyGutierrez/notifycar-sub000/internal/vehicle"
)

var registerOnce sync.Once

// registerValidators adds notblank to gin's validator and makes field
// errors report json names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

type Handler struct {
	service  *Service
	vehicles *vehicle.Repository
	logger   *zap.Logger
}

func NewHandler(service *Service, vehicles *vehicle.Repository, logger *zap.Logger) *Handler {
	registerValidators()
	return &Handler{service: service, vehicles: vehicles, logger: logger.Named("notification")}
}

// RegisterRoutes registers the public send endpoint.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/notifications", h.SendNotification)
}

// RegisterAdminRoutes expects a group behind AuthMiddleware and
// RequireRole(ADMIN, CORPORATE).
func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.GET("/vehicles/:id/notifications", h.ListVehicleNotifications)
}

// SendNotification handles POST /api/notifications.
func (h *Handler) SendNotification(c *gin.Context) {
	var in SendInput
	if err := decodeStrict(c.Request, &in); err != nil {
		c.JSON(http.StatusBadRequest, badRequest(err))
		return
	}

	n, err := h.service.Send(c.Request.Context(), in)
	if err != nil {
		var cd *CooldownError
		switch {
		case errors.As(err, &cd):
			c.String(http.StatusTooManyRequests, cd.Error())
		case errors.Is(err, ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		case errors.Is(err, ErrVehicleNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "vehículo no encontrado",
			})
		default:
			h.logger.Error("send notification failed",
				zap.String("vehicle_id", in.VehicleID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "no se pudo enviar la notificación",
			})
		}
		return
	}

	c.JSON(http.StatusOK, n)
}

// ListVehicleNotifications returns the notification history of a vehicle.
func (h *Handler) ListVehicleNotifications(c *gin.Context) {
	cu, ok := auth.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	p := pagination.ParsePagination(c)
	if c.IsAborted() {
		return
	}

	v, err := h.vehicles.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, vehicle.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "vehículo no encontrado"})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}

	if !cu.IsAdmin() && !(cu.Role == user.RoleCorporate && cu.CanAccessOrganization(v.OrganizationID)) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "vehicle belongs to another organization",
		})
		return
	}

	items, total, err := h.service.History(c.Request.Context(), v.ID, p.Limit, p.Offset)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "pagination": p.Meta(total)})
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.Error("notification history failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
}

// decodeStrict decodes a single JSON object, rejecting unknown fields, and
// runs the binding tags of dst.
func decodeStrict(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("body must contain a single JSON object")
	}
	return binding.Validator.ValidateStruct(dst)
}

func badRequest(err error) gin.H {
	body := gin.H{"error": "bad_request", "message": "invalid request body"}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		body["message"] = "validation failed"
		body["fields"] = fields
		return body
	}
	body["message"] = fmt.Sprintf("invalid request body: %v", err)
	return body
}
