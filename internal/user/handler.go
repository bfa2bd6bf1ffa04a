package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/KellyGutierrez/notifycar-sub000/internal/pagination"
)

// Handler manages account holders. Routes are mounted behind
// auth.RequireRole(ADMIN), so it does no access checks of its own.
type Handler struct {
	DB     *gorm.DB
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, logger *zap.Logger) *Handler {
	return &Handler{DB: db, logger: logger.Named("user")}
}

type CreateUserRequest struct {
	Email          string  `json:"email"          binding:"required,email"`
	Password       string  `json:"password"       binding:"required,min=8"`
	Name           string  `json:"name"           binding:"required"`
	PhonePrefix    string  `json:"phonePrefix"    binding:"omitempty,max=6"`
	PhoneNumber    string  `json:"phoneNumber"    binding:"omitempty,max=20"`
	Country        string  `json:"country"        binding:"omitempty,max=20"`
	Role           Role    `json:"role"           binding:"omitempty,oneof=ADMIN CORPORATE INSTITUTIONAL USER"`
	OrganizationID *string `json:"organizationId"`
}

// UpdateUserRequest leaves nil fields untouched.
type UpdateUserRequest struct {
	Name        *string `json:"name,omitempty"`
	PhonePrefix *string `json:"phonePrefix,omitempty" binding:"omitempty,max=6"`
	PhoneNumber *string `json:"phoneNumber,omitempty" binding:"omitempty,max=20"`
	Country     *string `json:"country,omitempty"     binding:"omitempty,max=20"`
	Password    *string `json:"password,omitempty"    binding:"omitempty,min=8"`
	Role        *Role   `json:"role,omitempty"        binding:"omitempty,oneof=ADMIN CORPORATE INSTITUTIONAL USER"`
	Active      *bool   `json:"active,omitempty"`
}

func (h *Handler) RegisterAdminRoutes(r gin.IRoutes) {
	r.POST("/users", h.CreateUser)
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUserByID)
	r.PUT("/users/:id", h.UpdateUser)
	r.DELETE("/users/:id", h.DeleteUser)
}

// ListUsers returns account holders ordered by email. ?organizationId= filters.
func (h *Handler) ListUsers(c *gin.Context) {
	p := pagination.ParsePagination(c)
	if c.IsAborted() {
		return
	}

	query := h.DB.WithContext(c.Request.Context()).Model(&User{})
	if orgID := strings.TrimSpace(c.Query("organizationId")); orgID != "" {
		query = query.Where("organization_id = ?", orgID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.dbError(c, err)
		return
	}

	users := []User{}
	if err := query.Order("email").Limit(p.Limit).Offset(p.Offset).Find(&users).Error; err != nil {
		h.dbError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": users, "pagination": p.Meta(total)})
}

func (h *Handler) GetUserByID(c *gin.Context) {
	u, ok := h.find(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var existing int64
	if err := h.DB.WithContext(c.Request.Context()).Model(&User{}).Where("LOWER(email) = ?", email).Count(&existing).Error; err != nil {
		h.dbError(c, err)
		return
	}
	if existing > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": "ya existe un usuario con ese correo"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	role := req.Role
	if role == "" {
		role = RoleUser
	}
	u := User{
		Email:          email,
		PasswordHash:   string(hash),
		Name:           strings.TrimSpace(req.Name),
		PhonePrefix:    strings.TrimSpace(req.PhonePrefix),
		PhoneNumber:    strings.TrimSpace(req.PhoneNumber),
		Country:        strings.TrimSpace(req.Country),
		Role:           role,
		OrganizationID: req.OrganizationID,
		Active:         true,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&u).Error; err != nil {
		h.dbError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	u, ok := h.find(c)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.PhonePrefix != nil {
		u.PhonePrefix = strings.TrimSpace(*req.PhonePrefix)
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.Country != nil {
		u.Country = strings.TrimSpace(*req.Country)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.Active != nil {
		u.Active = *req.Active
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.logger.Error("hash password", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		u.PasswordHash = string(hash)
	}

	if err := h.DB.WithContext(c.Request.Context()).Save(u).Error; err != nil {
		h.dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// DeleteUser deactivates the account; vehicles keep pointing at it.
func (h *Handler) DeleteUser(c *gin.Context) {
	u, ok := h.find(c)
	if !ok {
		return
	}
	if err := h.DB.WithContext(c.Request.Context()).Model(u).Update("active", false).Error; err != nil {
		h.dbError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) find(c *gin.Context) (*User, bool) {
	var u User
	err := h.DB.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "usuario no encontrado"})
		return nil, false
	}
	if err != nil {
		h.dbError(c, err)
		return nil, false
	}
	return &u, true
}

func (h *Handler) dbError(c *gin.Context, err error) {
	h.logger.Error("database error", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db_error", "message": "unexpected database error"})
}
