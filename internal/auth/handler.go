package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/KellyGutierrez/notifycar-sub000/internal/user"
)

const tokenTTL = 24 * time.Hour

type Handler struct {
	DB     *gorm.DB
	secret []byte
	logger *zap.Logger
}

func NewHandler(db *gorm.DB, secret []byte, logger *zap.Logger) *Handler {
	return &Handler{DB: db, secret: secret, logger: logger.Named("auth")}
}

type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string           `json:"token"`
	User  LoginUserPayload `json:"user"`
}

type LoginUserPayload struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organizationId,omitempty"`
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/auth/login", h.Login)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": "email and password are required",
		})
		return
	}

	// 1. Find active user by email
	var u user.User
	err := h.DB.WithContext(c.Request.Context()).
		Where("LOWER(email) = ? AND active = ?", strings.ToLower(strings.TrimSpace(req.Email)), true).
		First(&u).Error
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_credentials",
			"message": "correo o contraseña incorrectos",
		})
		return
	}

	// 2. Check password
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "invalid_credentials",
			"message": "correo o contraseña incorrectos",
		})
		return
	}

	// 3. Sign JWT
	now := time.Now()
	claims := UserClaims{
		UserID:         u.ID,
		Role:           string(u.Role),
		OrganizationID: u.OrganizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		h.logger.Error("failed to sign token", zap.String("user_id", u.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "token_error",
			"message": "failed to generate token",
		})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token: tokenString,
		User: LoginUserPayload{
			ID:             u.ID,
			Email:          u.Email,
			Name:           u.Name,
			Role:           string(u.Role),
			OrganizationID: u.OrganizationID,
		},
	})
}
