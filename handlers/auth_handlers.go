package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"matribhumi/api/logger"
	"matribhumi/api/middleware"
	"matribhumi/api/models"
	"matribhumi/api/store"
)

// UserRepository is the subset of *store.UserStore the auth handlers need.
type UserRepository interface {
	CreateUser(ctx context.Context, name, email string, role models.Role, hashedPassword []byte) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	TouchLastLogin(ctx context.Context, id int) error
}

// TokenIssuer is satisfied by *utils.JWTManager.
type TokenIssuer interface {
	Generate(user *models.User) (string, error)
	TTL() time.Duration
}

type AuthHandlers struct {
	users        UserRepository
	tokens       TokenIssuer
	log          *logger.Logger
	secureCookie bool
}

func NewAuthHandlers(users UserRepository, tokens TokenIssuer, log *logger.Logger, secureCookie bool) *AuthHandlers {
	return &AuthHandlers{users: users, tokens: tokens, log: log, secureCookie: secureCookie}
}

type userView struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// Login checks credentials and issues a session token.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}
	email := normalizeEmail(req.Email)

	user, err := h.users.GetUserByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.log.Error("failed to look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := h.users.TouchLastLogin(c.Request.Context(), user.ID); err != nil {
		h.log.Warn("failed to record last login", zap.Error(err), zap.Int("user_id", user.ID))
	}

	token, err := h.tokens.Generate(user)
	if err != nil {
		h.log.Error("failed to generate token", zap.Error(err), zap.Int("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authentication token"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, token, int(h.tokens.TTL()/time.Second), "/", "", h.secureCookie, true)

	h.log.Info("user logged in", zap.Int("user_id", user.ID), zap.String("role", string(user.Role)))
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userView{Name: user.Name, Email: user.Email, Role: user.Role},
	})
}

func (h *AuthHandlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", h.secureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Me returns the identity carried by the caller's token.
func (h *AuthHandlers) Me(c *gin.Context) {
	role, _ := middleware.CurrentRole(c)
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":    c.GetInt(middleware.ContextUserID),
		"name":  c.GetString(middleware.ContextUserName),
		"email": c.GetString(middleware.ContextUserEmail),
		"role":  role,
	}})
}

func (h *AuthHandlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.log.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *AuthHandlers) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleEditor
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": "unknown role"})
		return
	}

	user, err := h.createUser(c.Request.Context(), req.Name, req.Email, req.Role, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		h.log.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// EnsureAdmin creates an admin account for email unless one already exists.
func (h *AuthHandlers) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if name == "" {
		name = "Admin"
	}
	_, err := h.createUser(ctx, name, email, models.RoleAdmin, strings.TrimSpace(password))
	if errors.Is(err, store.ErrUserExists) {
		h.log.Info("bootstrap admin already exists", zap.String("email", normalizeEmail(email)))
		return nil
	}
	if err != nil {
		return err
	}
	h.log.Info("bootstrap admin created", zap.String("email", normalizeEmail(email)))
	return nil
}

func (h *AuthHandlers) createUser(ctx context.Context, name, email string, role models.Role, password string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return h.users.CreateUser(ctx, strings.TrimSpace(name), normalizeEmail(email), role, hashed)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
