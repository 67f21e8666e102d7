package users

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/shared/auth"
	"filetrack-backend/internal/shared/server/middleware"
	"filetrack-backend/internal/shared/server/respond"
	"filetrack-backend/internal/shared/telemetry"
)

type Handler struct {
	Svc    *Service
	Tokens *auth.Tokens
}

func NewHandler(svc *Service, tokens *auth.Tokens) *Handler {
	return &Handler{Svc: svc, Tokens: tokens}
}

// RegisterPublicRoutes attaches routes reachable without a token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup, limit ...gin.HandlerFunc) {
	handlers := append(append([]gin.HandlerFunc{}, limit...), h.login)
	rg.POST("/auth/login", handlers...)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.GET("/users", h.list)
	rg.GET("/users/:id", h.get)

	admin := rg.Group("", middleware.RequireRole(string(RoleAdmin)))
	admin.POST("/users", h.create)
	admin.PATCH("/users/:id", h.update)
	admin.DELETE("/users/:id", h.delete)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "username and password are required", nil)
		return
	}

	user, err := h.Svc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			telemetry.Warn("auth.login_failed", map[string]any{
				"username":   req.Username,
				"client_ip":  c.ClientIP(),
				"request_id": middleware.RequestIDFromContext(c),
			})
			respond.Error(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			return
		}
		respond.FromError(c, err, "failed to authenticate")
		return
	}

	token, expires, err := h.Tokens.Sign(auth.Claims{
		UserID:     user.ID,
		Username:   user.Username,
		Role:       string(user.Role),
		Permission: string(user.Permission),
	})
	if err != nil {
		respond.FromError(c, err, "failed to issue token")
		return
	}
	respond.OK(c, loginResponse{Token: token, ExpiresAt: expires, User: user})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.Svc.GetByID(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		respond.FromError(c, err, "failed to load user")
		return
	}
	respond.OK(c, user)
}

func (h *Handler) list(c *gin.Context) {
	includeInactive := c.Query("includeInactive") == "true"
	users, err := h.Svc.List(c.Request.Context(), includeInactive)
	if err != nil {
		respond.FromError(c, err, "failed to list users")
		return
	}
	respond.OK(c, gin.H{"items": users})
}

func (h *Handler) get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), id)
	if err != nil {
		respond.FromError(c, err, "failed to load user")
		return
	}
	respond.OK(c, user)
}

func (h *Handler) create(c *gin.Context) {
	var req CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	user, err := h.Svc.Create(c.Request.Context(), req)
	if err != nil {
		respond.FromError(c, err, "failed to create user")
		return
	}
	respond.Created(c, user)
}

func (h *Handler) update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	user, err := h.Svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respond.FromError(c, err, "failed to update user")
		return
	}
	respond.OK(c, user)
}

func (h *Handler) delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		respond.FromError(c, err, "failed to delete user")
		return
	}
	c.Status(http.StatusNoContent)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}
