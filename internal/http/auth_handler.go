package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-service/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticacion.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler.
func NewAuthHandler(logger *zap.Logger, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		auth:   auth,
	}
}

type tokensResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func sessionResponse(s service.Session) gin.H {
	return gin.H{
		"user": s.User,
		"tokens": tokensResponse{
			AccessToken:      s.AccessToken,
			RefreshToken:     s.RefreshToken,
			TokenType:        s.TokenType,
			ExpiresIn:        int64(s.AccessTTL.Seconds()),
			AccessExpiresAt:  s.AccessExpiresAt,
			RefreshExpiresAt: s.RefreshExpiresAt,
		},
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		respondError(c, h.logger, "register", err, tokenErrorsAsBadRequest)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse(session))
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, h.logger, "login", err, tokenErrorsAsUnauthorized)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, "refresh", err, tokenErrorsAsUnauthorized)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid logout request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, h.logger, "logout", err, tokenErrorsAsUnauthorized)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogoutAll maneja POST /auth/logout-all.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	revoked, err := h.auth.LogoutAll(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, h.logger, "logout all", err, tokenErrorsAsUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": revoked})
}

// SocialLogin maneja POST /auth/social/token.
func (h *AuthHandler) SocialLogin(c *gin.Context) {
	var req struct {
		Provider string `json:"provider" binding:"required"`
		IDToken  string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid social login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	session, err := h.auth.SocialLogin(c.Request.Context(), req.Provider, req.IDToken)
	if err != nil {
		respondError(c, h.logger, "social login", err, tokenErrorsAsUnauthorized)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

// VerifyEmail maneja POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verify email request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.auth.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.logger, "verify email", err, tokenErrorsAsBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ResendVerification maneja POST /auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend verification request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.auth.ResendVerification(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "resend verification", err, tokenErrorsAsBadRequest)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "verification_sent"})
}

// RequestPasswordReset maneja POST /auth/reset-password/request.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid password reset request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, h.logger, "request password reset", err, tokenErrorsAsBadRequest)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "reset_requested"})
}

// ConfirmPasswordReset maneja POST /auth/reset-password/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid password reset confirm request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		respondError(c, h.logger, "confirm password reset", err, tokenErrorsAsBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password_updated"})
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	user, err := h.auth.Profile(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, h.logger, "profile", err, tokenErrorsAsUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMe maneja PATCH /auth/me.
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	var req struct {
		FullName  *string `json:"full_name"`
		AvatarURL *string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	current, err := h.auth.Profile(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, h.logger, "profile", err, tokenErrorsAsUnauthorized)
		return
	}
	fullName, avatarURL := current.FullName, current.AvatarURL
	if req.FullName != nil {
		fullName = *req.FullName
	}
	if req.AvatarURL != nil {
		avatarURL = *req.AvatarURL
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), claims.Subject, fullName, avatarURL)
	if err != nil {
		respondError(c, h.logger, "update profile", err, tokenErrorsAsBadRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
