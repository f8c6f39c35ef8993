package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"auth-service/internal/domain"
)

// HealthCheck verifica una dependencia externa.
type HealthCheck func(ctx context.Context) error

// HealthHandler responde el chequeo de vida del proceso y sus dependencias.
type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health maneja GET /healthz.
func (h *HealthHandler) Health(c *gin.Context) {
	results := gin.H{}
	healthy := true
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
}

// tokenErrorStatus es el status para errores de token segun el flujo: 400 en
// confirmaciones por email, 401 en refresh.
type tokenErrorStatus int

const (
	tokenErrorsAsBadRequest   tokenErrorStatus = http.StatusBadRequest
	tokenErrorsAsUnauthorized tokenErrorStatus = http.StatusUnauthorized
)

// respondError traduce errores de dominio a respuestas HTTP.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error, tokenStatus tokenErrorStatus) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrProviderTokenInvalid):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, domain.ErrAccountLocked):
		c.JSON(http.StatusLocked, gin.H{"error": "account temporarily locked"})
	case errors.Is(err, domain.ErrAccountBanned):
		c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
	case errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrTokenExpired),
		errors.Is(err, domain.ErrTokenRevoked),
		errors.Is(err, domain.ErrTokenAlreadyUsed),
		errors.Is(err, domain.ErrTokenTypeMismatch):
		if tokenStatus == tokenErrorsAsUnauthorized {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateProviderIdentity),
		errors.Is(err, domain.ErrEmailAlreadyRegistered),
		errors.Is(err, domain.ErrEmailAlreadyVerified):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	default:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
