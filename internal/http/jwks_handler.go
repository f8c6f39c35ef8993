package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-jose/go-jose/v4"

	"auth-service/internal/service"
)

// JWKSHandler publica las claves publicas de verificacion.
type JWKSHandler struct {
	set jose.JSONWebKeySet
}

// NewJWKSHandler arma el documento JWKS una sola vez: el KeySet es inmutable.
func NewJWKSHandler(keys *service.KeySet) (*JWKSHandler, error) {
	var set jose.JSONWebKeySet
	for _, kid := range keys.KeyIDs() {
		pub, err := keys.VerificationKey(kid)
		if err != nil {
			return nil, err
		}
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key:       pub,
			KeyID:     kid,
			Algorithm: string(jose.RS256),
			Use:       "sig",
		})
	}
	return &JWKSHandler{set: set}, nil
}

// JWKS maneja GET /.well-known/jwks.json.
func (h *JWKSHandler) JWKS(c *gin.Context) {
	c.Header("Cache-Control", "public, max-age=300")
	c.JSON(http.StatusOK, h.set)
}
