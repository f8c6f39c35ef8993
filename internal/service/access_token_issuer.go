package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"auth-service/internal/domain"
)

const (
	TokenTypeAccess       = "access"
	defaultAccessTokenTTL = 15 * time.Minute
)

// AccessClaims son los claims de un access token.
type AccessClaims struct {
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

// AccessToken es el resultado de Mint.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// AccessTokenIssuer emite y verifica access tokens RS256 de vida corta.
type AccessTokenIssuer struct {
	keys     *KeySet
	clock    Clock
	issuer   string
	audience string
	ttl      time.Duration
	parser   *jwt.Parser
}

func NewAccessTokenIssuer(keys *KeySet, clock Clock, issuer, audience string, ttl time.Duration) *AccessTokenIssuer {
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}
	clock = orSystemClock(clock)
	return &AccessTokenIssuer{
		keys:     keys,
		clock:    clock,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// TTL devuelve la vida de los tokens emitidos.
func (s *AccessTokenIssuer) TTL() time.Duration { return s.ttl }

// Mint firma un access token para el usuario con la clave activa.
func (s *AccessTokenIssuer) Mint(userID, email string) (AccessToken, error) {
	if strings.TrimSpace(userID) == "" {
		return AccessToken{}, domain.ErrInvalidClaims
	}
	now := s.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)
	claims := AccessClaims{
		Email: email,
		Type:  TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keys.ActiveKeyID()
	signed, err := token.SignedString(s.keys.SigningKey())
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify valida firma, kid, emisor, audiencia y vencimiento.
func (s *AccessTokenIssuer) Verify(tokenString string) (AccessClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return AccessClaims{}, domain.ErrMalformedToken
	}
	var claims AccessClaims
	_, err := s.parser.ParseWithClaims(tokenString, &claims, s.keyFunc)
	if err != nil {
		return AccessClaims{}, mapJWTError(err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return AccessClaims{}, domain.ErrInvalidClaims
	}
	return claims, nil
}

// VerifyAccess ademas exige type=access.
func (s *AccessTokenIssuer) VerifyAccess(tokenString string) (AccessClaims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return AccessClaims{}, err
	}
	if claims.Type != TokenTypeAccess {
		return AccessClaims{}, domain.ErrTokenTypeMismatch
	}
	return claims, nil
}

func (s *AccessTokenIssuer) keyFunc(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, domain.ErrMalformedToken
	}
	return s.keys.VerificationKey(kid)
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownKeyID):
		return domain.ErrUnknownKeyID
	case errors.Is(err, domain.ErrMalformedToken), errors.Is(err, jwt.ErrTokenMalformed):
		return domain.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return domain.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	default:
		return domain.ErrInvalidClaims
	}
}
