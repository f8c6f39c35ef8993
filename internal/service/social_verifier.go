package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.uber.org/zap"

	"auth-service/internal/domain"
)

const (
	ProviderGoogle = "google"
	GoogleIssuer   = "https://accounts.google.com"

	defaultSocialVerifyTimeout = 5 * time.Second
)

// SocialProviderVerifier valida la credencial opaca de un proveedor social.
type SocialProviderVerifier interface {
	Verify(ctx context.Context, provider, credential string) (domain.ProviderProfile, error)
}

// IDTokenVerifier valida un id_token de un proveedor concreto.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (domain.ProviderProfile, error)
}

// OIDCVerifier valida id_tokens OpenID Connect (firma, emisor, audiencia, vencimiento).
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewGoogleVerifier descubre el proveedor de Google y arma el verificador
// para clientID.
func NewGoogleVerifier(ctx context.Context, clientID string) (*OIDCVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google provider: %w", err)
	}
	return NewOIDCVerifier(provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func NewOIDCVerifier(verifier *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: verifier}
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (domain.ProviderProfile, error) {
	idToken, err := v.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: %v", domain.ErrProviderTokenInvalid, err)
	}
	var claims idTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return domain.ProviderProfile{}, fmt.Errorf("%w: %v", domain.ErrProviderTokenInvalid, err)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return domain.ProviderProfile{}, fmt.Errorf("%w: provider email not verified", domain.ErrProviderTokenInvalid)
	}
	if idToken.Subject == "" || claims.Email == "" {
		return domain.ProviderProfile{}, fmt.Errorf("%w: missing subject or email", domain.ErrProviderTokenInvalid)
	}
	return domain.ProviderProfile{
		ProviderUID: idToken.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
		AvatarURL:   claims.Picture,
	}, nil
}

// SocialVerifiers despacha por nombre de proveedor y acota cada llamada con
// un timeout.
type SocialVerifiers struct {
	mu        sync.RWMutex
	verifiers map[string]IDTokenVerifier
	timeout   time.Duration
	logger    *zap.Logger
}

func NewSocialVerifiers(timeout time.Duration, logger *zap.Logger) *SocialVerifiers {
	if timeout <= 0 {
		timeout = defaultSocialVerifyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SocialVerifiers{
		verifiers: make(map[string]IDTokenVerifier),
		timeout:   timeout,
		logger:    logger,
	}
}

// Register agrega (o reemplaza) el verificador de un proveedor.
func (s *SocialVerifiers) Register(provider string, v IDTokenVerifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifiers[domain.NormalizeProvider(provider)] = v
}

func (s *SocialVerifiers) Verify(ctx context.Context, provider, credential string) (domain.ProviderProfile, error) {
	provider = domain.NormalizeProvider(provider)
	s.mu.RLock()
	v, ok := s.verifiers[provider]
	s.mu.RUnlock()
	if !ok {
		return domain.ProviderProfile{}, fmt.Errorf("%w: unsupported provider %q", domain.ErrProviderTokenInvalid, provider)
	}
	if strings.TrimSpace(credential) == "" {
		return domain.ProviderProfile{}, domain.ErrProviderTokenInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	profile, err := v.VerifyIDToken(ctx, credential)
	if err != nil {
		s.logger.Warn("social token rejected", zap.String("provider", provider), zap.Error(err))
		if !errors.Is(err, domain.ErrProviderTokenInvalid) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderTokenInvalid, err)
		}
		return domain.ProviderProfile{}, err
	}
	return profile, nil
}
