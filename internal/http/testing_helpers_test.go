package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"auth-service/internal/domain"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
	"auth-service/internal/service"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return testKey
}

type mockEmailSender struct {
	mu       sync.Mutex
	lastTo   string
	lastLink string
}

func (m *mockEmailSender) SendVerificationEmail(_ context.Context, toEmail, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTo, m.lastLink = toEmail, link
	return nil
}

func (m *mockEmailSender) SendPasswordResetEmail(_ context.Context, toEmail, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTo, m.lastLink = toEmail, link
	return nil
}

func (m *mockEmailSender) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	u, err := url.Parse(m.lastLink)
	if err != nil || u.Query().Get("token") == "" {
		t.Fatalf("no token in last email link %q", m.lastLink)
	}
	return u.Query().Get("token")
}

type mockIDTokenVerifier struct {
	profile domain.ProviderProfile
	err     error
}

func (m *mockIDTokenVerifier) VerifyIDToken(_ context.Context, _ string) (domain.ProviderProfile, error) {
	return m.profile, m.err
}

type testServer struct {
	router *gin.Engine
	users  *repository.MemoryUserRepository
	mail   *mockEmailSender
	google *mockIDTokenVerifier
	access *service.AccessTokenIssuer
	keys   *service.KeySet
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keys, err := service.NewKeySet("key-v1", testSigningKey(t), nil)
	if err != nil {
		t.Fatalf("key set: %v", err)
	}
	logger := zap.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	users := repository.NewMemoryUserRepository()
	access := service.NewAccessTokenIssuer(keys, nil, "auth-service", "bike-ecosystem", 15*time.Minute)
	mail := &mockEmailSender{}
	google := &mockIDTokenVerifier{}
	social := service.NewSocialVerifiers(time.Second, logger)
	social.Register(service.ProviderGoogle, google)

	authSvc, err := service.NewAuthService(logger, service.AuthDeps{
		Users:        users,
		Hasher:       service.NewArgon2Hasher(service.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}),
		Guard:        service.NewCredentialGuard(nil, 5, 30*time.Minute),
		Access:       access,
		Refresh:      service.NewRefreshTokenLedger(repository.NewMemoryRefreshTokenRepository(), nil, 7*24*time.Hour, logger, service.WithRefreshMetrics(m)),
		Verification: service.NewVerificationTokenLedger(repository.NewMemoryVerificationTokenRepository(), nil, logger, m),
		Linker:       service.NewIdentityLinker(users, nil, logger),
		Social:       social,
		Email:        mail,
		Metrics:      m,
	}, service.AuthConfig{FrontendURL: "https://app.test"})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	jwksH, err := NewJWKSHandler(keys)
	if err != nil {
		t.Fatalf("jwks handler: %v", err)
	}
	healthH := NewHealthHandler(map[string]HealthCheck{
		"store": func(context.Context) error { return nil },
	})
	router := NewRouter(logger, m, access, NewAuthHandler(logger, authSvc), jwksH, healthH)
	return &testServer{router: router, users: users, mail: mail, google: google, access: access, keys: keys}
}

func performRequest(r http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type sessionBody struct {
	User struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		Status        string `json:"status"`
		EmailVerified bool   `json:"email_verified"`
	} `json:"user"`
	Tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
	} `json:"tokens"`
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var body sessionBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode session: %v (%s)", err, rec.Body.String())
	}
	return body
}

func (s *testServer) register(t *testing.T, email, password string) sessionBody {
	t.Helper()
	rec := performRequest(s.router, http.MethodPost, "/auth/register", map[string]string{
		"email":     email,
		"password":  password,
		"full_name": "Ana",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	return decodeSession(t, rec)
}
