package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"auth-service/internal/config"
	"auth-service/internal/db"
	"auth-service/internal/email"
	apihttp "auth-service/internal/http"
	"auth-service/internal/metrics"
	"auth-service/internal/repository"
	"auth-service/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	clock := service.SystemClock{}

	keys, err := service.LoadKeySet(cfg.JWTActiveKeyID, cfg.JWTPrivateKeyPath, cfg.JWTPublicKeys)
	if err != nil {
		logger.Fatal("load signing keys", zap.Error(err))
	}

	checks := map[string]apihttp.HealthCheck{}
	var (
		users         repository.UserRepository
		refreshTokens repository.RefreshTokenRepository
		verifications repository.VerificationTokenRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		users = repository.NewPgUserRepository(pool)
		refreshTokens = repository.NewPgRefreshTokenRepository(pool)
		verifications = repository.NewPgVerificationTokenRepository(pool)
		checks["postgres"] = func(ctx context.Context) error { return db.Ping(ctx, pool) }
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		users = repository.NewMemoryUserRepository()
		refreshTokens = repository.NewMemoryRefreshTokenRepository()
		verifications = repository.NewMemoryVerificationTokenRepository()
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	limiter := service.NewMemoryRequestLimiter(clock, cfg.EmailRequestWindow, cfg.EmailRequestLimit)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter", zap.Error(err))
		} else {
			limiter = service.NewRedisRequestLimiter(redisClient, "auth:rl:", cfg.EmailRequestWindow, cfg.EmailRequestLimit)
			checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		}
		cancel()
	}

	social := service.NewSocialVerifiers(cfg.SocialVerifyTimeout, logger)
	if cfg.GoogleClientID != "" {
		ctxDiscover, cancel := context.WithTimeout(ctx, cfg.SocialVerifyTimeout)
		google, err := service.NewGoogleVerifier(ctxDiscover, cfg.GoogleClientID)
		cancel()
		if err != nil {
			logger.Warn("google verifier init failed", zap.Error(err))
		} else {
			social.Register(service.ProviderGoogle, google)
		}
	}

	access := service.NewAccessTokenIssuer(keys, clock, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenTTL)
	authSvc, err := service.NewAuthService(logger, service.AuthDeps{
		Users:  users,
		Hasher: service.NewArgon2Hasher(service.DefaultArgon2Params),
		Guard:  service.NewCredentialGuard(clock, cfg.LockoutMaxAttempts, cfg.LockoutDuration),
		Access: access,
		Refresh: service.NewRefreshTokenLedger(refreshTokens, clock, cfg.RefreshTokenTTL, logger,
			service.WithReuseDetection(cfg.RefreshReuseRevokesFamily),
			service.WithRefreshMetrics(m),
		),
		Verification: service.NewVerificationTokenLedger(verifications, clock, logger, m),
		Linker: service.NewIdentityLinker(users, clock, logger,
			service.WithRequireVerifiedEmail(cfg.SocialLinkRequireVerifiedEmail),
		),
		Social:  social,
		Email:   emailSender,
		Limiter: limiter,
		Metrics: m,
		Clock:   clock,
	}, service.AuthConfig{
		FrontendURL:          cfg.FrontendURL,
		EmailVerificationTTL: time.Duration(cfg.EmailVerificationTTLMinutes) * time.Minute,
		PasswordResetTTL:     time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute,
		EmailSendTimeout:     cfg.EmailSendTimeout,
	})
	if err != nil {
		logger.Fatal("auth service init", zap.Error(err))
	}

	jwksHandler, err := apihttp.NewJWKSHandler(keys)
	if err != nil {
		logger.Fatal("jwks init", zap.Error(err))
	}
	router := apihttp.NewRouter(
		logger,
		m,
		access,
		apihttp.NewAuthHandler(logger, authSvc),
		jwksHandler,
		apihttp.NewHealthHandler(checks),
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("port", cfg.HTTPPort),
			zap.String("active_kid", keys.ActiveKeyID()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
