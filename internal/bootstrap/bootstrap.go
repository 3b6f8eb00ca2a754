// Package bootstrap arma las dependencias compartidas por los binarios.
package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"food-admin/internal/config"
	"food-admin/internal/db"
	"food-admin/internal/email"
	"food-admin/internal/repository"
	"food-admin/internal/service"
)

// Store agrupa el repositorio elegido por STORE_DRIVER y su cierre.
type Store struct {
	Admins repository.AdminRepository
	close  func()
}

func (s *Store) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// OpenStore abre el store configurado. En postgres aplica las migraciones
// pendientes antes de abrir el pool.
func OpenStore(ctx context.Context, cfg *config.StoreConfig, logger *zap.Logger) (*Store, error) {
	if cfg.StoreDriver == "sqlite" {
		repo, err := repository.NewSQLiteAdminRepository(cfg.SQLitePath)
		if err != nil {
			return nil, oops.Code("STORE_OPEN_FAILED").With("driver", "sqlite").Wrap(err)
		}
		logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		return &Store{Admins: repo, close: func() { _ = repo.Close() }}, nil
	}

	if err := MigrateUp(cfg.DatabaseURL); err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", "postgres").Wrap(err)
	}
	backoff := retry.WithMaxRetries(4, retry.NewExponential(250*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.Ping(ctx, pool); err != nil {
			logger.Warn("database not ready", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_OPEN_FAILED").With("driver", "postgres").Wrap(err)
	}
	logger.Info("using postgres store")
	return &Store{Admins: repository.NewPgAdminRepository(pool), close: pool.Close}, nil
}

// MigrateUp aplica todas las migraciones pendientes.
func MigrateUp(databaseURL string) (err error) {
	m, err := db.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return m.Up()
}

// NewEmailSender usa SMTP si esta configurado y un sender deshabilitado si no.
func NewEmailSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("smtp not configured, email delivery disabled")
		return email.NewDisabledSender("email sender not configured")
	}
	sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
	if err != nil {
		logger.Warn("smtp sender init failed", zap.Error(err))
		return email.NewDisabledSender("email sender misconfigured")
	}
	return sender
}

// NewRedisClient devuelve nil si Redis no esta configurado o no responde; en
// ese caso se usan los limitadores y el denylist en memoria.
func NewRedisClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, using in-memory limits", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// NewOperatorAuth arma un AuthService para la CLI: sin emails ni limites.
func NewOperatorAuth(cfg *config.StoreConfig, logger *zap.Logger, admins repository.AdminRepository) (*service.AuthService, error) {
	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(logger, admins, hasher, email.NewDisabledSender("operator cli does not send email")), nil
}

// Services son los servicios de autenticacion ya cableados.
type Services struct {
	Auth *service.AuthService
	JWT  *service.JWTService
}

func NewServices(cfg *config.Config, logger *zap.Logger, admins repository.AdminRepository, sender email.Sender, redisClient *redis.Client) (*Services, error) {
	hasher, err := service.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	window := cfg.OTPLimitWindow()
	requests := service.NewRateLimiter(window, cfg.OTPRequestsPerWindow)
	attempts := service.NewRateLimiter(window, cfg.OTPAttemptsPerWindow)
	denylist := service.NewMemoryTokenDenylist()
	if redisClient != nil {
		requests = service.NewRedisRateLimiter(redisClient, "otp:req:", window, cfg.OTPRequestsPerWindow)
		attempts = service.NewRedisRateLimiter(redisClient, "otp:try:", window, cfg.OTPAttemptsPerWindow)
		denylist = service.NewRedisTokenDenylist(redisClient)
	}

	authSvc := service.NewAuthService(logger, admins, hasher, sender,
		service.WithRateLimiters(requests, attempts),
		service.WithOTPTTL(cfg.OTPTTL()),
	)
	jwtSvc := service.NewJWTServiceWithDenylist(cfg.JWTSecret, cfg.SessionTTL(), denylist)
	return &Services{Auth: authSvc, JWT: jwtSvc}, nil
}
