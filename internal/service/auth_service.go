package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"food-admin/internal/domain"
	"food-admin/internal/email"
	"food-admin/internal/repository"
)

const (
	defaultOTPTTL           = 15 * time.Minute
	defaultOTPRequestLimit  = 3
	defaultOTPAttemptLimit  = 5
	defaultOTPLimitWindow   = 15 * time.Minute
	defaultDispatchAttempts = 3
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPInvalid         = errors.New("otp invalid")
	ErrOTPExpired         = errors.New("otp expired")
	ErrRateLimited        = errors.New("rate limited")
	ErrEmailSendFailure   = errors.New("email send failed")
)

var tracer = otel.Tracer("food-admin/internal/service")

// AuthService coordina registro, login y el reset de password por OTP de la
// cuenta administradora.
type AuthService struct {
	logger          *zap.Logger
	admins          repository.AdminRepository
	hasher          PasswordHasher
	emailSender     email.Sender
	requestLimiter  RateLimiter
	attemptLimiter  RateLimiter
	otpTTL          time.Duration
	dispatchBackoff func() retry.Backoff
	now             func() time.Time

	// registerMu serializa el chequeo de admin unico con la insercion.
	registerMu sync.Mutex

	dummyOnce   sync.Once
	dummyDigest string
}

type AuthOption func(*AuthService)

// WithRateLimiters reemplaza los limitadores de pedidos y de intentos de OTP.
func WithRateLimiters(requests, attempts RateLimiter) AuthOption {
	return func(s *AuthService) {
		if requests != nil {
			s.requestLimiter = requests
		}
		if attempts != nil {
			s.attemptLimiter = attempts
		}
	}
}

func WithOTPTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

// WithDispatchBackoff define la politica de reintentos del envio del OTP.
// Se pide una fabrica porque cada Backoff guarda estado.
func WithDispatchBackoff(newBackoff func() retry.Backoff) AuthOption {
	return func(s *AuthService) {
		if newBackoff != nil {
			s.dispatchBackoff = newBackoff
		}
	}
}

func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(logger *zap.Logger, admins repository.AdminRepository, hasher PasswordHasher, emailSender email.Sender, opts ...AuthOption) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuthService{
		logger:         logger,
		admins:         admins,
		hasher:         hasher,
		emailSender:    emailSender,
		requestLimiter: NewRateLimiter(defaultOTPLimitWindow, defaultOTPRequestLimit),
		attemptLimiter: NewRateLimiter(defaultOTPLimitWindow, defaultOTPAttemptLimit),
		otpTTL:         defaultOTPTTL,
		dispatchBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(defaultDispatchAttempts-1, retry.NewExponential(200*time.Millisecond))
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register crea la unica cuenta administradora. Falla con
// repository.ErrAdminExists o repository.ErrEmailInUse.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (account domain.AdminAccount, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(input.Name)
	emailAddr := normalizeEmail(input.Email)
	if name == "" || emailAddr == "" || input.Password == "" {
		return domain.AdminAccount{}, ErrValidation
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		registrationsTotal.WithLabelValues("error").Inc()
		return domain.AdminAccount{}, err
	}

	now := s.now().UTC()
	account = domain.AdminAccount{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	s.registerMu.Lock()
	err = s.admins.Create(ctx, account)
	s.registerMu.Unlock()
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			registrationsTotal.WithLabelValues("conflict").Inc()
			s.logger.Info("admin registration rejected", zap.Error(err))
			return domain.AdminAccount{}, err
		}
		registrationsTotal.WithLabelValues("error").Inc()
		return domain.AdminAccount{}, err
	}

	registrationsTotal.WithLabelValues("success").Inc()
	s.logger.Info("admin registered", zap.String("admin_id", account.ID))

	if s.emailSender != nil {
		if err := s.emailSender.SendWelcome(ctx, account.Email, account.Name); err != nil {
			s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("admin_id", account.ID))
		}
	}
	return account, nil
}

// Login verifica credenciales. Email desconocido y password incorrecto
// devuelven el mismo ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (account domain.AdminAccount, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.AdminAccount{}, ErrValidation
	}

	account, err = s.admins.GetByEmail(ctx, emailAddr)
	if errors.Is(err, repository.ErrNotFound) {
		// Igualar el costo con el de una cuenta existente.
		if digest := s.timingDigest(); digest != "" {
			_, _ = s.hasher.Verify(password, digest)
		}
		loginsTotal.WithLabelValues("invalid").Inc()
		return domain.AdminAccount{}, ErrInvalidCredentials
	}
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return domain.AdminAccount{}, err
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		s.logger.Error("stored password digest unreadable", zap.Error(err), zap.String("admin_id", account.ID))
		return domain.AdminAccount{}, err
	}
	if !ok {
		loginsTotal.WithLabelValues("invalid").Inc()
		return domain.AdminAccount{}, ErrInvalidCredentials
	}

	loginsTotal.WithLabelValues("success").Inc()
	return account, nil
}

// RequestReset emite un OTP de 6 digitos, guarda su digest y lo envia por
// email. Si el envio falla tras los reintentos, el OTP se retira.
func (s *AuthService) RequestReset(ctx context.Context, emailAddr string) (expiresAt time.Time, err error) {
	ctx, span := tracer.Start(ctx, "AuthService.RequestReset")
	defer func() { endSpan(span, err) }()

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return time.Time{}, ErrValidation
	}
	if !s.requestLimiter.Allow(ctx, emailAddr) {
		resetRequestsTotal.WithLabelValues("rate_limited").Inc()
		return time.Time{}, ErrRateLimited
	}

	account, err := s.admins.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			resetRequestsTotal.WithLabelValues("not_found").Inc()
		} else {
			resetRequestsTotal.WithLabelValues("error").Inc()
		}
		return time.Time{}, err
	}

	code, digest, err := generateOTP()
	if err != nil {
		resetRequestsTotal.WithLabelValues("error").Inc()
		return time.Time{}, oops.Code("OTP_GENERATE_FAILED").Wrap(err)
	}
	expiresAt = s.now().UTC().Add(s.otpTTL)

	if err := s.admins.SetResetOTP(ctx, account.ID, digest, expiresAt.UnixMilli()); err != nil {
		resetRequestsTotal.WithLabelValues("error").Inc()
		return time.Time{}, err
	}

	if err := s.dispatchOTP(ctx, account.Email, code, expiresAt); err != nil {
		s.logger.Warn("send reset otp failed", zap.Error(err), zap.String("admin_id", account.ID))
		// El cliente pudo haberse ido; el rollback debe correr igual.
		if clearErr := s.admins.ClearResetOTP(context.WithoutCancel(ctx), account.ID, digest); clearErr != nil {
			s.logger.Error("rollback reset otp failed", zap.Error(clearErr), zap.String("admin_id", account.ID))
		}
		resetRequestsTotal.WithLabelValues("dispatch_failed").Inc()
		return time.Time{}, ErrEmailSendFailure
	}

	resetRequestsTotal.WithLabelValues("sent").Inc()
	s.logger.Info("password reset otp sent", zap.String("admin_id", account.ID), zap.Time("expires_at", expiresAt))
	return expiresAt, nil
}

func (s *AuthService) dispatchOTP(ctx context.Context, to, code string, expiresAt time.Time) error {
	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	return retry.Do(ctx, s.dispatchBackoff(), func(ctx context.Context) error {
		if err := s.emailSender.SendPasswordResetOTP(ctx, to, code, expiresAt); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

type CompleteResetInput struct {
	Email       string
	OTP         string
	NewPassword string
}

// CompleteReset consume el OTP y cambia el password en una sola escritura.
func (s *AuthService) CompleteReset(ctx context.Context, input CompleteResetInput) (err error) {
	ctx, span := tracer.Start(ctx, "AuthService.CompleteReset")
	defer func() { endSpan(span, err) }()

	emailAddr := normalizeEmail(input.Email)
	code := strings.TrimSpace(input.OTP)
	if emailAddr == "" || code == "" || input.NewPassword == "" {
		return ErrValidation
	}
	if !s.attemptLimiter.Allow(ctx, emailAddr) {
		resetCompletionsTotal.WithLabelValues("rate_limited").Inc()
		return ErrRateLimited
	}

	account, err := s.admins.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			resetCompletionsTotal.WithLabelValues("not_found").Inc()
		} else {
			resetCompletionsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	if !account.HasActiveReset() || !isValidOTPCode(code) || !verifyOTP(code, account.ResetOTP) {
		resetCompletionsTotal.WithLabelValues("invalid_otp").Inc()
		return ErrOTPInvalid
	}
	if account.ResetExpired(s.now()) {
		resetCompletionsTotal.WithLabelValues("expired").Inc()
		return ErrOTPExpired
	}

	passwordHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		resetCompletionsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := s.admins.ConsumeResetOTP(ctx, account.ID, account.ResetOTP, passwordHash); err != nil {
		if errors.Is(err, repository.ErrOTPMismatch) {
			resetCompletionsTotal.WithLabelValues("invalid_otp").Inc()
			return ErrOTPInvalid
		}
		resetCompletionsTotal.WithLabelValues("error").Inc()
		return err
	}

	resetCompletionsTotal.WithLabelValues("success").Inc()
	s.logger.Info("password reset completed", zap.String("admin_id", account.ID))
	return nil
}

// SetPassword cambia el password sin OTP. Lo usa la CLI de operador.
func (s *AuthService) SetPassword(ctx context.Context, emailAddr, newPassword string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || newPassword == "" {
		return ErrValidation
	}
	account, err := s.admins.GetByEmail(ctx, emailAddr)
	if err != nil {
		return err
	}
	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.admins.UpdatePassword(ctx, account.ID, passwordHash); err != nil {
		return err
	}
	s.logger.Info("password changed by operator", zap.String("admin_id", account.ID))
	return nil
}

func (s *AuthService) GetAccount(ctx context.Context, id string) (domain.AdminAccount, error) {
	if strings.TrimSpace(id) == "" {
		return domain.AdminAccount{}, ErrValidation
	}
	return s.admins.GetByID(ctx, id)
}

func (s *AuthService) GetAccountByEmail(ctx context.Context, emailAddr string) (domain.AdminAccount, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return domain.AdminAccount{}, ErrValidation
	}
	return s.admins.GetByEmail(ctx, emailAddr)
}

func (s *AuthService) timingDigest() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("timing-equalisation")
		if err != nil {
			s.logger.Warn("dummy digest unavailable", zap.Error(err))
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

// endSpan marca como error solo las fallas internas; los errores de negocio
// son resultados esperados.
func endSpan(span trace.Span, err error) {
	if err != nil && !isBusinessError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "internal error")
	}
	span.SetAttributes(attribute.Bool("auth.ok", err == nil))
	span.End()
}

func isBusinessError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrInvalidCredentials, ErrOTPInvalid, ErrOTPExpired, ErrRateLimited,
		repository.ErrNotFound, repository.ErrConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
