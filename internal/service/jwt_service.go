package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL es la vida de una sesion de administrador.
const DefaultSessionTTL = 7 * 24 * time.Hour

// JWTService emite y valida los tokens de sesion.
type JWTService struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	denylist TokenDenylist
	now      func() time.Time
}

// SessionToken es un token firmado y el instante en que caduca.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

type Claims struct {
	AccountID string `json:"uid"`
	jwt.RegisteredClaims
}

// ErrTokenInvalid cubre firma incorrecta, expiracion, claims malformados y
// revocacion. Los llamadores no deben distinguir entre ellos.
var ErrTokenInvalid = errors.New("session token invalid")

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &JWTService{
		secret:   []byte(secret),
		ttl:      ttl,
		issuer:   "food-admin",
		denylist: NewMemoryTokenDenylist(),
		now:      time.Now,
	}
}

func NewJWTServiceWithDenylist(secret string, ttl time.Duration, denylist TokenDenylist) *JWTService {
	svc := NewJWTService(secret, ttl)
	if denylist != nil {
		svc.denylist = denylist
	}
	return svc
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue firma un token cuyo subject es el id de la cuenta.
func (s *JWTService) Issue(accountID string) (SessionToken, error) {
	if len(s.secret) == 0 || strings.TrimSpace(accountID) == "" {
		return SessionToken{}, ErrTokenInvalid
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify devuelve el id de cuenta de un token valido y no revocado.
func (s *JWTService) Verify(ctx context.Context, tokenString string) (string, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil {
		return "", err
	}
	if s.denylist != nil {
		// Si el denylist no responde se acepta el token: la firma y la
		// expiracion ya fueron verificadas.
		if revoked, err := s.denylist.IsRevoked(ctx, claims.ID); err == nil && revoked {
			return "", ErrTokenInvalid
		}
	}
	return claims.AccountID, nil
}

// Revoke invalida un token hasta su expiracion natural. Un token que ya no es
// valido no necesita revocarse.
func (s *JWTService) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parseToken(tokenString)
	if err != nil || s.denylist == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	return s.denylist.Revoke(ctx, claims.ID, ttl)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrTokenInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}
	if !s.isValidClaims(claims) {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.AccountID) == "" {
		return false
	}
	if claims.Subject != claims.AccountID {
		return false
	}
	return strings.TrimSpace(claims.ID) != ""
}
