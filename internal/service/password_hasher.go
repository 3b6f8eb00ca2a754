package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashea y verifica passwords con una funcion lenta y salada.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify devuelve (false, nil) ante un password incorrecto y error si el
	// digest almacenado esta corrupto.
	Verify(password, digest string) (bool, error)
}

var (
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrMalformedDigest = errors.New("malformed password digest")
)

// NewPasswordHasher elige la implementacion segun la configuracion.
func NewPasswordHasher(kind string, bcryptCost int) (PasswordHasher, error) {
	switch kind {
	case "", "bcrypt":
		return NewBcryptHasher(bcryptCost), nil
	case "argon2id":
		return NewArgon2idHasher(), nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", kind)
	}
}

// BcryptHasher implementa PasswordHasher con bcrypt.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	return string(hashBytes), nil
}

func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	return verifyDigest(password, digest)
}

// Parametros argon2id recomendados por OWASP.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Argon2idHasher implementa PasswordHasher con argon2id en formato PHC.
type Argon2idHasher struct{}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("PASSWORD_SALT_FAILED").Wrap(err)
	}
	key := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	return verifyDigest(password, digest)
}

// verifyDigest despacha por prefijo para que cambiar PASSWORD_HASHER no
// invalide los hashes ya almacenados.
func verifyDigest(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(password, digest)
	case strings.HasPrefix(digest, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, oops.Code("PASSWORD_DIGEST_INVALID").Wrap(fmt.Errorf("%w: %v", ErrMalformedDigest, err))
		}
		return true, nil
	default:
		return false, oops.Code("PASSWORD_DIGEST_INVALID").Wrap(ErrMalformedDigest)
	}
}

// maxArgon2Memory acota el parametro m (KiB) aceptado en un digest almacenado.
const maxArgon2Memory = 1 << 22

func verifyArgon2id(password, digest string) (bool, error) {
	invalid := func(reason string) (bool, error) {
		return false, oops.Code("PASSWORD_DIGEST_INVALID").With("reason", reason).Wrap(ErrMalformedDigest)
	}

	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return invalid("segments")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return invalid("version")
	}
	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return invalid("params")
	}
	// argon2.IDKey entra en panic con t o p en cero y reserva m KiB sin limite.
	if iterations < 1 || threads < 1 || memory < 8*uint32(threads) || memory > maxArgon2Memory {
		return invalid("params")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return invalid("salt")
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > 1024 {
		return invalid("key")
	}

	computed := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
