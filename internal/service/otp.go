package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

// Los codigos se sortean uniformemente en [100000, 999999].
const (
	otpMin  = 100000
	otpSpan = 900000
)

// generateOTP devuelve el codigo en claro (para el email) y su digest salado
// (para el store).
func generateOTP() (string, string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", "", err
	}
	code := strconv.FormatInt(otpMin+n.Int64(), 10)

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	return code, saltStr + ":" + hashOTP(saltStr, code), nil
}

func verifyOTP(code, stored string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(hashOTP(parts[0], code)), []byte(parts[1])) == 1
}

func hashOTP(saltStr, code string) string {
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	return base64.StdEncoding.EncodeToString(hashBytes[:])
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
