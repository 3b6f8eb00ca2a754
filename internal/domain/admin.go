package domain

import "time"

// RoleAdmin marca el unico registro administrador del sistema.
const RoleAdmin = "admin"

// AdminAccount es la cuenta privilegiada que administra el catalogo.
// ResetOTP vacio y ResetOTPExpireAt en 0 significan "sin reset activo".
type AdminAccount struct {
	ID               string    `json:"id" db:"id"`
	Email            string    `json:"email" db:"email"`
	Name             string    `json:"name" db:"name"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Role             string    `json:"role" db:"role"`
	ResetOTP         string    `json:"-" db:"reset_otp"`
	ResetOTPExpireAt int64     `json:"-" db:"reset_otp_expire_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// HasActiveReset indica si hay un OTP de reset almacenado.
func (a AdminAccount) HasActiveReset() bool {
	return a.ResetOTP != "" && a.ResetOTPExpireAt != 0
}

// ResetExpired reporta si el OTP almacenado ya vencio respecto a now.
func (a AdminAccount) ResetExpired(now time.Time) bool {
	return a.ResetOTPExpireAt == 0 || now.UnixMilli() > a.ResetOTPExpireAt
}
