package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound se devuelve cuando no existe la cuenta pedida.
	ErrNotFound = errors.New("not found")
	// ErrConflict agrupa las violaciones de unicidad.
	ErrConflict = errors.New("conflict")

	ErrAdminExists = fmt.Errorf("%w: admin already registered", ErrConflict)
	ErrEmailInUse  = fmt.Errorf("%w: email already in use", ErrConflict)

	// ErrOTPMismatch indica que el OTP almacenado cambio o ya fue consumido.
	ErrOTPMismatch = errors.New("reset otp no longer matches")
	// ErrInvalidOTPState rechaza escrituras que separarian otp y expiracion.
	ErrInvalidOTPState = errors.New("reset otp and expiry must be set together")
)
