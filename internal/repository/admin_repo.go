package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"food-admin/internal/domain"
)

// AdminRepository define el contrato de persistencia para la cuenta admin.
// No existe un update generico: cada campo mutable tiene su operacion.
type AdminRepository interface {
	Create(ctx context.Context, account domain.AdminAccount) error
	GetByEmail(ctx context.Context, email string) (domain.AdminAccount, error)
	GetByID(ctx context.Context, id string) (domain.AdminAccount, error)
	// UpdatePassword reemplaza el hash y limpia el OTP en la misma escritura.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetOTP(ctx context.Context, id, otp string, expireAt int64) error
	// ClearResetOTP limpia el OTP solo si sigue siendo otp.
	ClearResetOTP(ctx context.Context, id, otp string) error
	// ConsumeResetOTP cambia el password solo si el OTP almacenado sigue siendo otp.
	ConsumeResetOTP(ctx context.Context, id, otp, passwordHash string) error
	Ping(ctx context.Context) error
}

const (
	singleAdminIndex = "admins_single_admin_idx"
	emailIndex       = "admins_email_key"

	adminColumns = `id, email, name, password_hash, role, reset_otp, reset_otp_expire_at, created_at, updated_at`
)

// pgxPool es el subconjunto de pgxpool.Pool que usa el repositorio.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PgAdminRepository implementa AdminRepository usando pgx.
type PgAdminRepository struct {
	pool pgxPool
}

func NewPgAdminRepository(pool pgxPool) *PgAdminRepository {
	return &PgAdminRepository{pool: pool}
}

// Create inserta la cuenta dentro de una transaccion que revisa primero el
// marcador de rol y el email. Los indices unicos cubren las carreras entre procesos.
func (r *PgAdminRepository) Create(ctx context.Context, account domain.AdminAccount) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "begin").Wrap(err)
	}

	var adminExists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE role = $1)`, domain.RoleAdmin,
	).Scan(&adminExists); err != nil {
		_ = tx.Rollback(ctx)
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "check admin role").Wrap(err)
	}
	if adminExists {
		_ = tx.Rollback(ctx)
		return ErrAdminExists
	}

	var emailTaken bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE LOWER(email) = LOWER($1))`, account.Email,
	).Scan(&emailTaken); err != nil {
		_ = tx.Rollback(ctx)
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "check email").Wrap(err)
	}
	if emailTaken {
		_ = tx.Rollback(ctx)
		return ErrEmailInUse
	}

	const query = `
		INSERT INTO admins (id, email, name, password_hash, role, reset_otp, reset_otp_expire_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, '', 0, $6, $7)
	`
	if _, err := tx.Exec(ctx, query,
		account.ID,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.Role,
		account.CreatedAt,
		account.UpdatedAt,
	); err != nil {
		_ = tx.Rollback(ctx)
		if conflict := classifyPgConflict(err); conflict != nil {
			return conflict
		}
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "insert admin").Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if conflict := classifyPgConflict(err); conflict != nil {
			return conflict
		}
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

func (r *PgAdminRepository) GetByEmail(ctx context.Context, email string) (domain.AdminAccount, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE LOWER(email) = LOWER($1)`, email)
	account, err := scanAdmin(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdminAccount{}, oops.Code("ADMIN_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.AdminAccount{}, oops.Code("ADMIN_GET_BY_EMAIL_FAILED").Wrap(err)
	}
	return account, nil
}

func (r *PgAdminRepository) GetByID(ctx context.Context, id string) (domain.AdminAccount, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	account, err := scanAdmin(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AdminAccount{}, oops.Code("ADMIN_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.AdminAccount{}, oops.Code("ADMIN_GET_BY_ID_FAILED").With("id", id).Wrap(err)
	}
	return account, nil
}

func (r *PgAdminRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `
		UPDATE admins
		SET password_hash = $2, reset_otp = '', reset_otp_expire_at = 0, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return oops.Code("ADMIN_UPDATE_PASSWORD_FAILED").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ADMIN_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgAdminRepository) SetResetOTP(ctx context.Context, id, otp string, expireAt int64) error {
	if otp == "" || expireAt <= 0 {
		return ErrInvalidOTPState
	}
	const query = `
		UPDATE admins
		SET reset_otp = $2, reset_otp_expire_at = $3, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, otp, expireAt)
	if err != nil {
		return oops.Code("ADMIN_SET_RESET_OTP_FAILED").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ADMIN_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

func (r *PgAdminRepository) ClearResetOTP(ctx context.Context, id, otp string) error {
	const query = `
		UPDATE admins
		SET reset_otp = '', reset_otp_expire_at = 0, updated_at = now()
		WHERE id = $1 AND reset_otp = $2
	`
	if _, err := r.pool.Exec(ctx, query, id, otp); err != nil {
		return oops.Code("ADMIN_CLEAR_RESET_OTP_FAILED").With("id", id).Wrap(err)
	}
	return nil
}

func (r *PgAdminRepository) ConsumeResetOTP(ctx context.Context, id, otp, passwordHash string) error {
	if otp == "" {
		return ErrOTPMismatch
	}
	const query = `
		UPDATE admins
		SET password_hash = $3, reset_otp = '', reset_otp_expire_at = 0, updated_at = now()
		WHERE id = $1 AND reset_otp = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, otp, passwordHash)
	if err != nil {
		return oops.Code("ADMIN_CONSUME_RESET_OTP_FAILED").With("id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOTPMismatch
	}
	return nil
}

func (r *PgAdminRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanAdmin(row pgx.Row) (domain.AdminAccount, error) {
	var a domain.AdminAccount
	err := row.Scan(
		&a.ID,
		&a.Email,
		&a.Name,
		&a.PasswordHash,
		&a.Role,
		&a.ResetOTP,
		&a.ResetOTPExpireAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func classifyPgConflict(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch {
	case pgErr.ConstraintName == singleAdminIndex:
		return ErrAdminExists
	case pgErr.ConstraintName == emailIndex, strings.Contains(pgErr.ConstraintName, "email"):
		return ErrEmailInUse
	default:
		return ErrConflict
	}
}
