package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/oops"
	_ "modernc.org/sqlite"

	"food-admin/internal/domain"
)

// SQLiteAdminRepository guarda la cuenta admin en un archivo SQLite local.
// Pensado para instalaciones de un solo nodo sin Postgres.
type SQLiteAdminRepository struct {
	db *sqlx.DB
}

// NewSQLiteAdminRepository abre (o crea) la base en dataDir. Con "" usa memoria.
func NewSQLiteAdminRepository(dataDir string) (*SQLiteAdminRepository, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "admin.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open admin database: %w", err)
	}

	// SQLite no soporta escrituras concurrentes; un unico escritor serializa el alta.
	db.SetMaxOpenConns(1)

	r := &SQLiteAdminRepository{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate admin database: %w", err)
	}
	return r, nil
}

func (r *SQLiteAdminRepository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'admin',
			reset_otp TEXT NOT NULL DEFAULT '',
			reset_otp_expire_at INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CHECK ((reset_otp = '') = (reset_otp_expire_at = 0))
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS admins_email_key ON admins (LOWER(email))`,
		`CREATE UNIQUE INDEX IF NOT EXISTS admins_single_admin_idx ON admins (role) WHERE role = 'admin'`,
	}
	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Close cierra la conexion subyacente.
func (r *SQLiteAdminRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteAdminRepository) Create(ctx context.Context, account domain.AdminAccount) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "begin").Wrap(err)
	}

	var adminExists bool
	if err := tx.GetContext(ctx, &adminExists,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE role = ?)`, domain.RoleAdmin); err != nil {
		_ = tx.Rollback()
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "check admin role").Wrap(err)
	}
	if adminExists {
		_ = tx.Rollback()
		return ErrAdminExists
	}

	var emailTaken bool
	if err := tx.GetContext(ctx, &emailTaken,
		`SELECT EXISTS (SELECT 1 FROM admins WHERE LOWER(email) = LOWER(?))`, account.Email); err != nil {
		_ = tx.Rollback()
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "check email").Wrap(err)
	}
	if emailTaken {
		_ = tx.Rollback()
		return ErrEmailInUse
	}

	const q = `INSERT INTO admins
		(id, email, name, password_hash, role, reset_otp, reset_otp_expire_at, created_at, updated_at)
		VALUES
		(:id, :email, :name, :password_hash, :role, '', 0, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, q, account); err != nil {
		_ = tx.Rollback()
		if conflict := classifySQLiteConflict(err); conflict != nil {
			return conflict
		}
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "insert admin").Wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return oops.Code("ADMIN_CREATE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

func (r *SQLiteAdminRepository) GetByEmail(ctx context.Context, email string) (domain.AdminAccount, error) {
	var account domain.AdminAccount
	err := r.db.GetContext(ctx, &account,
		`SELECT `+adminColumns+` FROM admins WHERE LOWER(email) = LOWER(?)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AdminAccount{}, oops.Code("ADMIN_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.AdminAccount{}, oops.Code("ADMIN_GET_BY_EMAIL_FAILED").Wrap(err)
	}
	return account, nil
}

func (r *SQLiteAdminRepository) GetByID(ctx context.Context, id string) (domain.AdminAccount, error) {
	var account domain.AdminAccount
	err := r.db.GetContext(ctx, &account, `SELECT `+adminColumns+` FROM admins WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AdminAccount{}, oops.Code("ADMIN_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	if err != nil {
		return domain.AdminAccount{}, oops.Code("ADMIN_GET_BY_ID_FAILED").With("id", id).Wrap(err)
	}
	return account, nil
}

func (r *SQLiteAdminRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE admins SET password_hash = ?, reset_otp = '', reset_otp_expire_at = 0, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id)
	if err != nil {
		return oops.Code("ADMIN_UPDATE_PASSWORD_FAILED").With("id", id).Wrap(err)
	}
	return requireAffected(result, id)
}

func (r *SQLiteAdminRepository) SetResetOTP(ctx context.Context, id, otp string, expireAt int64) error {
	if otp == "" || expireAt <= 0 {
		return ErrInvalidOTPState
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE admins SET reset_otp = ?, reset_otp_expire_at = ?, updated_at = ? WHERE id = ?`,
		otp, expireAt, time.Now().UTC(), id)
	if err != nil {
		return oops.Code("ADMIN_SET_RESET_OTP_FAILED").With("id", id).Wrap(err)
	}
	return requireAffected(result, id)
}

func (r *SQLiteAdminRepository) ClearResetOTP(ctx context.Context, id, otp string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE admins SET reset_otp = '', reset_otp_expire_at = 0, updated_at = ? WHERE id = ? AND reset_otp = ?`,
		time.Now().UTC(), id, otp); err != nil {
		return oops.Code("ADMIN_CLEAR_RESET_OTP_FAILED").With("id", id).Wrap(err)
	}
	return nil
}

func (r *SQLiteAdminRepository) ConsumeResetOTP(ctx context.Context, id, otp, passwordHash string) error {
	if otp == "" {
		return ErrOTPMismatch
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE admins SET password_hash = ?, reset_otp = '', reset_otp_expire_at = 0, updated_at = ?
		 WHERE id = ? AND reset_otp = ?`,
		passwordHash, time.Now().UTC(), id, otp)
	if err != nil {
		return oops.Code("ADMIN_CONSUME_RESET_OTP_FAILED").With("id", id).Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("ADMIN_CONSUME_RESET_OTP_FAILED").With("operation", "rows affected").Wrap(err)
	}
	if n == 0 {
		return ErrOTPMismatch
	}
	return nil
}

func (r *SQLiteAdminRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("ADMIN_UPDATE_FAILED").With("operation", "rows affected").Wrap(err)
	}
	if n == 0 {
		return oops.Code("ADMIN_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
	}
	return nil
}

func classifySQLiteConflict(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") {
		return nil
	}
	switch {
	case strings.Contains(msg, "admins.role"), strings.Contains(msg, singleAdminIndex):
		return ErrAdminExists
	case strings.Contains(msg, "email"):
		return ErrEmailInUse
	default:
		return ErrConflict
	}
}
