package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sleepplanet/sleepplanet/internal/model"
)

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx, so every store method
// that takes one runs the same way on the pool or inside a transaction.
type Querier interface {
	sqlx.ExtContext
}

// Column names a unique administrator attribute.
type Column string

const (
	ColumnUsername Column = "username"
	ColumnEmail    Column = "email"
	ColumnPhone    Column = "phone_number"
)

// Config holds the connection settings for Open.
type Config struct {
	Driver           string
	DSN              string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	CheckoutTimeout  time.Duration
	StatementTimeout time.Duration
	AutoMigrate      bool
	SeedRoles        []string
}

// Store persists administrator accounts, roles and role assignments.
type Store struct {
	db              *sqlx.DB
	dialect         Dialect
	checkoutTimeout time.Duration
}

// Open connects to the configured database, verifies the connection and,
// when requested, creates the schema and seeds the role table.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, err := LookupDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	dsn, err := d.prepareDSN(cfg.DSN, cfg.StatementTimeout)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name, err)
	}

	if d.Name == "sqlite" {
		db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	s := &Store{db: db, dialect: d, checkoutTimeout: cfg.CheckoutTimeout}

	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s database: %w", d.Name, err)
	}

	if d.Name == "sqlite" {
		// Foreign keys are off by default in SQLite.
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if cfg.AutoMigrate {
		if err := s.migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		seed := cfg.SeedRoles
		if len(seed) == 0 {
			seed = model.DefaultRoles
		}
		if err := s.seedRoles(ctx, seed); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the connection pool as a Querier for single-statement reads.
func (s *Store) DB() Querier { return s.db }

// Dialect returns the dialect the store was opened with.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping verifies the database is reachable within the checkout timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withCheckout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *Store) withCheckout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.checkoutTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.checkoutTimeout)
}

// WithTx runs fn inside a single transaction. The transaction commits only if
// fn returns nil; any error or panic rolls it back. The checkout timeout
// bounds acquiring the connection; the transaction itself lives on ctx.
func (s *Store) WithTx(ctx context.Context, fn func(q Querier) error) (err error) {
	checkoutCtx, cancel := s.withCheckout(ctx)
	conn, err := s.db.Connx(checkoutCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback() //nolint:errcheck
			panic(p)
		}
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Administrators
// ---------------------------------------------------------------------------

const adminColumns = "id, username, email, password_hash, phone_number, is_active, created_at, updated_at"

// FindByUsername returns the active administrator with exactly this username.
// Frozen accounts are reported as ErrNotFound.
func (s *Store) FindByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admin_user WHERE username = ? AND is_active = ?")
	if err := sqlx.GetContext(ctx, s.db, &admin, q, username, true); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find admin by username: %w", err)
	}
	// SQLite compares with BINARY collation, but MySQL's default collation is
	// case-insensitive.
	if admin.Username != username {
		return nil, ErrNotFound
	}
	return &admin, nil
}

// GetAdmin returns an administrator by ID regardless of state.
func (s *Store) GetAdmin(ctx context.Context, q Querier, id int64) (*model.Admin, error) {
	var admin model.Admin
	query := q.Rebind("SELECT " + adminColumns + " FROM admin_user WHERE id = ?")
	if err := sqlx.GetContext(ctx, q, &admin, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &admin, nil
}

// IsActive reports whether the administrator exists and is not frozen.
func (s *Store) IsActive(ctx context.Context, id int64) (bool, error) {
	var active []bool
	q := s.db.Rebind("SELECT is_active FROM admin_user WHERE id = ?")
	if err := sqlx.SelectContext(ctx, s.db, &active, q, id); err != nil {
		return false, fmt.Errorf("check admin active: %w", err)
	}
	return len(active) == 1 && active[0], nil
}

// CheckUnique returns a *ConflictError if an administrator, active or frozen,
// already holds value in col.
func (s *Store) CheckUnique(ctx context.Context, q Querier, col Column, value string) error {
	var query string
	switch col {
	case ColumnUsername:
		query = "SELECT COUNT(*) FROM admin_user WHERE username = ?"
	case ColumnEmail:
		query = "SELECT COUNT(*) FROM admin_user WHERE email = ?"
	case ColumnPhone:
		query = "SELECT COUNT(*) FROM admin_user WHERE phone_number = ?"
	default:
		return fmt.Errorf("check unique: unknown column %q", col)
	}

	var count int
	if err := sqlx.GetContext(ctx, q, &count, q.Rebind(query), value); err != nil {
		return fmt.Errorf("check unique %s: %w", col, err)
	}
	if count > 0 {
		return &ConflictError{Column: col, Value: value}
	}
	return nil
}

// CreateAdministrator inserts admin and returns its new ID. CreatedAt and
// UpdatedAt are set on admin. A unique violation raised by the database is
// returned as a *ConflictError.
func (s *Store) CreateAdministrator(ctx context.Context, q Querier, admin *model.Admin) (int64, error) {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	query := `INSERT INTO admin_user
		(username, email, password_hash, phone_number, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	args := []any{admin.Username, admin.Email, admin.PasswordHash, admin.PhoneNumber, admin.IsActive, now, now}

	var id int64
	if s.dialect.SupportsReturning {
		err := q.QueryRowxContext(ctx, q.Rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, s.insertError(err, admin)
		}
	} else {
		result, err := q.ExecContext(ctx, q.Rebind(query), args...)
		if err != nil {
			return 0, s.insertError(err, admin)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("get admin id: %w", err)
		}
	}
	admin.ID = id
	return id, nil
}

func (s *Store) insertError(err error, admin *model.Admin) error {
	if conflict, ok := conflictFromDriver(err, admin.Username, admin.Email, admin.PhoneNumber); ok {
		return conflict
	}
	return fmt.Errorf("insert admin: %w", err)
}

// DeleteAdministrator removes the administrator's role assignments and then
// the administrator row.
func (s *Store) DeleteAdministrator(ctx context.Context, q Querier, id int64) error {
	if _, err := q.ExecContext(ctx, q.Rebind("DELETE FROM user_roles WHERE user_id = ?"), id); err != nil {
		return fmt.Errorf("delete role assignments: %w", err)
	}
	result, err := q.ExecContext(ctx, q.Rebind("DELETE FROM admin_user WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete admin rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive sets the administrator's active flag and bumps updated_at.
func (s *Store) SetActive(ctx context.Context, q Querier, id int64, active bool) error {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		q.Rebind("UPDATE admin_user SET is_active = ?, updated_at = ? WHERE id = ?"), active, now, id)
	if err != nil {
		return fmt.Errorf("set admin active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set admin active rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveWithRoles returns every active administrator ordered by ID, each
// with its role names.
func (s *Store) ListActiveWithRoles(ctx context.Context) ([]model.AdminSummary, error) {
	var admins []model.Admin
	q := s.db.Rebind("SELECT " + adminColumns + " FROM admin_user WHERE is_active = ? ORDER BY id")
	if err := sqlx.SelectContext(ctx, s.db, &admins, q, true); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}

	out := make([]model.AdminSummary, 0, len(admins))
	for i := range admins {
		roles, err := s.RolesOf(ctx, s.db, admins[i].ID)
		if err != nil {
			return nil, err
		}
		out = append(out, admins[i].Summary(roles))
	}
	return out, nil
}

// HasAnyAdmin reports whether at least one admin account exists. This is used
// for first-run detection by the bootstrap command.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admin_user"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

// RolesOf returns the administrator's role names ordered by name.
func (s *Store) RolesOf(ctx context.Context, q Querier, adminID int64) ([]string, error) {
	roles := []string{}
	query := q.Rebind(`SELECT r.name FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ?
		ORDER BY r.name`)
	if err := sqlx.SelectContext(ctx, q, &roles, query, adminID); err != nil {
		return nil, fmt.Errorf("roles of admin %d: %w", adminID, err)
	}
	return roles, nil
}

// RoleIDByName returns the ID of the named role.
func (s *Store) RoleIDByName(ctx context.Context, q Querier, name string) (int64, error) {
	var id int64
	if err := sqlx.GetContext(ctx, q, &id, q.Rebind("SELECT id FROM roles WHERE name = ?"), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get role %s: %w", name, err)
	}
	return id, nil
}

// ListRoles returns all seeded roles ordered by name.
func (s *Store) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := s.db.SelectContext(ctx, &roles, "SELECT id, name FROM roles ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// AssignRole links an administrator to a role.
func (s *Store) AssignRole(ctx context.Context, q Querier, adminID, roleID int64) error {
	if _, err := q.ExecContext(ctx,
		q.Rebind("INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)"), adminID, roleID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}
