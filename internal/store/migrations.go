package store

import (
	"context"
	"fmt"
	"strings"
)

// schema returns the DDL for the dialect. Constraint names include the column
// name so unique violations can be traced back to the column on every driver.
func (d Dialect) schema() []string {
	var (
		pk       string
		text     string
		boolType string
		ts       string
	)
	switch d.Name {
	case "postgres":
		pk, text, boolType, ts = "BIGSERIAL PRIMARY KEY", "VARCHAR(255)", "BOOLEAN", "TIMESTAMPTZ"
	case "mysql":
		pk, text, boolType, ts = "BIGINT AUTO_INCREMENT PRIMARY KEY", "VARCHAR(255)", "BOOLEAN", "DATETIME(6)"
	default:
		pk, text, boolType, ts = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT", "INTEGER", "DATETIME"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS admin_user (
			id ` + pk + `,
			username ` + text + ` NOT NULL,
			email ` + text + ` NOT NULL,
			password_hash ` + text + ` NOT NULL,
			phone_number ` + text + `,
			is_active ` + boolType + ` NOT NULL DEFAULT TRUE,
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			CONSTRAINT uq_admin_user_username UNIQUE (username),
			CONSTRAINT uq_admin_user_email UNIQUE (email),
			CONSTRAINT uq_admin_user_phone_number UNIQUE (phone_number)
		)`,

		`CREATE TABLE IF NOT EXISTS roles (
			id ` + pk + `,
			name ` + text + ` NOT NULL,
			CONSTRAINT uq_roles_name UNIQUE (name)
		)`,

		`CREATE TABLE IF NOT EXISTS user_roles (
			user_id BIGINT NOT NULL,
			role_id BIGINT NOT NULL,
			PRIMARY KEY (user_id, role_id),
			CONSTRAINT fk_user_roles_user FOREIGN KEY (user_id) REFERENCES admin_user(id),
			CONSTRAINT fk_user_roles_role FOREIGN KEY (role_id) REFERENCES roles(id)
		)`,
	}
	if d.Name == "sqlite" {
		// SQLite spells boolean literals as integers.
		stmts[0] = strings.Replace(stmts[0], "DEFAULT TRUE", "DEFAULT 1", 1)
	}
	return stmts
}

func (s *Store) migrate(ctx context.Context) error {
	for _, m := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// seedRoles inserts any role in names that does not exist yet. Running it
// repeatedly is a no-op.
func (s *Store) seedRoles(ctx context.Context, names []string) error {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		var count int
		if err := s.db.GetContext(ctx, &count, s.db.Rebind("SELECT COUNT(*) FROM roles WHERE name = ?"), name); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, s.db.Rebind("INSERT INTO roles (name) VALUES (?)"), name); err != nil {
			if _, dup := uniqueViolation(err); dup {
				continue
			}
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}
