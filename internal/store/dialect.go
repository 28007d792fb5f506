package store

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect captures the per-database differences the store cares about.
type Dialect struct {
	// Name is the configured driver name: postgres, mysql or sqlite.
	Name string
	// DriverName is the database/sql driver registered for the dialect.
	DriverName string
	// SupportsReturning reports whether INSERT ... RETURNING id works.
	SupportsReturning bool
}

var dialects = map[string]Dialect{
	"postgres": {Name: "postgres", DriverName: "pgx", SupportsReturning: true},
	"mysql":    {Name: "mysql", DriverName: "mysql", SupportsReturning: false},
	"sqlite":   {Name: "sqlite", DriverName: "sqlite", SupportsReturning: true},
}

// LookupDialect returns the dialect registered under name.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
	}
	return d, nil
}

// prepareDSN adjusts a user supplied DSN so the driver behaves the way the
// store expects: timestamps scan into time.Time and the server enforces the
// statement timeout.
func (d Dialect) prepareDSN(dsn string, statementTimeout time.Duration) (string, error) {
	switch d.Name {
	case "mysql":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		if statementTimeout > 0 {
			cfg.ReadTimeout = statementTimeout
			cfg.WriteTimeout = statementTimeout
		}
		return cfg.FormatDSN(), nil

	case "postgres":
		if statementTimeout <= 0 {
			return dsn, nil
		}
		ms := fmt.Sprintf("%d", statementTimeout.Milliseconds())
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			u, err := url.Parse(dsn)
			if err != nil {
				return "", fmt.Errorf("parse postgres dsn: %w", err)
			}
			q := u.Query()
			if q.Get("statement_timeout") == "" {
				q.Set("statement_timeout", ms)
			}
			u.RawQuery = q.Encode()
			return u.String(), nil
		}
		if strings.Contains(dsn, "statement_timeout=") {
			return dsn, nil
		}
		// keyword/value form
		return strings.TrimSpace(dsn + " statement_timeout=" + ms), nil

	case "sqlite":
		if dsn == "" {
			return ":memory:", nil
		}
		if !strings.Contains(dsn, "_pragma=busy_timeout") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "_pragma=busy_timeout(5000)"
		}
		return dsn, nil
	}
	return dsn, nil
}
