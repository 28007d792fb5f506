package store

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested resource does not exist in the store.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by every *ConflictError.
	ErrConflict = errors.New("conflict")
)

// ConflictError reports that a unique column already holds value.
type ConflictError struct {
	Column Column
	Value  string
}

func (e *ConflictError) Error() string {
	return string(e.Column) + " already exists: " + e.Value
}

// Is makes errors.Is(err, ErrConflict) true for any ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// uniqueViolation reports whether err is a unique-constraint failure raised by
// one of the supported drivers. The returned text names the violated
// constraint or column and never contains the offending value.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		// Duplicate entry '<value>' for key '<table>.<constraint>'
		if i := strings.LastIndex(myErr.Message, "for key"); i >= 0 {
			return myErr.Message[i:], true
		}
		return "", true
	}
	msg := err.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed"); i >= 0 {
		return msg[i:], true
	}
	return "", false
}

// conflictFromDriver translates a unique violation on admin_user into a
// ConflictError carrying the offending value.
func conflictFromDriver(err error, username, email string, phone *string) (*ConflictError, bool) {
	text, ok := uniqueViolation(err)
	if !ok {
		return nil, false
	}
	switch {
	case strings.Contains(text, string(ColumnPhone)):
		v := ""
		if phone != nil {
			v = *phone
		}
		return &ConflictError{Column: ColumnPhone, Value: v}, true
	case strings.Contains(text, string(ColumnEmail)):
		return &ConflictError{Column: ColumnEmail, Value: email}, true
	default:
		return &ConflictError{Column: ColumnUsername, Value: username}, true
	}
}
