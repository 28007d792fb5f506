package model

import "time"

// Admin is an administrator account as stored in the admin_user table.
// Passwords are stored as Argon2id (or legacy bcrypt) hashes.
type Admin struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PhoneNumber  *string   `json:"phone_number,omitempty" db:"phone_number"`
	PasswordHash string    `json:"-" db:"password_hash"` // never expose
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// AdminSummary is the outward view of an administrator: everything except the
// password hash, plus resolved role names.
type AdminSummary struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	IsActive    bool      `json:"is_active"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary converts an Admin into its outward view.
func (a *Admin) Summary(roles []string) AdminSummary {
	if roles == nil {
		roles = []string{}
	}
	return AdminSummary{
		ID:          a.ID,
		Username:    a.Username,
		Email:       a.Email,
		PhoneNumber: a.PhoneNumber,
		IsActive:    a.IsActive,
		Roles:       roles,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}
