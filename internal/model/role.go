package model

// Role is a named privilege bucket. Roles are reference data: they are seeded
// at migration time and never created or deleted through the admin API.
type Role struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// RoleSuperAdmin is the role allowed to manage the administrator population.
const RoleSuperAdmin = "super_admin"

// DefaultRoles are seeded when no explicit role list is configured.
var DefaultRoles = []string{RoleSuperAdmin, "admin", "editor", "viewer"}
