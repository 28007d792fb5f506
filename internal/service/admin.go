package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sleepplanet/sleepplanet/internal/model"
	"github.com/sleepplanet/sleepplanet/internal/password"
	"github.com/sleepplanet/sleepplanet/internal/store"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,20}$`)
	phonePattern    = regexp.MustCompile(`^[0-9]{11}$`)
)

// CreateAdminInput is the payload for creating an administrator.
type CreateAdminInput struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	Email       string   `json:"email"`
	PhoneNumber *string  `json:"phone_number,omitempty"`
	Roles       []string `json:"roles"`
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	AdminID  int64  `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
	Exp      int64  `json:"exp"`
}

// AdminService implements login and the administrator lifecycle.
type AdminService struct {
	store  *store.Store
	hasher *password.Hasher
	tokens *TokenService
	logger *slog.Logger
}

func NewAdminService(st *store.Store, hasher *password.Hasher, tokens *TokenService, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{store: st, hasher: hasher, tokens: tokens, logger: logger}
}

// Tokens returns the service used to issue credentials.
func (s *AdminService) Tokens() *TokenService { return s.tokens }

// Login checks username and password against active administrators and
// issues a credential. Every failure looks the same to the caller.
func (s *AdminService) Login(ctx context.Context, username, pw string) (*LoginResult, error) {
	admin, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, publicf(KindUnauthorized, msgLoginFailed)
		}
		return nil, internalErr("login lookup", err)
	}

	ok, err := s.hasher.Verify(pw, admin.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "admin_id", admin.ID, "error", err)
		return nil, publicf(KindUnauthorized, msgLoginFailed)
	}
	if !ok {
		return nil, publicf(KindUnauthorized, msgLoginFailed)
	}
	if s.hasher.NeedsRehash(admin.PasswordHash) {
		s.logger.Debug("password hash uses outdated parameters", "admin_id", admin.ID)
	}

	roles, err := s.store.RolesOf(ctx, s.store.DB(), admin.ID)
	if err != nil {
		return nil, internalErr("login roles", err)
	}

	token, exp, err := s.tokens.Issue(admin.ID, admin.Username, roles)
	if err != nil {
		return nil, internalErr("login issue token", err)
	}

	return &LoginResult{
		AdminID:  admin.ID,
		Username: admin.Username,
		Token:    token,
		Exp:      exp.Unix(),
	}, nil
}

// requireSuperAdmin re-reads the acting administrator's roles from the store.
// Roles carried in the credential are never trusted for this decision.
func (s *AdminService) requireSuperAdmin(ctx context.Context, actingID int64) error {
	roles, err := s.store.RolesOf(ctx, s.store.DB(), actingID)
	if err != nil {
		return internalErr("load acting roles", err)
	}
	if !slices.Contains(roles, model.RoleSuperAdmin) {
		return publicf(KindForbidden, msgPrivilegeRequired)
	}
	return nil
}

// Create adds a new administrator with the given roles. The privilege check
// runs first, then input validation, both before any write; uniqueness probes,
// the insert and the role assignments share one transaction.
func (s *AdminService) Create(ctx context.Context, actingID int64, in CreateAdminInput) (int64, error) {
	if err := s.requireSuperAdmin(ctx, actingID); err != nil {
		return 0, err
	}
	in, err := normalizeInput(in)
	if err != nil {
		return 0, err
	}
	id, err := s.create(ctx, in)
	if err == nil {
		s.logger.Info("administrator created", "admin_id", id, "username", in.Username, "by", actingID)
	}
	return id, err
}

// Bootstrap creates the first administrator. It refuses to run once any
// administrator exists.
func (s *AdminService) Bootstrap(ctx context.Context, in CreateAdminInput) (int64, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return 0, err
	}
	has, err := s.store.HasAnyAdmin(ctx)
	if err != nil {
		return 0, internalErr("bootstrap check", err)
	}
	if has {
		return 0, publicf(KindConflict, msgAlreadyBootstrap)
	}
	id, err := s.create(ctx, in)
	if err == nil {
		s.logger.Info("initial administrator created", "admin_id", id, "username", in.Username)
	}
	return id, err
}

func (s *AdminService) create(ctx context.Context, in CreateAdminInput) (int64, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, internalErr("hash password", err)
	}

	admin := &model.Admin{
		Username:     in.Username,
		Email:        in.Email,
		PhoneNumber:  in.PhoneNumber,
		PasswordHash: hash,
		IsActive:     true,
	}

	err = s.store.WithTx(ctx, func(q store.Querier) error {
		if err := s.store.CheckUnique(ctx, q, store.ColumnUsername, in.Username); err != nil {
			return err
		}
		if err := s.store.CheckUnique(ctx, q, store.ColumnEmail, in.Email); err != nil {
			return err
		}
		if in.PhoneNumber != nil {
			if err := s.store.CheckUnique(ctx, q, store.ColumnPhone, *in.PhoneNumber); err != nil {
				return err
			}
		}

		id, err := s.store.CreateAdministrator(ctx, q, admin)
		if err != nil {
			return err
		}
		for _, name := range in.Roles {
			roleID, err := s.store.RoleIDByName(ctx, q, name)
			if errors.Is(err, store.ErrNotFound) {
				return publicf(KindNotFound, "role not found: "+name)
			}
			if err != nil {
				return err
			}
			if err := s.store.AssignRole(ctx, q, id, roleID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, storeError("create administrator", err)
	}
	return admin.ID, nil
}

// List returns every active administrator with their roles.
func (s *AdminService) List(ctx context.Context, actingID int64) ([]model.AdminSummary, error) {
	if err := s.requireSuperAdmin(ctx, actingID); err != nil {
		return nil, err
	}
	admins, err := s.store.ListActiveWithRoles(ctx)
	if err != nil {
		return nil, internalErr("list administrators", err)
	}
	return admins, nil
}

// Freeze deactivates an administrator. Freezing an already frozen account is
// a conflict and writes nothing.
func (s *AdminService) Freeze(ctx context.Context, actingID, targetID int64) error {
	if err := s.requireSuperAdmin(ctx, actingID); err != nil {
		return err
	}
	if actingID == targetID {
		return publicf(KindConflict, msgSelfFreeze)
	}

	err := s.store.WithTx(ctx, func(q store.Querier) error {
		admin, err := s.store.GetAdmin(ctx, q, targetID)
		if err != nil {
			return err
		}
		if !admin.IsActive {
			return publicf(KindConflict, msgAlreadyFrozen)
		}
		return s.store.SetActive(ctx, q, targetID, false)
	})
	if err != nil {
		return storeError("freeze administrator", err)
	}
	s.logger.Info("administrator frozen", "admin_id", targetID, "by", actingID)
	return nil
}

// Delete removes an active administrator and their role assignments.
func (s *AdminService) Delete(ctx context.Context, actingID, targetID int64) error {
	if err := s.requireSuperAdmin(ctx, actingID); err != nil {
		return err
	}
	if actingID == targetID {
		return publicf(KindConflict, msgSelfDelete)
	}

	err := s.store.WithTx(ctx, func(q store.Querier) error {
		admin, err := s.store.GetAdmin(ctx, q, targetID)
		if err != nil {
			return err
		}
		if !admin.IsActive {
			return publicf(KindConflict, msgNotActive)
		}
		return s.store.DeleteAdministrator(ctx, q, targetID)
	})
	if err != nil {
		return storeError("delete administrator", err)
	}
	s.logger.Info("administrator deleted", "admin_id", targetID, "by", actingID)
	return nil
}

// storeError maps store errors onto public errors where the caller can act on
// them, and wraps everything else as internal.
func storeError(op string, err error) error {
	var conflict *store.ConflictError
	switch {
	case errors.As(err, &conflict):
		return publicf(KindConflict, conflict.Error())
	case errors.Is(err, store.ErrNotFound):
		return publicf(KindNotFound, msgAdminNotFound)
	}
	return internalErr(op, err)
}

// normalizeInput trims and validates the create payload and collapses
// duplicate role names.
func normalizeInput(in CreateAdminInput) (CreateAdminInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.PhoneNumber != nil {
		phone := strings.TrimSpace(*in.PhoneNumber)
		if phone == "" {
			in.PhoneNumber = nil
		} else {
			in.PhoneNumber = &phone
		}
	}

	if !usernamePattern.MatchString(in.Username) {
		return in, publicf(KindInvalid, "username must be 4-20 characters of letters, digits or underscore")
	}
	if n := utf8.RuneCountInString(in.Password); n < 8 || n > 32 {
		return in, publicf(KindInvalid, "password must be 8-32 characters")
	}
	if !strings.ContainsAny(in.Password, "0123456789") {
		return in, publicf(KindInvalid, "password must contain at least one digit")
	}
	if in.Email == "" {
		return in, publicf(KindInvalid, "email is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return in, publicf(KindInvalid, fmt.Sprintf("invalid email address: %s", in.Email))
	}
	if in.PhoneNumber != nil && !phonePattern.MatchString(*in.PhoneNumber) {
		return in, publicf(KindInvalid, "phone number must be exactly 11 digits")
	}

	roles := make([]string, 0, len(in.Roles))
	for _, r := range in.Roles {
		r = strings.TrimSpace(r)
		if r != "" && !slices.Contains(roles, r) {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return in, publicf(KindInvalid, "at least one role is required")
	}
	in.Roles = roles
	return in, nil
}
