package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sleepplanet/sleepplanet/internal/metrics"
	"github.com/sleepplanet/sleepplanet/internal/model"
	"github.com/sleepplanet/sleepplanet/internal/server/middleware"
	"github.com/sleepplanet/sleepplanet/internal/service"
)

// AdminHandler serves the /api/v1/sys endpoints: login, logout and the
// administrator lifecycle.
type AdminHandler struct {
	svc          *service.AdminService
	metrics      *metrics.Metrics
	logger       *slog.Logger
	cookieSecure bool
}

// NewAdminHandler creates an AdminHandler. cookieSecure marks the credential
// cookie Secure; enable it whenever the API is served over TLS.
func NewAdminHandler(svc *service.AdminService, m *metrics.Metrics, logger *slog.Logger, cookieSecure bool) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{svc: svc, metrics: m, logger: logger, cookieSecure: cookieSecure}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the credentials and issues a token, returned both in the body
// and as the jwt_token cookie.
// POST /api/v1/sys/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		var pub *service.PublicError
		if errors.As(err, &pub) {
			h.metrics.Login("failure")
		} else {
			h.metrics.Login("error")
		}
		h.writeServiceError(w, r, err)
		return
	}
	h.metrics.Login("success")

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   int(h.svc.Tokens().TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeOK(w, http.StatusOK, "login success", res)
}

// Logout clears the credential cookie. Tokens are stateless; a bearer token
// held elsewhere stays valid until it expires or the account is frozen.
// POST /api/v1/sys/logout
func (h *AdminHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAuthorized(w, r); !ok {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeOK(w, http.StatusOK, "logout success", nil)
}

type createAdminResponse struct {
	ID int64 `json:"id"`
}

// CreateAdmin adds an administrator.
// POST /api/v1/sys/admins
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuthorized(w, r)
	if !ok {
		return
	}

	var in service.CreateAdminInput
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	id, err := h.svc.Create(r.Context(), claims.AdminID, in)
	if err != nil {
		h.opFailed(w, r, "create", err)
		return
	}
	h.metrics.AdminOp("create", "ok")
	writeOK(w, http.StatusCreated, "administrator created", createAdminResponse{ID: id})
}

// ListAdmins returns every active administrator with its roles.
// GET /api/v1/sys/admins
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuthorized(w, r)
	if !ok {
		return
	}

	admins, err := h.svc.List(r.Context(), claims.AdminID)
	if err != nil {
		h.opFailed(w, r, "list", err)
		return
	}
	if admins == nil {
		admins = []model.AdminSummary{}
	}
	h.metrics.AdminOp("list", "ok")
	writeOK(w, http.StatusOK, "ok", model.ListData{
		Resource: admins,
		Meta:     model.ListMeta{Count: len(admins)},
	})
}

// FreezeAdmin deactivates an administrator.
// GET|POST /api/v1/sys/admins/{id}/freeze
func (h *AdminHandler) FreezeAdmin(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuthorized(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Freeze(r.Context(), claims.AdminID, id); err != nil {
		h.opFailed(w, r, "freeze", err)
		return
	}
	h.metrics.AdminOp("freeze", "ok")
	writeOK(w, http.StatusOK, "administrator frozen", nil)
}

// DeleteAdmin removes an administrator and its role assignments.
// POST /api/v1/sys/admins/{id}/delete
func (h *AdminHandler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.requireAuthorized(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.svc.Delete(r.Context(), claims.AdminID, id); err != nil {
		h.opFailed(w, r, "delete", err)
		return
	}
	h.metrics.AdminOp("delete", "ok")
	writeOK(w, http.StatusOK, "administrator deleted", nil)
}

// requireAuthorized answers the request itself unless the guard marked it
// Authorized.
func (h *AdminHandler) requireAuthorized(w http.ResponseWriter, r *http.Request) (*service.Claims, bool) {
	res := middleware.AuthFrom(r.Context())
	switch res.State {
	case middleware.Authorized:
		return res.Claims, true
	case middleware.Forbidden:
		status := res.Status
		if status == 0 {
			status = http.StatusForbidden
		}
		writeError(w, status, res.Reason)
	default:
		writeError(w, http.StatusUnauthorized, res.Reason)
	}
	return nil, false
}

func (h *AdminHandler) opFailed(w http.ResponseWriter, r *http.Request, op string, err error) {
	var pub *service.PublicError
	if errors.As(err, &pub) {
		h.metrics.AdminOp(op, pub.Kind.String())
	} else {
		h.metrics.AdminOp(op, "error")
	}
	h.writeServiceError(w, r, err)
}

// writeServiceError maps service errors onto HTTP responses. Internal errors
// are logged in full and reported with a fixed message.
func (h *AdminHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var pub *service.PublicError
	if errors.As(err, &pub) {
		writeError(w, pub.Kind.HTTPStatus(), pub.Message)
		return
	}

	attrs := []any{"request_id", middleware.GetRequestID(r.Context()), "error", err}
	var ie *service.InternalError
	if errors.As(err, &ie) {
		attrs = append(attrs, "op", ie.Op)
	}
	h.logger.Error("request failed", attrs...)
	writeError(w, http.StatusInternalServerError, service.InternalMessage)
}
