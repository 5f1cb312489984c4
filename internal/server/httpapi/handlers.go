package httpapi

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/inspectsync/internal/common"
	"github.com/dmitrijs2005/inspectsync/internal/logging"
	"github.com/dmitrijs2005/inspectsync/internal/server/auth"
	"github.com/dmitrijs2005/inspectsync/internal/server/models"
	"github.com/dmitrijs2005/inspectsync/internal/server/services"
	"github.com/dmitrijs2005/inspectsync/internal/wire"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type TokenParser interface {
	ParseToken(token string) (*auth.Claims, error)
}

type UserService interface {
	TokenParser
	Register(ctx context.Context, req wire.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
}

type SyncService interface {
	Sync(ctx context.Context, userID string, req wire.SyncRequest) wire.SyncResponse
	ListSubmissions(ctx context.Context, userID string) ([]wire.RemoteSubmission, error)
}

type CatalogService interface {
	FormsForUser(ctx context.Context, userID, role string) ([]wire.Form, error)
	PutForms(ctx context.Context, forms []wire.Form) error
	Pending(ctx context.Context) (wire.Pending, error)
	PutSites(ctx context.Context, p wire.Pending) error
}

type ExportService interface {
	ExportSubmission(ctx context.Context, userID, role, submissionID string) (wire.Export, error)
}

type handlers struct {
	users   UserService
	sync    SyncService
	catalog CatalogService
	exports ExportService
	log     logging.Logger
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), op+" failed", "error", err)
	} else {
		h.log.Debug(r.Context(), op+" rejected", "error", err)
	}
	respondStatus(w, r, status, msg)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		respondStatus(w, r, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req wire.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := h.users.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	h.log.Info(r.Context(), "user registered", "user", u.ID, "role", u.Role)
	respond(w, r, http.StatusCreated, services.ToWireUser(u))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req wire.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	token, u, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	respond(w, r, http.StatusOK, wire.LoginResponse{AccessToken: token, User: services.ToWireUser(u)})
}

func (h *handlers) syncSubmissions(w http.ResponseWriter, r *http.Request) {
	var req wire.SyncRequest
	if !decode(w, r, &req) {
		return
	}
	c := claimsFrom(r.Context())
	respond(w, r, http.StatusOK, h.sync.Sync(r.Context(), c.UserID, req))
}

func (h *handlers) listSubmissions(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	list, err := h.sync.ListSubmissions(r.Context(), c.UserID)
	if err != nil {
		h.fail(w, r, "list submissions", err)
		return
	}
	respond(w, r, http.StatusOK, list)
}

func (h *handlers) listForms(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	forms, err := h.catalog.FormsForUser(r.Context(), c.UserID, c.Role)
	if err != nil {
		h.fail(w, r, "list forms", err)
		return
	}
	respond(w, r, http.StatusOK, forms)
}

func (h *handlers) putForms(w http.ResponseWriter, r *http.Request) {
	var forms []wire.Form
	if !decode(w, r, &forms) {
		return
	}
	if err := h.catalog.PutForms(r.Context(), forms); err != nil {
		h.fail(w, r, "put forms", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]int{"forms": len(forms)})
}

func (h *handlers) pending(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Pending(r.Context())
	if err != nil {
		h.fail(w, r, "pending", err)
		return
	}
	respond(w, r, http.StatusOK, p)
}

func (h *handlers) putSites(w http.ResponseWriter, r *http.Request) {
	var p wire.Pending
	if !decode(w, r, &p) {
		return
	}
	if err := h.catalog.PutSites(r.Context(), p); err != nil {
		h.fail(w, r, "put sites", err)
		return
	}
	respond(w, r, http.StatusOK, map[string]int{
		"sites":     len(p.Sites),
		"inventory": len(p.InventoryEE) + len(p.InventoryEP),
	})
}

func (h *handlers) exportSubmission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.fail(w, r, "export", common.ErrValidation)
		return
	}
	c := claimsFrom(r.Context())
	exp, err := h.exports.ExportSubmission(r.Context(), c.UserID, c.Role, id)
	if err != nil {
		h.fail(w, r, "export", err)
		return
	}
	respond(w, r, http.StatusOK, exp)
}
