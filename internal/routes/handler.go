package routes

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/rbac"
)

// Handler exposes route management, the menu and route-access queries.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers route management endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead, rbac.ResourceRoute))
		r.Get("/", h.listRoutes)
		r.Get("/{id}", h.getRoute)
	})
	r.With(h.rbac.Require(rbac.ActionCreate, rbac.ResourceRoute)).Post("/", h.createRoute)
	r.With(h.rbac.Require(rbac.ActionUpdate, rbac.ResourceRoute)).Put("/{id}", h.updateRoute)
	r.With(h.rbac.Require(rbac.ActionDelete, rbac.ResourceRoute)).Delete("/{id}", h.deleteRoute)
}

// MountNavigation registers the menu and access endpoints, open to any
// authenticated principal.
func (h *Handler) MountNavigation(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Authenticate)
		r.Get("/menu", h.menu)
		r.Get("/access", h.access)
	})
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.service.ListRoutes(r.Context())
	if err != nil {
		h.fail(w, "list routes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, routes)
}

func (h *Handler) getRoute(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	route, err := h.service.GetRoute(r.Context(), id)
	if err != nil {
		h.fail(w, "get route", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) createRoute(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	route, err := h.service.CreateRoute(r.Context(), in)
	if err != nil {
		h.fail(w, "create route", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, route)
}

func (h *Handler) updateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	route, err := h.service.UpdateRoute(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update route", err)
		return
	}
	httpx.JSON(w, http.StatusOK, route)
}

func (h *Handler) deleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRoute(r.Context(), id); err != nil {
		h.fail(w, "delete route", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, rbac.ErrUnauthenticated)
		return
	}
	menu, err := h.service.GetMenuForPrincipal(r.Context(), principal.ID)
	if err != nil {
		h.fail(w, "project menu", err)
		return
	}
	httpx.JSON(w, http.StatusOK, menu)
}

func (h *Handler) access(w http.ResponseWriter, r *http.Request) {
	principal := rbac.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, rbac.ErrUnauthenticated)
		return
	}
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		httpx.RespondError(w, &rbac.ValidationError{Field: "path", Reason: "required"})
		return
	}
	allowed, err := h.service.CheckAccess(r.Context(), principal.ID, path)
	if err != nil {
		h.fail(w, "check access", err)
		return
	}
	httpx.JSON(w, http.StatusOK, AccessResult{Path: path, Allowed: allowed})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
