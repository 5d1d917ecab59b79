// Package api exposes navigation, settings and enquiry intake over HTTP.
//
// Read endpoints never fail because the CMS is unreachable: they answer with
// whatever data the store holds, plus the fetch error message, so the front
// end can render a placeholder.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/mchmarny/campusweb/pkg/enquiry"
	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/mchmarny/campusweb/pkg/metric"
	"github.com/mchmarny/campusweb/pkg/nav"
	"github.com/mchmarny/campusweb/pkg/settings"
	"github.com/mchmarny/campusweb/pkg/store"
)

// MaxEnquiryBytes caps the size of an enquiry request body.
const MaxEnquiryBytes = 64 << 10 // 64 KB

// SiteData is the store surface used by the handlers.
type SiteData interface {
	Snapshot() store.Snapshot
	Invalidate()
	EnsureFresh(ctx context.Context) error
}

// Submitter forwards enquiries.
type Submitter interface {
	Submit(ctx context.Context, e enquiry.Enquiry) (*enquiry.Receipt, error)
}

// Handler serves the site API.
type Handler struct {
	data      SiteData
	composer  nav.Composer
	defaults  settings.Provider
	enquiries Submitter
	metrics   *metric.Metrics
}

// New returns a Handler. A nil metrics records nothing.
func New(data SiteData, composer nav.Composer, defaults settings.Provider, enquiries Submitter, m *metric.Metrics) *Handler {
	if m == nil {
		m = metric.Nop()
	}
	if defaults == nil {
		defaults = settings.Static(settings.Defaults())
	}

	return &Handler{
		data:      data,
		composer:  composer,
		defaults:  defaults,
		enquiries: enquiries,
		metrics:   m,
	}
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/navigation", h.Navigation)
	r.Get("/menus/{label}", h.Menu)
	r.Get("/settings", h.Settings)
	r.Post("/enquiries", h.SubmitEnquiry)
	r.Post("/refresh", h.Refresh)
	return r
}

// snapshot returns the store contents, refreshing first when any resource was
// invalidated since its last fetch.
func (h *Handler) snapshot(ctx context.Context) store.Snapshot {
	snap := h.data.Snapshot()
	if !snap.MenuState.Stale && !snap.SettingsState.Stale {
		return snap
	}

	if err := h.data.EnsureFresh(ctx); err != nil {
		slog.Warn("stale site data refresh failed", "error", err)
	}
	return h.data.Snapshot()
}

type navigationResponse struct {
	nav.Navigation
	Error string `json:"error,omitempty"`
}

// Navigation renders every navigation region.
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(r.Context())

	writeJSON(w, http.StatusOK, navigationResponse{
		Navigation: h.composer.Compose(snap.Menus, snap.Loading()),
		Error:      snap.MenuState.Err,
	})
}

type menuResponse struct {
	Label   string      `json:"label"`
	Items   []menu.Node `json:"items"`
	Loading bool        `json:"loading"`
	Error   string      `json:"error,omitempty"`
}

// Menu renders the tree of a single named menu. The optional depth query
// parameter sets how many levels are kept.
func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if l, err := url.PathUnescape(label); err == nil {
		label = l
	}

	b := h.composer.Builder
	if d := r.URL.Query().Get("depth"); d != "" {
		depth, err := strconv.Atoi(d)
		if err != nil || depth < 1 {
			writeError(w, http.StatusBadRequest, "depth must be a positive integer")
			return
		}
		b.MaxDepth = depth
	}

	snap := h.snapshot(r.Context())
	tree, ok := b.TreeFor(snap.Menus, label)
	if !ok && !snap.Loading() {
		writeError(w, http.StatusNotFound, "menu not found")
		return
	}

	writeJSON(w, http.StatusOK, menuResponse{
		Label:   label,
		Items:   tree,
		Loading: snap.Loading(),
		Error:   snap.MenuState.Err,
	})
}

type settingsResponse struct {
	Settings settings.Settings `json:"settings"`
	Loading  bool              `json:"loading"`
	Error    string            `json:"error,omitempty"`
}

// Settings returns the resolved site settings.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(r.Context())

	writeJSON(w, http.StatusOK, settingsResponse{
		Settings: settings.Resolve(snap.Settings, h.defaults.Defaults()),
		Loading:  snap.SettingsState.Pending(),
		Error:    snap.SettingsState.Err,
	})
}

// SubmitEnquiry validates and forwards a contact enquiry.
func (h *Handler) SubmitEnquiry(w http.ResponseWriter, r *http.Request) {
	var e enquiry.Enquiry
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxEnquiryBytes)).Decode(&e); err != nil {
		h.metrics.Enquiries.Increment("invalid")
		writeError(w, http.StatusBadRequest, "invalid enquiry payload")
		return
	}

	receipt, err := h.enquiries.Submit(r.Context(), e)
	if err != nil {
		var verr *enquiry.ValidationError
		if errors.As(err, &verr) {
			h.metrics.Enquiries.Increment("invalid")
			writeErrorFields(w, http.StatusUnprocessableEntity, "invalid enquiry", verr.Fields)
			return
		}

		h.metrics.Enquiries.Increment("error")
		slog.Error("enquiry submission failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to submit enquiry, please try again later")
		return
	}

	h.metrics.Enquiries.Increment("ok")
	writeJSON(w, http.StatusCreated, receipt)
}

type refreshResponse struct {
	Menus    store.State `json:"menus"`
	Settings store.State `json:"settings"`
}

// Refresh invalidates the store and fetches fresh data before answering.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.data.Invalidate()
	if err := h.data.EnsureFresh(r.Context()); err != nil {
		slog.Warn("refresh incomplete", "error", err)
	}

	snap := h.data.Snapshot()
	writeJSON(w, http.StatusOK, refreshResponse{
		Menus:    snap.MenuState,
		Settings: snap.SettingsState,
	})
}
