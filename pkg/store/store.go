// Package store holds the site data fetched from the CMS: the named menus and
// the settings record. A Store is created once and injected into whatever
// reads it; its contents change only through Refresh, EnsureFresh and Run.
//
// Each resource is fetched independently. A failed fetch records its error
// message and keeps the last successful (or empty) data, so readers always get
// something renderable.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mchmarny/campusweb/pkg/menu"
	"github.com/mchmarny/campusweb/pkg/metric"
	"github.com/mchmarny/campusweb/pkg/settings"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a shared fetch, which outlives the caller that started it.
const DefaultFetchTimeout = 30 * time.Second

const (
	resourceMenus    = "menus"
	resourceSettings = "settings"
)

// Source fetches site data from the backend.
type Source interface {
	Menus(ctx context.Context) ([]menu.NamedMenu, error)
	Settings(ctx context.Context) (settings.Raw, error)
}

// State describes the fetch lifecycle of one resource.
type State struct {
	// Loading is true while a fetch is in flight.
	Loading bool `json:"loading"`

	// Settled is true once at least one fetch attempt has finished.
	Settled bool `json:"settled"`

	// Stale is true after Invalidate until the next fetch finishes.
	Stale bool `json:"stale"`

	// Err is the message of the most recent failed fetch, cleared on success.
	Err string `json:"error,omitempty"`

	// FetchedAt is the time of the most recent successful fetch.
	FetchedAt time.Time `json:"fetched_at,omitzero"`
}

// Pending reports whether the resource has no settled fetch yet. It is the
// loading signal used for rendering: background refreshes after the first
// one keep showing the previous data and are not pending.
func (s State) Pending() bool {
	return !s.Settled
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Menus         []menu.NamedMenu
	Settings      settings.Raw
	MenuState     State
	SettingsState State
}

// Loading reports whether the menus are still pending.
func (s Snapshot) Loading() bool {
	return s.MenuState.Pending()
}

// Store is the shared, refreshable site data repository.
type Store struct {
	group        singleflight.Group
	metrics      *metric.Metrics
	fetchTimeout time.Duration
	menus        *resource[[]menu.NamedMenu]
	settings     *resource[settings.Raw]
}

// New returns an empty Store backed by src. Nothing is fetched until Refresh.
func New(src Source, m *metric.Metrics) *Store {
	if m == nil {
		m = metric.Nop()
	}

	return &Store{
		metrics:      m,
		fetchTimeout: DefaultFetchTimeout,
		menus:        &resource[[]menu.NamedMenu]{name: resourceMenus, fetch: src.Menus, data: []menu.NamedMenu{}},
		settings:     &resource[settings.Raw]{name: resourceSettings, fetch: src.Settings, data: settings.Raw{}},
	}
}

// Refresh fetches menus and settings concurrently. Both fetches always run to
// completion; the returned error joins whichever of them failed.
func (s *Store) Refresh(ctx context.Context) error {
	var (
		g                     errgroup.Group
		menusErr, settingsErr error
	)

	g.Go(func() error {
		menusErr = s.RefreshMenus(ctx)
		return nil
	})
	g.Go(func() error {
		settingsErr = s.RefreshSettings(ctx)
		return nil
	})
	_ = g.Wait()

	return errors.Join(menusErr, settingsErr)
}

// RefreshMenus fetches the named menus. Concurrent calls share one fetch.
func (s *Store) RefreshMenus(ctx context.Context) error {
	return refresh(ctx, s, s.menus)
}

// RefreshSettings fetches the settings record. Concurrent calls share one fetch.
func (s *Store) RefreshSettings(ctx context.Context) error {
	return refresh(ctx, s, s.settings)
}

// Invalidate marks both resources stale. Data is kept until replaced.
func (s *Store) Invalidate() {
	s.menus.invalidate()
	s.settings.invalidate()
}

// EnsureFresh refreshes every resource that is stale or has never settled.
func (s *Store) EnsureFresh(ctx context.Context) error {
	var errs []error
	if st := s.menus.snapshotState(); st.Stale || !st.Settled {
		errs = append(errs, s.RefreshMenus(ctx))
	}
	if st := s.settings.snapshotState(); st.Stale || !st.Settled {
		errs = append(errs, s.RefreshSettings(ctx))
	}
	return errors.Join(errs...)
}

// Snapshot returns a copy of the current data and states.
func (s *Store) Snapshot() Snapshot {
	menus, menuState := s.menus.get()
	raw, settingsState := s.settings.get()

	return Snapshot{
		Menus:         slices.Clone(menus),
		Settings:      maps.Clone(raw),
		MenuState:     menuState,
		SettingsState: settingsState,
	}
}

// Ready reports an error until the menus have settled.
func (s *Store) Ready(_ context.Context) error {
	if s.menus.snapshotState().Pending() {
		return errors.New("menus not loaded yet")
	}
	return nil
}

// Run refreshes the store every interval until ctx is canceled.
// Fetch failures are logged and recorded, never returned.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid refresh interval: %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("store refresher started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("store refresher stopped")
			return nil
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("store refresh failed", "error", err)
			}
		}
	}
}

// refresh runs one shared fetch of r. The fetch is detached from the caller's
// cancellation so a departing caller does not fail it for the others; each
// caller stops waiting when its own ctx is done.
func refresh[T any](ctx context.Context, s *Store, r *resource[T]) error {
	ch := s.group.DoChan(r.name, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()

		gen := r.begin()
		start := time.Now()

		data, err := r.fetch(fctx)
		r.finish(data, err, gen)

		if err != nil {
			s.metrics.Fetches.Increment(r.name, "error")
			slog.Warn("cms fetch failed", "resource", r.name, "duration", time.Since(start), "error", err)
			return nil, fmt.Errorf("failed to fetch %s: %w", r.name, err)
		}

		s.metrics.Fetches.Increment(r.name, "ok")
		slog.Debug("cms fetch complete", "resource", r.name, "duration", time.Since(start))
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resource is one independently fetched piece of site data.
type resource[T any] struct {
	name  string
	fetch func(context.Context) (T, error)

	mu    sync.RWMutex
	data  T
	state State
	gen   uint64 // bumped by every invalidate
}

// begin marks a fetch in flight and returns the invalidation generation it observes.
func (r *resource[T]) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Loading = true
	return r.gen
}

// finish records the outcome of a fetch started at generation gen. The data
// stays stale when it was invalidated again while the fetch ran.
func (r *resource[T]) finish(data T, err error, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Loading = false
	r.state.Settled = true
	if r.gen == gen {
		r.state.Stale = false
	}

	if err != nil {
		r.state.Err = err.Error()
		return
	}

	r.data = data
	r.state.Err = ""
	r.state.FetchedAt = time.Now()
}

func (r *resource[T]) invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.state.Stale = true
}

func (r *resource[T]) get() (T, State) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data, r.state
}

func (r *resource[T]) snapshotState() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}
