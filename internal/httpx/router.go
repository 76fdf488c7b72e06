// Package httpx exposes the engine over HTTP: sync triggers, cost queries,
// profit reports and per-shop configuration.
package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/profitlens/profitlens/internal/adapters"
	"github.com/profitlens/profitlens/internal/ledger"
	"github.com/profitlens/profitlens/internal/money"
	"github.com/profitlens/profitlens/internal/observability"
	"github.com/profitlens/profitlens/internal/profit"
	"github.com/profitlens/profitlens/internal/syncer"
	"github.com/profitlens/profitlens/internal/utils"
)

type server struct {
	store        ledger.Store
	orchestrator *syncer.Orchestrator
	reporter     *profit.Reporter
	adapters     map[string]adapters.Adapter
	log          *slog.Logger
}

// NewRouter wires the API surface.
func NewRouter(log *slog.Logger, store ledger.Store, orchestrator *syncer.Orchestrator, reporter *profit.Reporter, adapterList []adapters.Adapter, metrics *observability.Metrics) http.Handler {
	byPlatform := make(map[string]adapters.Adapter, len(adapterList))
	for _, a := range adapterList {
		byPlatform[a.Platform()] = a
	}
	s := &server{store: store, orchestrator: orchestrator, reporter: reporter, adapters: byPlatform, log: log}

	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))
	mux.Use(metrics.Middleware)

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ready")) })
	mux.Method(http.MethodGet, "/metrics", metrics.Handler())

	mux.Route("/api", func(api chi.Router) {
		api.Post("/sync/{platform}", s.handleSync)
		api.Get("/accounts/{platform}", s.handleListAccounts)
		api.Get("/report", s.handleReport)
		api.Get("/costs", s.handleCosts)

		api.Get("/costs/fixed", s.handleListFixedCosts)
		api.Post("/costs/fixed", s.handleCreateFixedCost)
		api.Delete("/costs/fixed/{id}", s.handleDeleteFixedCost)

		api.Get("/costs/manual", s.handleListManualCosts)
		api.Post("/costs/manual", s.handleCreateManualCost)
		api.Delete("/costs/manual/{id}", s.handleDeleteManualCost)

		api.Get("/settings", s.handleGetSettings)
		api.Put("/settings", s.handleSaveSettings)
		api.Get("/targets", s.handleGetTargets)
		api.Put("/targets", s.handleSaveTargets)
	})
	return mux
}

func shopParam(r *http.Request) (string, error) {
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		return "", fmt.Errorf("%w: shop required", ErrBadRequest)
	}
	return shop, nil
}

// rangeParams resolves either an explicit from/to pair or a named period in
// the shop's timezone.
func (s *server) rangeParams(ctx context.Context, r *http.Request, shop string) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: bad from date", ErrBadRequest)
		}
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: bad to date", ErrBadRequest)
		}
		return money.Day(start), money.Day(end).Add(24*time.Hour - time.Nanosecond), nil
	}
	settings, err := s.store.GetSettings(ctx, shop)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end := money.ResolvePeriod(q.Get("period"), settings.Timezone)
	return start, end, nil
}

func (s *server) handleSync(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	platform := chi.URLParam(r, "platform")
	// failures come back inside the result so the dashboard can surface a
	// non-blocking status message
	res := s.orchestrator.SyncHistorical(r.Context(), shop, platform, days)
	writeJSON(w, http.StatusOK, res)
}

func (s *server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	platform := chi.URLParam(r, "platform")
	adapter, ok := s.adapters[platform]
	if !ok {
		problem(w, http.StatusNotFound, "Not Found", "unknown platform")
		return
	}
	integration, err := s.store.GetIntegration(r.Context(), shop, platform)
	if err != nil {
		respondError(w, err)
		return
	}
	accounts := adapter.ListAccounts(r.Context(), integration.Credentials)
	if accounts == nil {
		accounts = []adapters.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (s *server) handleReport(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	report, err := s.reporter.Report(r.Context(), shop, r.URL.Query().Get("period"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleCosts(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	start, end, err := s.rangeParams(r.Context(), r, shop)
	if err != nil {
		respondError(w, err)
		return
	}
	costs, err := s.reporter.Costs(r.Context(), shop, start, end)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, costs)
}

func (s *server) handleListFixedCosts(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	out, err := s.store.ListFixedCosts(r.Context(), shop)
	if err != nil {
		respondError(w, err)
		return
	}
	if out == nil {
		out = []ledger.FixedCost{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleCreateFixedCost(w http.ResponseWriter, r *http.Request) {
	var fc ledger.FixedCost
	if err := json.NewDecoder(r.Body).Decode(&fc); err != nil {
		respondError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if fc.Shop == "" || fc.Amount < 0 || fc.StartDate.IsZero() {
		respondError(w, fmt.Errorf("%w: shop, non-negative amount and startDate required", ErrBadRequest))
		return
	}
	created, err := s.store.CreateFixedCost(r.Context(), fc)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleDeleteFixedCost(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.DeleteFixedCost(r.Context(), shop, chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleListManualCosts(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	start, end, err := s.rangeParams(r.Context(), r, shop)
	if err != nil {
		respondError(w, err)
		return
	}
	out, err := s.store.ListManualCosts(r.Context(), shop, start, end)
	if err != nil {
		respondError(w, err)
		return
	}
	if out == nil {
		out = []ledger.ManualCost{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleCreateManualCost(w http.ResponseWriter, r *http.Request) {
	var mc ledger.ManualCost
	if err := json.NewDecoder(r.Body).Decode(&mc); err != nil {
		respondError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if mc.Shop == "" || mc.Amount < 0 || mc.Date.IsZero() || mc.Category == "" {
		respondError(w, fmt.Errorf("%w: shop, category, non-negative amount and date required", ErrBadRequest))
		return
	}
	created, err := s.store.CreateManualCost(r.Context(), mc)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *server) handleDeleteManualCost(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := s.store.DeleteManualCost(r.Context(), shop, chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	settings, err := s.store.GetSettings(r.Context(), shop)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings ledger.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if settings.Shop == "" || settings.TransactionFeePercent < 0 {
		respondError(w, fmt.Errorf("%w: shop and non-negative fee required", ErrBadRequest))
		return
	}
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *server) handleGetTargets(w http.ResponseWriter, r *http.Request) {
	shop, err := shopParam(r)
	if err != nil {
		respondError(w, err)
		return
	}
	targets, err := s.store.GetTargets(r.Context(), shop)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *server) handleSaveTargets(w http.ResponseWriter, r *http.Request) {
	var targets ledger.MetricTargets
	if err := json.NewDecoder(r.Body).Decode(&targets); err != nil {
		respondError(w, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if targets.Shop == "" {
		respondError(w, fmt.Errorf("%w: shop required", ErrBadRequest))
		return
	}
	if err := s.store.SaveTargets(r.Context(), targets); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}
