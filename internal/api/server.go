package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ffarm/internal/auth"
	"ffarm/internal/farm"
	"ffarm/internal/ratelimit"
	"ffarm/internal/syncq"
)

type contextKey string

const principalContextKey contextKey = "principal"

// RateLimiter gates high-frequency actions per account.
type RateLimiter interface {
	Allow(ctx context.Context, accountID int64) error
}

type Server struct {
	log     *slog.Logger
	farm    *farm.Service
	queue   *syncq.Queue
	limiter RateLimiter
	auth    auth.Verifier
	mux     *chi.Mux
}

func New(logger *slog.Logger, svc *farm.Service, queue *syncq.Queue, limiter RateLimiter, verifier auth.Verifier) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:     logger,
		farm:    svc,
		queue:   queue,
		limiter: limiter,
		auth:    verifier,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "queued": s.queue.Len()})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/plants", s.handlePlants)
		r.Get("/upgrades", s.handleUpgrades)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Post("/accounts", s.handleRegister)
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/", s.handleAccount)
			r.Get("/status", s.handleStatus)
			r.Get("/ledger", s.handleLedger)
			r.Get("/plants", s.handlePlantingOptions)
			r.Get("/plants/{plant_id}/max", s.handleMaxPlantable)
			r.Post("/plant", s.handlePlant)
			r.Post("/harvest", s.handleHarvest)
			r.Get("/upgrades/crops", s.handleCropUnlocks)
			r.Get("/upgrades/{category}/next", s.handleNextUpgrade)
			r.Post("/upgrades", s.handleBuyUpgrade)
			r.Post("/manager", s.handleManager)
			r.Get("/autoplant", s.handleGetAutoPlant)
			r.Put("/autoplant", s.handleSetAutoPlant)
			r.Post("/announcements", s.handleAnnounce)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := s.auth.VerifyAccessToken(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			s.log.Warn("rejected gateway request", "path", r.URL.Path, "err", err)
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ChatID   string `json:"chat_id"`
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	type registered struct {
		Account farm.Account `json:"account"`
		Created bool         `json:"created"`
	}
	out, err := syncq.Do(r.Context(), s.queue, "register", 0, func(ctx context.Context) (registered, error) {
		acct, created, err := s.farm.Register(ctx, in.ChatID, in.Username)
		return registered{Account: acct, Created: created}, err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	acct, err := s.farm.Account(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	balance, err := s.farm.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": acct, "balance": balance})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	// Status promotes ready batches, so it is ordered with other commands.
	status, err := syncq.Do(r.Context(), s.queue, "status", id, func(ctx context.Context) (farm.FarmStatus, error) {
		return s.farm.Status(ctx, id)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	entries, err := s.farm.Ledger(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handlePlants(w http.ResponseWriter, r *http.Request) {
	catalog := s.farm.Catalog()
	plants := catalog.Plants()
	if category := strings.TrimSpace(r.URL.Query().Get("category")); category != "" {
		plants = catalog.PlantsInCategory(category)
	}
	writeJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

func (s *Server) handleUpgrades(w http.ResponseWriter, r *http.Request) {
	catalog := s.farm.Catalog()
	upgrades := catalog.Upgrades()
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category := farm.UpgradeCategory(strings.ToLower(raw))
		if !category.Valid() {
			writeDomainError(w, farm.ErrInvalidCategory)
			return
		}
		upgrades = catalog.UpgradesInCategory(category)
	}
	writeJSON(w, http.StatusOK, map[string]any{"upgrades": upgrades})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := s.farm.Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": rows})
}

func (s *Server) handlePlantingOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	plants, err := s.farm.PlantingOptions(r.Context(), id, strings.TrimSpace(r.URL.Query().Get("category")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plants": plants})
}

func (s *Server) handleMaxPlantable(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	plantID, err := pathInt(r, "plant_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.farm.MaxPlantable(r.Context(), id, plantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlant(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var in struct {
		PlantID  int64  `json:"plant_id"`
		Quantity string `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.limiter.Allow(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	qty, all, err := farm.ParseQuantity(in.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := syncq.Do(r.Context(), s.queue, "plant", id, func(ctx context.Context) (farm.PlantResult, error) {
		return s.farm.Plant(ctx, farm.PlantInput{AccountID: id, PlantID: in.PlantID, Quantity: qty, Max: all})
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	out, err := syncq.Do(r.Context(), s.queue, "harvest", id, func(ctx context.Context) (farm.HarvestResult, error) {
		return s.farm.Harvest(ctx, id)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleNextUpgrade(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	category := farm.UpgradeCategory(strings.ToLower(chi.URLParam(r, "category")))
	offer, err := s.farm.NextUpgrade(r.Context(), id, category)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleCropUnlocks(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	unlocks, err := s.farm.CropUnlocks(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocks": unlocks})
}

func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var in struct {
		UpgradeID int64 `json:"upgrade_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := syncq.Do(r.Context(), s.queue, "buy_upgrade", id, func(ctx context.Context) (farm.UpgradeResult, error) {
		return s.farm.BuyUpgrade(ctx, id, in.UpgradeID)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleManager(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var in struct {
		On bool `json:"on"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := syncq.Do(r.Context(), s.queue, "set_manager", id, func(ctx context.Context) (farm.Account, error) {
		return s.farm.SetManager(ctx, id, in.On)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": acct})
}

func (s *Server) handleGetAutoPlant(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	pref, err := s.farm.AutoPlant(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pref)
}

func (s *Server) handleSetAutoPlant(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var in struct {
		PlantID int64 `json:"plant_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err := syncq.Do(r.Context(), s.queue, "set_autoplant", id, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.farm.SetAutoPlant(ctx, id, in.PlantID)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, farm.AutoPlantPreference{AccountID: id, PlantID: in.PlantID})
}

func (s *Server) handleAnnounce(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	var in struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.limiter.Allow(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	delivered, err := syncq.Do(r.Context(), s.queue, "announce", id, func(ctx context.Context) (int, error) {
		return s.farm.Announce(ctx, id, in.Message)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, farm.ErrInsufficientFunds), errors.Is(err, farm.ErrInsufficientSlots),
		errors.Is(err, farm.ErrInvalidQuantity), errors.Is(err, farm.ErrInvalidCategory),
		errors.Is(err, farm.ErrChatIDRequired), errors.Is(err, farm.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, farm.ErrPlantLocked), errors.Is(err, farm.ErrManagerLocked), errors.Is(err, farm.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, farm.ErrAccountNotFound), errors.Is(err, farm.ErrPlantNotFound),
		errors.Is(err, farm.ErrUpgradeNotFound), errors.Is(err, farm.ErrNoAutoPlant):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, farm.ErrMaxTier), errors.Is(err, farm.ErrAccountExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, syncq.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return id, true
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
