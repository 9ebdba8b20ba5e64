package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/minwoo-dev/folio/internal/portfolio"
	"github.com/minwoo-dev/folio/pkg/config"
	"github.com/minwoo-dev/folio/pkg/logger"
)

// PortfolioStore is the persistence surface the handler needs.
// Satisfied by portfolio.Repository.
type PortfolioStore interface {
	Create(ctx context.Context, p *portfolio.Portfolio) (*portfolio.Portfolio, error)
	Update(ctx context.Context, p *portfolio.Portfolio) (*portfolio.Portfolio, error)
	Get(ctx context.Context, id int64) (*portfolio.Portfolio, error)
	List(ctx context.Context) ([]*portfolio.Portfolio, error)
	Delete(ctx context.Context, id int64) error
}

// PortfolioHandler handles portfolio CRUD endpoints.
type PortfolioHandler struct {
	store  PortfolioStore
	cfg    config.BacktestConfig
	logger *logger.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(store PortfolioStore, cfg config.BacktestConfig, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		store:  store,
		cfg:    cfg,
		logger: log,
	}
}

// List returns all saved portfolios.
// GET /api/portfolios
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.store.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list portfolios")
		respondError(w, http.StatusInternalServerError, "failed to list portfolios")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"portfolios": portfolios,
	})
}

// Get returns one portfolio.
// GET /api/portfolios/{id}
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			respondError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to get portfolio")
		respondError(w, http.StatusInternalServerError, "failed to get portfolio")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Create saves a new portfolio.
// POST /api/portfolios
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p portfolio.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := p.Validate(h.cfg.WeightTolerancePct); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.store.Create(r.Context(), &p)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create portfolio")
		respondError(w, http.StatusInternalServerError, "failed to create portfolio")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// Update replaces a portfolio's attributes and holdings.
// PUT /api/portfolios/{id}
func (h *PortfolioHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var p portfolio.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	p.ID = id

	if err := p.Validate(h.cfg.WeightTolerancePct); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.store.Update(r.Context(), &p)
	if err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			respondError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to update portfolio")
		respondError(w, http.StatusInternalServerError, "failed to update portfolio")
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// Delete removes a portfolio.
// DELETE /api/portfolios/{id}
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, portfolio.ErrNotFound) {
			respondError(w, http.StatusNotFound, "portfolio not found")
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to delete portfolio")
		respondError(w, http.StatusInternalServerError, "failed to delete portfolio")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid portfolio id")
		return 0, false
	}
	return id, true
}
