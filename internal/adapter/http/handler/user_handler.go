package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/creditledger/internal/adapter/http/dto"
	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

// BalanceService computes ledger-derived balances.
type BalanceService interface {
	ComputeBalance(ctx context.Context, userID string, asOf time.Time) (domain.UserCreditBalance, error)
}

// EntryService reads ledger entries and cached balances.
type EntryService interface {
	GetEntriesByUser(ctx context.Context, input usecase.GetEntriesByUserInput) ([]*domain.LedgerEntry, error)
	GetCachedBalance(ctx context.Context, userID string) (*domain.CachedBalance, error)
}

// UserHandler handles read-only user ledger requests.
type UserHandler struct {
	balanceUC BalanceService
	entryUC   EntryService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(balanceUC BalanceService, entryUC EntryService) *UserHandler {
	return &UserHandler{
		balanceUC: balanceUC,
		entryUC:   entryUC,
	}
}

// GetBalance returns the balance derived from the ledger next to the cached one.
// An optional as_of query parameter (RFC 3339) selects the point in time.
func (h *UserHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user ID", "")
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of", err.Error())
			return
		}
		asOf = parsed.UTC()
	}

	balance, err := h.balanceUC.ComputeBalance(r.Context(), id, asOf)
	if err != nil {
		writeDomainError(w, "failed to compute balance", err)
		return
	}

	cached, err := h.entryUC.GetCachedBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get cached balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UserBalanceResponse{
		Computed: dto.BalanceFromDomain(id, balance),
		Cached:   dto.CachedBalanceFromDomain(*cached),
	})
}

// ListEntries lists a user's ledger entries, newest first.
func (h *UserHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user ID", "")
		return
	}

	entries, err := h.entryUC.GetEntriesByUser(r.Context(), usecase.GetEntriesByUserInput{
		UserID: id,
		Limit:  parseIntQuery(r, "limit", usecase.DefaultEntriesPageSize),
		Offset: parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}
