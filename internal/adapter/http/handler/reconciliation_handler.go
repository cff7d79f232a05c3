package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/iho/creditledger/internal/adapter/http/dto"
	"github.com/iho/creditledger/internal/domain"
	"github.com/iho/creditledger/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileUser(ctx context.Context, input usecase.ReconcileUserInput) (*domain.ReconciliationResult, error)
	ReconcileBulk(ctx context.Context, input usecase.ReconcileBulkInput) (*domain.BulkReconciliationResult, error)
}

// ReconciliationHandler handles reconciliation HTTP requests.
type ReconciliationHandler struct {
	reconcileUC ReconciliationService
	bulkRunning atomic.Bool
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconcileUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconcileUC: reconcileUC}
}

// ReconcileUser reconciles a single user's cached balance.
func (h *ReconciliationHandler) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user ID", "")
		return
	}

	var req dto.ReconcileUserRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.reconcileUC.ReconcileUser(r.Context(), req.ToUseCaseInput(id))
	if err != nil {
		writeDomainError(w, "failed to reconcile user", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromDomain(result))
}

// ReconcileBulk reconciles a list of users, or every user. Only one bulk run
// is served at a time.
func (h *ReconciliationHandler) ReconcileBulk(w http.ResponseWriter, r *http.Request) {
	var req dto.ReconcileBulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if !h.bulkRunning.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, "bulk reconciliation already running", "")
		return
	}
	defer h.bulkRunning.Store(false)

	result, err := h.reconcileUC.ReconcileBulk(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to reconcile users", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BulkReconciliationFromDomain(result))
}

// decodeOptionalBody decodes JSON into v, treating an empty body as zero values.
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
