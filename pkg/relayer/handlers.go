package relayer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/token-bridge/pkg/app/errors"
	apphttp "github.com/chainsafe/token-bridge/pkg/app/http"
	"github.com/chainsafe/token-bridge/pkg/db"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// StatusProvider reports relay progress
type StatusProvider interface {
	IsReady() bool
	Status() []Status
}

type handler struct {
	store  BridgeStore
	status StatusProvider
	logger *zap.Logger
}

// RegisterRoutes mounts the transfer query API on r
func RegisterRoutes(r chi.Router, store BridgeStore, status StatusProvider, logger *zap.Logger) {
	h := &handler{store: store, status: status, logger: logger}
	r.Get("/transfers", apphttp.HandleError(h.listTransfers))
	r.Get("/transfers/{id}", apphttp.HandleError(h.getTransfer))
	r.Get("/status", apphttp.HandleError(h.getStatus))
}

func (h *handler) listTransfers(w http.ResponseWriter, r *http.Request) error {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			return apperrors.BadRequestError(err, "limit must be between 1 and 1000")
		}
		limit = n
	}

	transfers, err := h.store.ListTransfers(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list transfers", zap.Error(err))
		return apperrors.GeneralError(err)
	}
	if transfers == nil {
		transfers = []*db.Transfer{}
	}
	return writeJSON(w, map[string]any{"transfers": transfers})
}

func (h *handler) getTransfer(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	transfer, err := h.store.GetTransfer(r.Context(), id)
	if errors.Is(err, db.ErrTransferNotFound) {
		return apperrors.ResourceNotFoundError(err, "transfer not found")
	}
	if err != nil {
		h.logger.Error("Failed to get transfer", zap.String("id", id), zap.Error(err))
		return apperrors.GeneralError(err)
	}
	return writeJSON(w, transfer)
}

func (h *handler) getStatus(w http.ResponseWriter, _ *http.Request) error {
	return writeJSON(w, map[string]any{
		"ready":  h.status.IsReady(),
		"routes": h.status.Status(),
	})
}

func writeJSON(w http.ResponseWriter, v any) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
