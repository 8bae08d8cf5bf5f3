package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tokenbook/internal/domain"
)

// BookService defines what the offer handler needs from the books.
type BookService interface {
	Offers(assetID string) ([]domain.Offer, error)
}

// OfferHandler serves the live offer books.
type OfferHandler struct {
	books  BookService
	logger *slog.Logger
}

// NewOfferHandler creates an OfferHandler.
func NewOfferHandler(books BookService, logger *slog.Logger) *OfferHandler {
	return &OfferHandler{books: books, logger: logger}
}

// ListOffers returns the open offers of one asset, cheapest first.
// GET /api/offers/{asset}
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	assetID := r.PathValue("asset")
	offers, err := h.books.Offers(assetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "asset not tracked")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list offers failed",
			slog.String("asset", assetID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list offers")
		return
	}
	if offers == nil {
		offers = []domain.Offer{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"asset_id": assetID,
		"count":    len(offers),
		"offers":   offers,
	})
}
