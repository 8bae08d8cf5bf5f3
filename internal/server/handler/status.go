package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/market"
)

// OverviewStatus is the part of the overview service the status page reads.
type OverviewStatus interface {
	Status() map[market.Source]market.SourceStatus
	UpdatedAt() time.Time
}

// BookStatus is the part of the book service the status page reads.
type BookStatus interface {
	Assets() []string
	Len(assetID string) int
	BestOffer(assetID string) (domain.Offer, bool)
}

// StatusHandler reports the run mode and the state of each running
// component.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	overview  OverviewStatus
	books     BookStatus
}

// NewStatusHandler creates a StatusHandler. overview and books are nil when
// the mode does not run them.
func NewStatusHandler(mode string, startedAt time.Time, overview OverviewStatus, books BookStatus) *StatusHandler {
	return &StatusHandler{mode: mode, startedAt: startedAt, overview: overview, books: books}
}

type bookStatus struct {
	AssetID   string        `json:"asset_id"`
	Offers    int           `json:"offers"`
	BestOffer *domain.Offer `json:"best_offer,omitempty"`
}

type overviewStatus struct {
	UpdatedAt *time.Time                            `json:"updated_at"`
	Sources   map[market.Source]market.SourceStatus `json:"sources"`
}

// GetStatus responds with the mode, uptime, overview source health, book
// sizes and the cheapest offer of each book.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": max(int64(time.Since(h.startedAt).Seconds()), 0),
	}
	if h.overview != nil {
		st := overviewStatus{Sources: h.overview.Status()}
		if at := h.overview.UpdatedAt(); !at.IsZero() {
			st.UpdatedAt = &at
		}
		resp["overview"] = st
	}
	if h.books != nil {
		books := []bookStatus{}
		for _, id := range h.books.Assets() {
			st := bookStatus{AssetID: id, Offers: h.books.Len(id)}
			if best, ok := h.books.BestOffer(id); ok {
				st.BestOffer = &best
			}
			books = append(books, st)
		}
		resp["books"] = books
	}
	writeJSON(w, http.StatusOK, resp)
}
