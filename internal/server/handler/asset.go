package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/tokenbook/internal/domain"
	"github.com/alanyoungcy/tokenbook/internal/market"
)

// OverviewService defines what the asset handler needs from the overview.
// It is declared locally so the handler package does not depend on the
// concrete service.
type OverviewService interface {
	ListSorted(key market.SortKey, offset, limit int, ascending bool) ([]domain.AssetSummary, error)
	Search(query string) []domain.AssetSummary
	Summary(assetID string) (domain.AssetSummary, bool)
	AssetMetadata(assetID string) (domain.AssetMetadata, bool)
}

// AssetHandler serves the market overview endpoints.
type AssetHandler struct {
	overview OverviewService
	logger   *slog.Logger
}

// NewAssetHandler creates an AssetHandler.
func NewAssetHandler(overview OverviewService, logger *slog.Logger) *AssetHandler {
	return &AssetHandler{overview: overview, logger: logger}
}

type listAssetsResponse struct {
	Assets []domain.AssetSummary `json:"assets"`
	Sort   market.SortKey        `json:"sort"`
	Order  string                `json:"order"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// ListAssets returns one page of the overview in the requested order.
// GET /api/assets?sort=marketCapSatoshis&order=desc&limit=50&offset=0
func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := market.SortMarketCap
	if s := q.Get("sort"); s != "" {
		parsed, err := market.ParseSortKey(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown sort key: "+s)
			return
		}
		key = parsed
	}

	order := strings.ToLower(q.Get("order"))
	switch order {
	case "":
		order = "desc"
	case "asc", "desc":
	default:
		writeError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	p := parsePage(r)
	assets, err := h.overview.ListSorted(key, p.Offset, p.Limit, order == "asc")
	if err != nil {
		if errors.Is(err, domain.ErrUnknownSortKey) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: list assets failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if assets == nil {
		assets = []domain.AssetSummary{}
	}

	writeJSON(w, http.StatusOK, listAssetsResponse{
		Assets: assets,
		Sort:   key,
		Order:  order,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
}

// SearchAssets matches the query against asset ids, names and symbols.
// GET /api/assets/search?q=alpha
func (h *AssetHandler) SearchAssets(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	found := h.overview.Search(q)
	if found == nil {
		found = []domain.AssetSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "assets": found})
}

// GetAsset returns the overview record and metadata of one asset.
// GET /api/assets/{id}
func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, ok := h.overview.Summary(id)
	if !ok {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	md, _ := h.overview.AssetMetadata(id)
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "metadata": md})
}
