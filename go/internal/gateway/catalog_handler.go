package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/listenroom/go/clients/catalog"
)

// CatalogHandler proxies song search to the catalog API so browser
// clients are not exposed to the third-party origin.
type CatalogHandler struct {
	client *catalog.Client
}

// NewCatalogHandler creates a catalog search handler.
func NewCatalogHandler(client *catalog.Client) *CatalogHandler {
	return &CatalogHandler{client: client}
}

// HandleSearch serves GET /api/songs/search?query=...&page=...&limit=...
func (h *CatalogHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	songs, err := h.client.SearchSongs(query, page, limit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("catalog search failed")
		http.Error(w, "catalog search failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": songs,
	})
}
