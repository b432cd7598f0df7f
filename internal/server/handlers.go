package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/playcache"
	"github.com/reelgrid/reelgrid/internal/thumb"
)

// videoItem is a catalog entry joined with its cached playback
// metadata for the listing and detail responses.
type videoItem struct {
	catalog.Video
	Thumbnail string  `json:"thumbnail"`
	Duration  float64 `json:"duration,omitempty"`
	Views     int64   `json:"views"`
}

func (s *Server) videoItem(r *http.Request, v catalog.Video) videoItem {
	item := videoItem{Video: v}
	key := playcache.Key(v.ID.String(), v.Path)
	if s.thumbs != nil {
		item.Thumbnail = s.thumbs.Capture(r.Context(), thumb.Ref{
			ID:     v.ID.String(),
			Path:   v.Path,
			Poster: v.Poster,
			Title:  v.Title,
		})
	} else if v.Poster != "" {
		item.Thumbnail = v.Poster
	} else {
		item.Thumbnail = thumb.PlaceholderSVG(v.Title)
	}
	if s.cache != nil {
		if d, ok := s.cache.FreshDuration(r.Context(), key); ok {
			item.Duration = d
		}
		if e, ok := s.cache.Entry(r.Context(), key); ok {
			item.Views = e.Views
		}
	}
	return item
}

func (s *Server) handleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))

	result := s.catalog.Find(catalog.Query{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Page:     page,
		PerPage:  perPage,
	})

	items := make([]videoItem, 0, len(result.Items))
	for _, v := range result.Items {
		items = append(items, s.videoItem(r, v))
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"total":       result.Total,
		"total_pages": result.TotalPages,
		"page":        result.Page,
		"per_page":    result.PerPage,
	})
}

func (s *Server) handleGetVideo(w http.ResponseWriter, r *http.Request) {
	v, ok := s.catalog.ByID(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.videoItem(r, v))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"categories": s.catalog.Categories(),
		"upload_url": s.uploadURL,
	})
}

// Cache endpoints let the browser-side player share its discovered
// durations and thumbnails across sessions and devices.

func (s *Server) handleGetCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		httputil.WriteError(w, http.StatusNotFound, "cache not configured")
		return
	}
	key := cacheKeyForID(s.catalog, chi.URLParam(r, "id"))
	entry, ok := s.cache.Entry(r.Context(), key)
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "no fresh cache entry")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) handlePutCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		httputil.WriteError(w, http.StatusNotFound, "cache not configured")
		return
	}
	var u playcache.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid cache update")
		return
	}
	// View bumps go through the dedicated endpoint.
	u.AddViews = 0
	if u.Duration != nil && (*u.Duration <= 0) {
		httputil.WriteError(w, http.StatusBadRequest, "duration must be positive")
		return
	}
	key := cacheKeyForID(s.catalog, chi.URLParam(r, "id"))
	if err := s.cache.Put(r.Context(), key, u); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "cache write failed")
		return
	}
	entry, _ := s.cache.Entry(r.Context(), key)
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) handleAddView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.catalog.ByID(chi.URLParam(r, "id"))
	if !ok {
		httputil.WriteError(w, http.StatusNotFound, "video not found")
		return
	}
	if s.cache == nil {
		httputil.WriteError(w, http.StatusNotFound, "cache not configured")
		return
	}
	views, err := s.cache.AddView(r.Context(), playcache.Key(v.ID.String(), v.Path))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "view count update failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"views": views})
}

// cacheKeyForID maps a catalog id to its cache key; unknown ids fall
// back to keying on the raw id so ad-hoc sources still cache.
func cacheKeyForID(c *catalog.Catalog, id string) string {
	if v, ok := c.ByID(id); ok {
		return playcache.Key(v.ID.String(), v.Path)
	}
	return playcache.Key(id, "")
}

// handleProbe reports the byte size of a media source for throughput
// estimation. Best effort: unknown size is a 404, not a failure.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		httputil.WriteError(w, http.StatusNotFound, "probe not configured")
		return
	}
	target := r.URL.Query().Get("url")
	if target == "" {
		httputil.WriteError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	if !s.relayAllowed(target) {
		httputil.WriteError(w, http.StatusForbidden, "host not allowed")
		return
	}
	size, err := s.prober.ProbeSize(r.Context(), target)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "size unknown")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"size": size})
}
