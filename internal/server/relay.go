package server

import (
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/reelgrid/reelgrid/internal/httputil"
)

// relayAllowed restricts the relay and probe to media hosts the
// catalog actually references (plus configured extras), so the server
// cannot be used as an open proxy.
func (s *Server) relayAllowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		// Relative targets are our own media origin.
		return true
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return s.relayHost[u.Host]
}

// handleRelay streams a remote media source through this origin with
// permissive CORS. It is the first-party member of the relay chain the
// player falls back to when direct playback hits a CORS wall.
func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		httputil.WriteError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		httputil.WriteError(w, http.StatusBadRequest, "url must be absolute")
		return
	}
	if !s.relayAllowed(target) {
		httputil.WriteError(w, http.StatusForbidden, "host not allowed")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid target url")
		return
	}
	// Range passthrough keeps seeking working through the relay.
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("relay: fetch %s: %v", u.Host, err)
		httputil.WriteError(w, http.StatusBadGateway, "upstream fetch failed")
		return
	}
	defer resp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Client walked away mid-stream; nothing to recover.
		log.Printf("relay: stream %s: %v", u.Host, err)
	}
}
