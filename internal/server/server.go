// Package server is the HTTP surface: the catalog and cache API, the
// size probe and media relay, and the server-rendered pages.
package server

import (
	"context"
	"io/fs"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/monitor"
	"github.com/reelgrid/reelgrid/internal/playcache"
	"github.com/reelgrid/reelgrid/internal/ratelimit"
	"github.com/reelgrid/reelgrid/internal/thumb"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// ThumbSource resolves a poster image for a catalog entry. Always
// returns a usable image, degrading to generated placeholder art.
type ThumbSource interface {
	Capture(ctx context.Context, ref thumb.Ref) string
}

type Config struct {
	Catalog *catalog.Catalog
	Cache   *playcache.Cache
	Thumbs  ThumbSource
	Prober  monitor.SizeProber
	Pinger  Pinger
	WebFS   fs.FS

	BaseURL   string
	UploadURL string // external issue-tracker link for contributions
	// RelayAllowHosts extends the relay/probe allowlist beyond the
	// hosts already referenced by catalog video paths.
	RelayAllowHosts []string
	CORSOrigins     []string
}

type Server struct {
	router    chi.Router
	catalog   *catalog.Catalog
	cache     *playcache.Cache
	thumbs    ThumbSource
	prober    monitor.SizeProber
	pinger    Pinger
	webFS     fs.FS
	uploadURL string
	relayHost map[string]bool
}

func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{
		BaseURL:    cfg.BaseURL,
		MediaHosts: relayHosts(cfg),
	}))

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Range"},
		ExposedHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
	}).Handler)

	s := &Server{
		router:    r,
		catalog:   cfg.Catalog,
		cache:     cfg.Cache,
		thumbs:    cfg.Thumbs,
		prober:    cfg.Prober,
		pinger:    cfg.Pinger,
		webFS:     cfg.WebFS,
		uploadURL: cfg.UploadURL,
		relayHost: make(map[string]bool),
	}
	for _, h := range relayHosts(cfg) {
		s.relayHost[h] = true
	}

	s.routes()
	return s
}

// relayHosts collects every host the relay and probe may touch: hosts
// of absolute catalog paths plus the configured extras.
func relayHosts(cfg Config) []string {
	seen := make(map[string]bool)
	var hosts []string
	add := func(h string) {
		if h != "" && !seen[h] {
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	if cfg.Catalog != nil {
		for _, v := range cfg.Catalog.Videos() {
			if u, err := url.Parse(v.Path); err == nil && u.IsAbs() {
				add(u.Host)
			}
		}
	}
	for _, h := range cfg.RelayAllowHosts {
		add(h)
	}
	return hosts
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/videos", s.handleListVideos)
	s.router.Get("/api/videos/{id}", s.handleGetVideo)
	s.router.Get("/api/config", s.handleConfig)
	s.router.Get("/api/probe", s.handleProbe)

	writeLimiter := ratelimit.NewLimiter(2, 10)
	s.router.Route("/api/cache", func(r chi.Router) {
		r.Get("/{id}", s.handleGetCache)
		r.With(writeLimiter.Middleware).Put("/{id}", s.handlePutCache)
	})
	s.router.With(writeLimiter.Middleware).Post("/api/videos/{id}/view", s.handleAddView)

	relayLimiter := ratelimit.NewLimiter(5, 20)
	s.router.With(relayLimiter.Middleware).Get("/relay", s.handleRelay)

	s.router.Get("/watch/{id}", s.handleWatchPage)
	s.router.Get("/", s.handleIndexPage)

	if s.webFS != nil {
		spa := newSPAFileServer(s.webFS)
		s.router.NotFound(spa.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"cache store unreachable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
