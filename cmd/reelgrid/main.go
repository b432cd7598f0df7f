package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/database"
	"github.com/reelgrid/reelgrid/internal/monitor"
	"github.com/reelgrid/reelgrid/internal/playcache"
	"github.com/reelgrid/reelgrid/internal/server"
	"github.com/reelgrid/reelgrid/internal/storage"
	"github.com/reelgrid/reelgrid/internal/thumb"
)

func main() {
	port := getEnv("PORT", "8080")
	baseURL := getEnv("BASE_URL", "http://localhost:8080")
	dataDir := getEnv("DATA_DIR", "./data")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clock := clockwork.NewRealClock()

	// Cache store: Postgres when DATABASE_URL is set, otherwise a
	// single JSON file under the data directory.
	var (
		store  playcache.Store
		pinger server.Pinger
	)
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		db, err := database.Connect(ctx, databaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := db.Migrate(databaseURL); err != nil {
			log.Fatalf("database migration failed: %v", err)
		}
		log.Println("database migrations applied")

		store = playcache.NewPGStore(db.Pool, clock)
		pinger = db
	} else {
		fileStore, err := playcache.NewFileStore(filepath.Join(dataDir, "playback-cache.json"), clock)
		if err != nil {
			log.Fatalf("cache file initialization failed: %v", err)
		}
		store = fileStore
		log.Println("using file-backed playback cache")
	}
	cache := playcache.New(store, clock)

	cat := catalog.Load(
		getEnv("VIDEO_DATA_FILE", filepath.Join(dataDir, "video-data.json")),
		getEnv("CONFIG_FILE", filepath.Join(dataDir, "config.json")),
	)
	log.Printf("catalog loaded: %d videos, %d categories", len(cat.Videos()), len(cat.Categories()))

	// Size probe: S3 HeadObject when a bucket is configured, plain
	// HTTP HEAD otherwise.
	var prober monitor.SizeProber = &monitor.HTTPProber{
		Client: &http.Client{Timeout: 10 * time.Second},
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		mediaStore, err := storage.New(ctx, storage.Config{
			Endpoint:       endpoint,
			PublicEndpoint: os.Getenv("S3_PUBLIC_ENDPOINT"),
			Bucket:         getEnv("S3_BUCKET", "reelgrid"),
			AccessKey:      os.Getenv("S3_ACCESS_KEY"),
			SecretKey:      os.Getenv("S3_SECRET_KEY"),
			Region:         getEnv("S3_REGION", "eu-central-1"),
		})
		if err != nil {
			log.Fatalf("storage initialization failed: %v", err)
		}
		if err := mediaStore.EnsureBucket(ctx); err != nil {
			log.Fatalf("storage bucket check failed: %v", err)
		}
		prober = mediaStore
		log.Println("storage bucket ready")
	}

	var extractor thumb.FrameExtractor = thumb.NoopExtractor{}
	if getEnv("FFMPEG_ENABLED", "true") == "true" {
		extractor = thumb.FFmpegExtractor{}
	}
	engine := thumb.NewEngine(cache, extractor)

	prewarmCtx, prewarmCancel := context.WithCancel(context.Background())
	defer prewarmCancel()
	thumb.StartPrewarmLoop(prewarmCtx, engine, func() []thumb.Ref {
		videos := cat.Videos()
		refs := make([]thumb.Ref, 0, len(videos))
		for _, v := range videos {
			refs = append(refs, thumb.Ref{
				ID:     v.ID.String(),
				Path:   v.Path,
				Poster: v.Poster,
				Title:  v.Title,
			})
		}
		return refs
	}, time.Duration(getEnvInt64("PREWARM_INTERVAL_MINUTES", 30))*time.Minute)

	var webFS fs.FS
	if webDir := os.Getenv("WEB_DIR"); webDir != "" {
		webFS = os.DirFS(webDir)
		log.Printf("serving static assets from %s", webDir)
	}

	srv := server.New(server.Config{
		Catalog:         cat,
		Cache:           cache,
		Thumbs:          engine,
		Prober:          prober,
		Pinger:          pinger,
		WebFS:           webFS,
		BaseURL:         baseURL,
		UploadURL:       os.Getenv("UPLOAD_URL"),
		RelayAllowHosts: splitList(os.Getenv("RELAY_ALLOW_HOSTS")),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("reelgrid listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
