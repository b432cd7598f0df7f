// Package thumb derives a poster image and duration for a video the
// site has never seen, degrading to generated placeholder art.
package thumb

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"github.com/reelgrid/reelgrid/internal/playcache"
)

const (
	maxAttempts    = 3
	attemptTimeout = 10 * time.Second
)

// Ref identifies one video for capture purposes.
type Ref struct {
	ID     string
	Path   string
	Poster string
	Title  string
}

type Engine struct {
	cache          *playcache.Cache
	extractor      FrameExtractor
	attempts       int
	attemptTimeout time.Duration
}

func NewEngine(cache *playcache.Cache, extractor FrameExtractor) *Engine {
	return &Engine{
		cache:          cache,
		extractor:      extractor,
		attempts:       maxAttempts,
		attemptTimeout: attemptTimeout,
	}
}

// Capture never fails outward: every input resolves to some image
// within attempts × timeout. Capture errors are diagnostics only.
func (e *Engine) Capture(ctx context.Context, ref Ref) string {
	if ref.Poster != "" {
		return ref.Poster
	}

	key := playcache.Key(ref.ID, ref.Path)
	if cached, ok := e.cache.FreshThumbnail(ctx, key); ok {
		return cached
	}

	if ref.Path != "" {
		for attempt := 1; attempt <= e.attempts; attempt++ {
			uri, ok := e.tryCapture(ctx, key, ref.Path)
			if ok {
				e.persist(ctx, key, uri)
				return uri
			}
			if ctx.Err() != nil {
				break
			}
			log.Printf("thumb: capture attempt %d/%d failed for %s", attempt, e.attempts, ref.Path)
		}
	}

	placeholder := PlaceholderSVG(ref.Title)
	e.persist(ctx, key, placeholder)
	return placeholder
}

func (e *Engine) tryCapture(ctx context.Context, key, path string) (string, bool) {
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()

	frame, duration, err := e.extractor.ExtractFrame(attemptCtx, path)
	if duration > 0 {
		// Record the duration even when the frame itself failed.
		if err := e.cache.SetDuration(ctx, key, duration); err != nil {
			log.Printf("thumb: cache duration for %s: %v", key, err)
		}
	}
	if err != nil {
		return "", false
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame), true
}

func (e *Engine) persist(ctx context.Context, key, uri string) {
	if err := e.cache.SetThumbnail(ctx, key, uri); err != nil {
		log.Printf("thumb: cache thumbnail for %s: %v", key, err)
	}
}

// placeholderPalette is the fixed set of card colors for generated
// fallback art.
var placeholderPalette = [...]string{
	"#00a1d6", "#f25d8e", "#fb7299", "#ff9800", "#4caf50", "#2196f3", "#9c27b0",
}

const placeholderTitleLimit = 20

// PlaceholderSVG renders deterministic fallback art: a palette color
// picked by title hash, the truncated title, and a play glyph.
func PlaceholderSVG(title string) string {
	if title == "" {
		title = "video"
	}
	color := placeholderPalette[hashTitle(title)%uint32(len(placeholderPalette))]

	text := title
	if runes := []rune(text); len(runes) > placeholderTitleLimit {
		text = string(runes[:placeholderTitleLimit]) + "..."
	}
	text = escapeXML(text)

	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="320" height="180">`+
		`<rect width="100%%" height="100%%" fill="%s"/>`+
		`<text x="50%%" y="50%%" font-family="Arial" font-size="16" fill="white" text-anchor="middle" dy=".3em">%s</text>`+
		`<path d="M120 80 L200 120 L120 160 Z" fill="white" opacity="0.8"/>`+
		`</svg>`, color, text)

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

func hashTitle(title string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(title))
	return h.Sum32()
}

func escapeXML(s string) string {
	var out []rune
	for _, r := range s {
		switch r {
		case '&':
			out = append(out, []rune("&amp;")...)
		case '<':
			out = append(out, []rune("&lt;")...)
		case '>':
			out = append(out, []rune("&gt;")...)
		case '"':
			out = append(out, []rune("&quot;")...)
		default:
			out = append(out, r)
		}
	}
	return string(out)
}
