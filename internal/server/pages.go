package server

import (
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/reelgrid/reelgrid/internal/catalog"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"github.com/reelgrid/reelgrid/internal/playcache"
)

type watchPageData struct {
	Title     string
	VideoURL  string
	RelayURL  string
	Thumbnail string
	Views     int64
	Nonce     string
}

type indexPageData struct {
	Videos     []videoItem
	Categories []catalog.Category
	Query      string
	Category   string
	Page       int
	TotalPages int
	UploadURL  string
	Nonce      string
}

type notFoundPageData struct {
	Nonce string
}

var watchPageTemplate = template.Must(template.New("watch").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        html, body { width: 100%; height: 100%; background: #0f172a; color: #e2e8f0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; }
        .wrap { display: flex; flex-direction: column; height: 100%; }
        .stage { flex: 1; min-height: 0; display: flex; align-items: center; justify-content: center; background: #000; }
        video { width: 100%; height: 100%; object-fit: contain; }
        .bar { display: flex; align-items: center; justify-content: space-between; padding: 10px 14px; background: #1e293b; }
        .bar a { color: #94a3b8; text-decoration: none; font-size: 13px; }
        .bar a:hover { color: #e2e8f0; }
        .views { color: #64748b; font-size: 13px; margin-left: 12px; }
        #relay-prompt { display: none; position: absolute; left: 50%; top: 50%; transform: translate(-50%, -50%); background: #1e293b; padding: 16px 20px; border-radius: 8px; text-align: center; }
        #relay-prompt button { margin-top: 10px; padding: 6px 16px; cursor: pointer; }
    </style>
</head>
<body>
    <div class="wrap">
        <div class="stage">
            <video controls playsinline crossorigin="anonymous" src="{{.VideoURL}}"{{if .Thumbnail}} poster="{{.Thumbnail}}"{{end}}></video>
            {{if .RelayURL}}<div id="relay-prompt">
                <div>Direct playback failed. Route through this site instead?</div>
                <button id="relay-go">Use relay</button>
            </div>{{end}}
        </div>
        <div class="bar">
            <span>{{.Title}}<span class="views">{{.Views}} views</span></span>
            <a href="/">Back to catalog</a>
        </div>
    </div>
    {{if .RelayURL}}<script nonce="{{.Nonce}}">
        (function() {
            var v = document.querySelector('video');
            var prompt = document.getElementById('relay-prompt');
            var engaged = false;
            v.addEventListener('error', function() {
                if (!engaged) { prompt.style.display = 'block'; }
            });
            document.getElementById('relay-go').addEventListener('click', function() {
                engaged = true;
                prompt.style.display = 'none';
                v.src = {{.RelayURL}};
                v.load();
                v.play().catch(function() {});
            });
        })();
    </script>{{end}}
</body>
</html>`))

var indexPageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>ReelGrid</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { background: #0f172a; color: #e2e8f0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; padding: 24px; }
        header { display: flex; align-items: center; justify-content: space-between; margin-bottom: 20px; }
        nav a { color: #94a3b8; text-decoration: none; margin-right: 12px; font-size: 14px; }
        nav a:hover, nav a.active { color: #e2e8f0; }
        form input { padding: 6px 10px; border-radius: 6px; border: 1px solid #334155; background: #1e293b; color: #e2e8f0; }
        .grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(240px, 1fr)); gap: 16px; }
        .card { background: #1e293b; border-radius: 8px; overflow: hidden; }
        .card img { width: 100%; aspect-ratio: 16/9; object-fit: cover; display: block; }
        .card .meta { padding: 10px 12px; }
        .card a { color: #e2e8f0; text-decoration: none; font-size: 14px; }
        .pager { margin-top: 20px; text-align: center; }
        .pager a, .pager span { color: #94a3b8; margin: 0 6px; text-decoration: none; }
    </style>
</head>
<body>
    <header>
        <nav>
            {{$cat := .Category}}{{range .Categories}}<a href="/?category={{.ID}}"{{if eq .ID $cat}} class="active"{{end}}>{{.Name}}</a>{{end}}
        </nav>
        <form method="get" action="/"><input type="search" name="q" placeholder="Search" value="{{.Query}}"></form>
        {{if .UploadURL}}<a href="{{.UploadURL}}" target="_blank" rel="noopener">Contribute</a>{{end}}
    </header>
    <div class="grid">
        {{range .Videos}}<div class="card">
            <a href="/watch/{{.ID}}"><img src="{{.Thumbnail}}" alt="{{.Title}}"></a>
            <div class="meta"><a href="/watch/{{.ID}}">{{.Title}}</a></div>
        </div>{{end}}
    </div>
    {{if gt .TotalPages 1}}<div class="pager">
        <span>Page {{.Page}} of {{.TotalPages}}</span>
    </div>{{end}}
</body>
</html>`))

var notFoundPageTemplate = template.Must(template.New("not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta http-equiv="refresh" content="3;url=/">
    <title>Video not found</title>
    <style nonce="{{.Nonce}}">
        body { background: #0f172a; color: #e2e8f0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; display: flex; align-items: center; justify-content: center; height: 100vh; }
    </style>
</head>
<body>
    <div>
        <h1>Video not found</h1>
        <p>Taking you back to the catalog…</p>
    </div>
</body>
</html>`))

func (s *Server) handleWatchPage(w http.ResponseWriter, r *http.Request) {
	v, ok := s.catalog.ByID(chi.URLParam(r, "id"))
	if !ok {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		data := notFoundPageData{Nonce: httputil.NonceFromContext(r.Context())}
		if err := notFoundPageTemplate.Execute(w, data); err != nil {
			log.Printf("pages: render not-found: %v", err)
		}
		return
	}

	item := s.videoItem(r, v)

	// External sources get the first-party relay as the fallback the
	// page offers when direct playback fails.
	relayURL := ""
	if u, err := url.Parse(v.Path); err == nil && u.IsAbs() {
		relayURL = "/relay?url=" + url.QueryEscape(v.Path)
	}

	if s.cache != nil {
		if _, err := s.cache.AddView(r.Context(), playcache.Key(v.ID.String(), v.Path)); err != nil {
			log.Printf("pages: bump views for %s: %v", v.ID, err)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := watchPageData{
		Title:     v.Title,
		VideoURL:  v.Path,
		RelayURL:  relayURL,
		Thumbnail: item.Thumbnail,
		Views:     item.Views,
		Nonce:     httputil.NonceFromContext(r.Context()),
	}
	if err := watchPageTemplate.Execute(w, data); err != nil {
		log.Printf("pages: render watch: %v", err)
	}
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNum, _ := strconv.Atoi(q.Get("page"))
	result := s.catalog.Find(catalog.Query{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Page:     pageNum,
	})

	items := make([]videoItem, 0, len(result.Items))
	for _, v := range result.Items {
		items = append(items, s.videoItem(r, v))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexPageData{
		Videos:     items,
		Categories: s.catalog.Categories(),
		Query:      q.Get("q"),
		Category:   q.Get("category"),
		Page:       result.Page,
		TotalPages: result.TotalPages,
		UploadURL:  s.uploadURL,
		Nonce:      httputil.NonceFromContext(r.Context()),
	}
	if err := indexPageTemplate.Execute(w, data); err != nil {
		log.Printf("pages: render index: %v", err)
	}
}
