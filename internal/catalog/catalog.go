// Package catalog loads and queries the video listing and category
// configuration documents.
package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// DefaultPageSize is the listing page size.
const DefaultPageSize = 12

// ID accepts both string and numeric identifiers in catalog JSON and
// normalizes them to a string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("video id must be a string or number: %s", data)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Video struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Path        string   `json:"path"`
	Poster      string   `json:"thumbnail,omitempty"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Catalog is the immutable listing loaded at startup.
type Catalog struct {
	videos     []Video
	categories []Category
}

type videoFile struct {
	Videos []Video `json:"videos"`
}

type configFile struct {
	Categories []Category `json:"categories"`
}

// Load reads the listing and category documents. A missing or corrupt
// file falls back to the built-in placeholder set so the site never
// renders empty; both cases are logged and non-fatal.
func Load(videoPath, configPath string) *Catalog {
	c := &Catalog{}

	var vf videoFile
	if err := readJSON(videoPath, &vf); err != nil {
		log.Printf("catalog: %v, using built-in videos", err)
		c.videos = fallbackVideos()
	} else {
		c.videos = vf.Videos
	}

	var cf configFile
	if err := readJSON(configPath, &cf); err != nil {
		log.Printf("catalog: %v, using built-in categories", err)
		c.categories = fallbackCategories()
	} else {
		c.categories = cf.Categories
	}
	return c
}

// New builds a catalog from in-memory data, for tests and embedding.
func New(videos []Video, categories []Category) *Catalog {
	return &Catalog{videos: videos, categories: categories}
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Catalog) Categories() []Category { return c.categories }

func (c *Catalog) Videos() []Video { return c.videos }

// ByID returns the video with the given id.
func (c *Catalog) ByID(id string) (Video, bool) {
	for _, v := range c.videos {
		if v.ID.String() == id {
			return v, true
		}
	}
	return Video{}, false
}

// Query filters and paginates the listing.
type Query struct {
	Search   string
	Category string // "" or "all" passes everything
	Page     int    // 1-based
	PerPage  int    // <=0 means DefaultPageSize
}

// Page is one page of results plus the paging totals.
type Page struct {
	Items      []Video
	Total      int
	TotalPages int
	Page       int
	PerPage    int
}

// Find applies the search term (title, description, tags,
// case-insensitive) and category filter, then slices out one page.
func (c *Catalog) Find(q Query) Page {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	var matched []Video
	term := strings.ToLower(strings.TrimSpace(q.Search))
	for _, v := range c.videos {
		if !categoryMatches(v, q.Category) {
			continue
		}
		if term != "" && !searchMatches(v, term) {
			continue
		}
		matched = append(matched, v)
	}

	total := len(matched)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return Page{
		Items:      matched[start:end],
		Total:      total,
		TotalPages: totalPages,
		Page:       page,
		PerPage:    perPage,
	}
}

func categoryMatches(v Video, category string) bool {
	if category == "" || category == "all" {
		return true
	}
	return v.Category == category
}

func searchMatches(v Video, term string) bool {
	if strings.Contains(strings.ToLower(v.Title), term) {
		return true
	}
	if strings.Contains(strings.ToLower(v.Description), term) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

func fallbackVideos() []Video {
	videos := make([]Video, 0, 6)
	for i := 1; i <= 6; i++ {
		videos = append(videos, Video{
			ID:          ID(strconv.Itoa(i)),
			Title:       fmt.Sprintf("Sample Video %d", i),
			Description: "Placeholder entry shown while the catalog file is unavailable.",
			Path:        fmt.Sprintf("/videos/sample-%d.mp4", i),
			Date:        "2024-01-01",
			Tags:        []string{"sample"},
			Category:    "all",
		})
	}
	return videos
}

func fallbackCategories() []Category {
	return []Category{
		{ID: "all", Name: "All", Description: "Everything", Icon: "grid"},
		{ID: "music", Name: "Music", Description: "Music videos", Icon: "note"},
		{ID: "tech", Name: "Tech", Description: "Technology", Icon: "chip"},
	}
}
