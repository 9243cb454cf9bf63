// Package view turns stored records into display records for the public
// pages. Everything here is a pure function of its input and a Locale.
package view

import (
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kkn-guyangan/desaweb/content"
)

// Summary budgets in characters.
const (
	CardSummary = 100
	ListSummary = 150
)

// Record kinds.
const (
	KindArticle  = "article"
	KindGallery  = "gallery"
	KindBusiness = "business"
)

// DisplayRecord is the normalized shape every page consumes. It is rebuilt
// on each read and never stored.
type DisplayRecord struct {
	ID           string   `json:"id"`
	Kind         string   `json:"kind"`
	Title        string   `json:"title"`
	ImageURL     string   `json:"image_url"`
	Category     string   `json:"category"`
	Summary      string   `json:"summary"`
	Body         string   `json:"body,omitempty"`
	Paragraphs   []string `json:"paragraphs,omitempty"`
	Date         string   `json:"date"`
	Time         string   `json:"time,omitempty"`
	ExternalLink string   `json:"external_link,omitempty"`
	OwnerName    string   `json:"owner_name,omitempty"`
	Phone        string   `json:"phone,omitempty"`

	CreatedAt content.Timestamp `json:"-"`
}

// Adapter builds display records for one locale.
type Adapter struct {
	Locale Locale
}

// NewAdapter returns an Adapter for l.
func NewAdapter(l Locale) *Adapter {
	return &Adapter{Locale: l}
}

// Article converts a to a display record with a summary of at most budget
// characters. The full body is included only when full is set.
func (a *Adapter) Article(art content.Article, budget int, full bool) DisplayRecord {
	r := DisplayRecord{
		ID:           art.ID,
		Kind:         KindArticle,
		Title:        art.Title,
		ImageURL:     art.ImageURL,
		Category:     CategoryOrDefault(art.Category),
		Summary:      a.Summary(art.BodyText, budget),
		Date:         FormatDate(art.CreatedAt, a.Locale),
		Time:         FormatTime(art.CreatedAt, a.Locale),
		ExternalLink: art.ExternalLink,
		CreatedAt:    art.CreatedAt,
	}
	if full {
		r.Body = art.BodyText
		r.Paragraphs = a.Paragraphs(art.BodyText)
	}
	return r
}

// Articles converts and sorts newest first.
func (a *Adapter) Articles(arts []content.Article, budget int) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(arts))
	for _, art := range arts {
		out = append(out, a.Article(art, budget, false))
	}
	SortNewestFirst(out)
	return out
}

// GalleryItem converts g. Gallery items carry no category of their own; it
// is inferred from the title.
func (a *Adapter) GalleryItem(g content.GalleryItem) DisplayRecord {
	return DisplayRecord{
		ID:        g.ID,
		Kind:      KindGallery,
		Title:     g.Title,
		ImageURL:  g.PhotoURL,
		Category:  GalleryCategory(g.Title),
		Date:      FormatDate(g.CreatedAt, a.Locale),
		CreatedAt: g.CreatedAt,
	}
}

// Gallery converts and sorts newest first.
func (a *Adapter) Gallery(items []content.GalleryItem) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(items))
	for _, g := range items {
		out = append(out, a.GalleryItem(g))
	}
	SortNewestFirst(out)
	return out
}

// Business converts b with a card-sized summary of its description.
func (a *Adapter) Business(b content.Business, budget int, full bool) DisplayRecord {
	r := DisplayRecord{
		ID:        b.ID,
		Kind:      KindBusiness,
		Title:     b.Name,
		ImageURL:  b.ImageURL,
		Category:  CategoryOrDefault(b.Category),
		Summary:   a.Summary(b.Description, budget),
		Date:      FormatDate(b.CreatedAt, a.Locale),
		OwnerName: b.OwnerName,
		Phone:     b.Phone,
		CreatedAt: b.CreatedAt,
	}
	if full {
		r.Body = b.Description
		r.Paragraphs = a.Paragraphs(b.Description)
	}
	return r
}

// Businesses converts and sorts newest first.
func (a *Adapter) Businesses(bs []content.Business, budget int) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(bs))
	for _, b := range bs {
		out = append(out, a.Business(b, budget, false))
	}
	SortNewestFirst(out)
	return out
}

// Summary truncates body to budget characters, or returns the locale's
// placeholder for an empty body.
func (a *Adapter) Summary(body string, budget int) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return a.Locale.NoContent
	}
	return Truncate(body, budget)
}

// Paragraphs splits body on newlines. Blank lines stay as empty strings so
// the page can render them as breaks.
func (a *Adapter) Paragraphs(body string) []string {
	if strings.TrimSpace(body) == "" {
		return []string{a.Locale.NoContent}
	}
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

// CategoryOrDefault substitutes content.DefaultCategory for a blank category.
func CategoryOrDefault(c string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return content.DefaultCategory
}

// Truncate keeps the first n characters of s and appends "..." when it cut
// anything. The kept prefix is not trimmed. It never splits a multi-byte
// character.
func Truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}

func timeOf(r DisplayRecord) (time.Time, bool) {
	if !r.CreatedAt.Valid || r.CreatedAt.Time.IsZero() {
		return time.Time{}, false
	}
	return r.CreatedAt.Time, true
}

// SortNewestFirst orders records by creation time, newest first. Records
// without a usable date go last and keep their relative order.
func SortNewestFirst(rs []DisplayRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		ti, okI := timeOf(rs[i])
		tj, okJ := timeOf(rs[j])
		if okI != okJ {
			return okI
		}
		return okI && ti.After(tj)
	})
}

// SortOldestFirst is the reverse of SortNewestFirst for dated records.
// Undated records still go last.
func SortOldestFirst(rs []DisplayRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		ti, okI := timeOf(rs[i])
		tj, okJ := timeOf(rs[j])
		if okI != okJ {
			return okI
		}
		return okI && ti.Before(tj)
	})
}

// SortByTitle orders records by title, case-insensitively.
func SortByTitle(rs []DisplayRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		return strings.ToLower(rs[i].Title) < strings.ToLower(rs[j].Title)
	})
}

// Sort applies a named order: "newest" (default), "oldest" or "name".
func Sort(rs []DisplayRecord, order string) {
	switch order {
	case "oldest":
		SortOldestFirst(rs)
	case "name":
		SortByTitle(rs)
	default:
		SortNewestFirst(rs)
	}
}
