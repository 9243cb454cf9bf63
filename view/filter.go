package view

import "strings"

// BusinessCategories are the categories offered when listing a business.
var BusinessCategories = []string{
	"Makanan",
	"Minuman",
	"Kerajinan",
	"Fashion",
	"Pertanian",
	"Peternakan",
	"Jasa",
	"Lain-lain",
}

// DefaultGalleryCategory is used when no keyword matches a photo title.
const DefaultGalleryCategory = "Kegiatan"

var galleryKeywords = []struct {
	category string
	words    []string
}{
	{"Pemandangan", []string{"alam", "pemandangan", "sawah", "gunung", "pantai"}},
	{"Budaya", []string{"budaya", "tradisi", "adat", "seni", "tari"}},
	{"Infrastruktur", []string{"jalan", "bangunan", "fasilitas", "jembatan", "gedung", "kantor"}},
	{"Masyarakat", []string{"warga", "masyarakat", "penduduk", "gotong royong", "kerjasama"}},
}

// GalleryCategory infers a photo's category from keywords in its title.
// The first matching group wins.
func GalleryCategory(title string) string {
	t := strings.ToLower(title)
	for _, g := range galleryKeywords {
		for _, w := range g.words {
			if strings.Contains(t, w) {
				return g.category
			}
		}
	}
	return DefaultGalleryCategory
}

// CategoryCount is a category with the number of records in it.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Categories returns the distinct categories of rs in first-seen order.
func Categories(rs []DisplayRecord) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rs {
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		out = append(out, r.Category)
	}
	return out
}

// CountCategories counts rs per category in first-seen order.
func CountCategories(rs []DisplayRecord) []CategoryCount {
	idx := make(map[string]int)
	var out []CategoryCount
	for _, r := range rs {
		i, ok := idx[r.Category]
		if !ok {
			i = len(out)
			idx[r.Category] = i
			out = append(out, CategoryCount{Category: r.Category})
		}
		out[i].Count++
	}
	return out
}

// Filter keeps records in category (all when empty) whose title, summary,
// body or owner contains query, ignoring case.
func Filter(rs []DisplayRecord, query, category string) []DisplayRecord {
	q := strings.ToLower(strings.TrimSpace(query))
	category = strings.TrimSpace(category)
	var out []DisplayRecord
	for _, r := range rs {
		if category != "" && r.Category != category {
			continue
		}
		if q != "" && !matches(r, q) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r DisplayRecord, q string) bool {
	for _, s := range []string{r.Title, r.Summary, r.Body, r.OwnerName} {
		if strings.Contains(strings.ToLower(s), q) {
			return true
		}
	}
	return false
}

// Related returns up to limit records sharing current's category, excluding
// current itself.
func Related(current DisplayRecord, rs []DisplayRecord, limit int) []DisplayRecord {
	var out []DisplayRecord
	for _, r := range rs {
		if len(out) == limit {
			break
		}
		if r.ID == current.ID || r.Category != current.Category {
			continue
		}
		out = append(out, r)
	}
	return out
}
