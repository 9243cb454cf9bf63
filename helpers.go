package desaweb

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/kkn-guyangan/desaweb/content"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// WebsiteJsonLD returns a JSON-LD string for a WebSite schema using SiteConfig.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context":    "https://schema.org",
		"@type":       "WebSite",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
		"inLanguage":  cfg.Locale,
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ArticleJsonLD returns a JSON-LD string for a NewsArticle schema.
func ArticleJsonLD(art content.Article, cfg SiteConfig) string {
	articleURL := BuildURL(cfg.URL, "artikel", art.ID)
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "NewsArticle",
		"headline": art.Title,
		"url":      articleURL,
		"mainEntityOfPage": map[string]string{
			"@type": "WebPage",
			"@id":   articleURL,
		},
	}
	if art.ImageURL != "" {
		data["image"] = []string{art.ImageURL}
	}
	if art.CreatedAt.Valid {
		data["datePublished"] = art.CreatedAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if art.UpdatedAt.Valid {
		data["dateModified"] = art.UpdatedAt.Time.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if art.Category != "" {
		data["articleSection"] = art.Category
	}
	if cfg.Name != "" {
		data["publisher"] = map[string]string{
			"@type": "Organization",
			"name":  cfg.Name,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
