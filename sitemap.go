package desaweb

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kkn-guyangan/desaweb/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Public pages of the frontend that exist regardless of content.
var staticPages = []string{"artikel", "galeri", "umkm", "about"}

func lastMod(created, updated content.Timestamp) string {
	switch {
	case updated.Valid:
		return updated.Time.UTC().Format("2006-01-02")
	case created.Valid:
		return created.Time.UTC().Format("2006-01-02")
	}
	return ""
}

func (a *App) renderSitemap(c echo.Context, articles []content.Article, businesses []content.Business) error {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, p := range staticPages {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, p)})
	}
	for _, art := range articles {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "artikel", art.ID),
			LastMod: lastMod(art.CreatedAt, art.UpdatedAt),
		})
	}
	for _, b := range businesses {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, "umkm", b.ID),
			LastMod: lastMod(b.CreatedAt, b.UpdatedAt),
		})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
