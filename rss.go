package desaweb

import (
	"encoding/xml"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kkn-guyangan/desaweb/content"
	"github.com/kkn-guyangan/desaweb/view"
)

const feedItems = 20

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Language    string    `xml:"language,omitempty"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string        `xml:"title"`
	Link        string        `xml:"link"`
	Description string        `xml:"description"`
	Category    string        `xml:"category,omitempty"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
	PubDate     string        `xml:"pubDate,omitempty"`
	GUID        string        `xml:"guid"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

func (a *App) renderRSS(c echo.Context, articles []content.Article) error {
	base := a.Config.URL
	recs := a.View.Articles(articles, view.ListSummary)
	byID := make(map[string]content.Article, len(articles))
	for _, art := range articles {
		byID[art.ID] = art
	}

	items := make([]rssItem, 0, feedItems)
	for _, r := range firstN(recs, feedItems) {
		art := byID[r.ID]
		pubDate := ""
		if art.CreatedAt.Valid {
			pubDate = art.CreatedAt.Time.UTC().Format(time.RFC1123Z)
		}
		link := BuildURL(base, "artikel", r.ID)
		item := rssItem{
			Title:       r.Title,
			Link:        link,
			Description: r.Summary,
			Category:    r.Category,
			PubDate:     pubDate,
			GUID:        link,
		}
		if r.ImageURL != "" {
			item.Enclosure = &rssEnclosure{URL: r.ImageURL, Type: "image/jpeg"}
		}
		items = append(items, item)
	}
	feed := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       a.Config.Name,
			Link:        base,
			Description: a.Config.Description,
			Language:    a.View.Locale.Name,
			Items:       items,
		},
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(feed)
}
