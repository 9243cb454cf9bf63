package desaweb

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/kkn-guyangan/desaweb/content"
	"github.com/kkn-guyangan/desaweb/view"
)

const (
	homeArticles   = 3
	homeGallery    = 8
	homeBusinesses = 6
	relatedLimit   = 3
)

type siteInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (a *App) site() siteInfo {
	return siteInfo{Name: a.Config.Name, Description: a.Config.Description, URL: a.Config.URL}
}

func firstN(rs []view.DisplayRecord, n int) []view.DisplayRecord {
	if len(rs) > n {
		return rs[:n]
	}
	return nonNil(rs)
}

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		articles   []content.Article
		gallery    []content.GalleryItem
		businesses []content.Business
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		articles, err = a.Content.ListArticles(gctx)
		return err
	})
	g.Go(func() (err error) {
		gallery, err = a.Content.ListGallery(gctx)
		return err
	})
	g.Go(func() (err error) {
		businesses, err = a.Content.ListBusinesses(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"site":       a.site(),
		"json_ld":    WebsiteJsonLD(a.Config),
		"articles":   firstN(a.View.Articles(articles, view.CardSummary), homeArticles),
		"gallery":    firstN(a.View.Gallery(gallery), homeGallery),
		"businesses": firstN(a.View.Businesses(businesses, view.CardSummary), homeBusinesses),
	})
}

func (a *App) handleArticles(c echo.Context) error {
	articles, err := a.Content.ListArticles(c.Request().Context())
	if err != nil {
		return err
	}
	all := a.View.Articles(articles, view.ListSummary)
	filtered := view.Filter(all, c.QueryParam("q"), a.categoryParam(c))
	view.Sort(filtered, c.QueryParam("sort"))

	return c.JSON(http.StatusOK, map[string]any{
		"articles":     nonNil(filtered),
		"categories":   nonNilStrings(view.Categories(all)),
		"all_category": a.View.Locale.AllCategory,
		"recent":       firstN(all, 4),
		"total":        len(filtered),
	})
}

func (a *App) handleArticle(c echo.Context) error {
	ctx := c.Request().Context()
	art, err := a.Content.GetArticle(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	articles, err := a.Content.ListArticles(ctx)
	if err != nil {
		return err
	}
	rec := a.View.Article(art, view.ListSummary, true)
	related := view.Related(rec, a.View.Articles(articles, view.CardSummary), relatedLimit)

	return c.JSON(http.StatusOK, map[string]any{
		"article": rec,
		"related": nonNil(related),
		"json_ld": ArticleJsonLD(art, a.Config),
	})
}

func (a *App) handleGallery(c echo.Context) error {
	items, err := a.Content.ListGallery(c.Request().Context())
	if err != nil {
		return err
	}
	all := a.View.Gallery(items)
	filtered := view.Filter(all, c.QueryParam("q"), a.categoryParam(c))

	return c.JSON(http.StatusOK, map[string]any{
		"gallery":      nonNil(filtered),
		"categories":   view.CountCategories(all),
		"all_category": a.View.Locale.AllCategory,
		"total":        len(filtered),
	})
}

func (a *App) handleBusinesses(c echo.Context) error {
	bs, err := a.Content.ListBusinesses(c.Request().Context())
	if err != nil {
		return err
	}
	all := a.View.Businesses(bs, view.CardSummary)
	filtered := view.Filter(all, c.QueryParam("q"), a.categoryParam(c))
	view.Sort(filtered, c.QueryParam("sort"))

	return c.JSON(http.StatusOK, map[string]any{
		"businesses":   nonNil(filtered),
		"categories":   view.BusinessCategories,
		"all_category": a.View.Locale.AllCategory,
		"total":        len(filtered),
	})
}

func (a *App) handleBusiness(c echo.Context) error {
	b, err := a.Content.GetBusiness(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"business": a.View.Business(b, view.CardSummary, true),
	})
}

func (a *App) handleBusinessCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, view.BusinessCategories)
}

func (a *App) handleSitemap(c echo.Context) error {
	articles, err := a.Content.ListArticles(c.Request().Context())
	if err != nil {
		return err
	}
	bs, err := a.Content.ListBusinesses(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, articles, bs)
}

func (a *App) handleFeed(c echo.Context) error {
	articles, err := a.Content.ListArticles(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, articles)
}

func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nDisallow: /admin\n\nSitemap: %s\n", a.Config.URL+"/sitemap.xml")
	return c.String(http.StatusOK, body)
}

// categoryParam reads the category filter. The locale's "all categories"
// label selects everything, same as no filter.
func (a *App) categoryParam(c echo.Context) string {
	cat := strings.TrimSpace(c.QueryParam("category"))
	if strings.EqualFold(cat, a.View.Locale.AllCategory) {
		return ""
	}
	return cat
}

// nonNil keeps empty lists as [] rather than null in JSON.
func nonNil(rs []view.DisplayRecord) []view.DisplayRecord {
	if rs == nil {
		return []view.DisplayRecord{}
	}
	return rs
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
