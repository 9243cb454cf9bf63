// Package desaweb is the backend of the Padukuhan Guyangan village site.
// It serves the public JSON API for articles, gallery photos and local
// businesses, and the admin endpoints that add, edit and delete them.
//
// Page markup lives in a separate frontend; this package stops at JSON,
// RSS and the sitemap.
package desaweb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kkn-guyangan/desaweb/assets"
	"github.com/kkn-guyangan/desaweb/content"
	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
	"github.com/kkn-guyangan/desaweb/view"
)

// App is the central application. It wires together the document store,
// asset host, content service, handlers and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *docstore.Store
	Assets  assets.Host
	Content *content.Service
	View    *view.Adapter
	Log     *zap.Logger

	loginLimiter *LoginLimiter
	customRoutes []func(*App)
}

// New creates an App with the given configuration. Call Init before serving.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()
	cfg.URL = normalizeURL(cfg.URL)

	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Log:    zap.NewNop(),
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init opens the store, builds the content service and registers middleware
// and routes.
func (a *App) Init() error {
	if err := a.Config.validate(); err != nil {
		return err
	}

	store, err := docstore.Open(a.Config.Database.Driver, a.Config.Database.DSN)
	if err != nil {
		return fmt.Errorf("desaweb: init store: %w", err)
	}
	a.Store = store
	a.Log.Info("document store opened", zap.String("driver", store.Driver()))

	if a.Assets == nil {
		a.Assets = a.newAssetHost()
	}

	comp := imaging.New()
	comp.MaxBytes = a.Config.ImageCeiling
	a.Content = content.New(a.Store, a.Assets, comp,
		content.WithLogger(a.Log.Named("content")),
		content.WithImageCeiling(a.Config.ImageCeiling),
		content.WithSessionTTL(a.Config.SessionTTL),
	)
	a.View = view.NewAdapter(view.LocaleByName(a.Config.Locale))
	a.loginLimiter = NewLoginLimiter(a.Config.LoginAttempts, a.Config.LoginWindow)

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

func (a *App) newAssetHost() assets.Host {
	switch a.Config.Assets.Provider {
	case "cloudinary":
		cc := a.Config.Assets.Cloudinary
		c := assets.NewCloudinary(cc.CloudName, cc.UploadPreset, &http.Client{Timeout: 60 * time.Second})
		c.APIKey = cc.APIKey
		c.APISecret = cc.APISecret
		return c
	default:
		return assets.NewLocal(a.Config.Assets.Dir, a.Config.URL)
	}
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (a *App) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server listening", zap.String("addr", a.Config.Addr), zap.String("url", a.Config.URL))
		errCh <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("desaweb: shutdown: %w", err)
	}
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	if _, ok := a.Assets.(*assets.Local); ok {
		e.Static("/public", a.Config.Assets.Dir)
	}
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	api := e.Group("/api")
	api.GET("/home", a.handleHome)
	api.GET("/articles", a.handleArticles)
	api.GET("/articles/:id", a.handleArticle)
	api.GET("/gallery", a.handleGallery)
	api.GET("/businesses", a.handleBusinesses)
	api.GET("/businesses/:id", a.handleBusiness)
	api.GET("/businesses/categories", a.handleBusinessCategories)

	admin := e.Group("/admin")
	admin.GET("/csrf", a.handleAdminCSRF)
	admin.POST("/login", a.handleAdminLogin)
	admin.POST("/logout", a.handleAdminLogout)
	admin.GET("/session", a.handleAdminSession, a.requireAdmin)

	admin.POST("/articles", a.handleCreateArticle, a.requireAdmin)
	admin.PUT("/articles/:id", a.handleUpdateArticle, a.requireAdmin)
	admin.DELETE("/articles/:id", a.handleDeleteArticle, a.requireAdmin)

	admin.POST("/gallery", a.handleCreateGalleryItem, a.requireAdmin)
	admin.PUT("/gallery/:id", a.handleUpdateGalleryItem, a.requireAdmin)
	admin.DELETE("/gallery/:id", a.handleDeleteGalleryItem, a.requireAdmin)

	admin.POST("/businesses", a.handleCreateBusiness, a.requireAdmin)
	admin.PUT("/businesses/:id", a.handleUpdateBusiness, a.requireAdmin)
	admin.DELETE("/businesses/:id", a.handleDeleteBusiness, a.requireAdmin)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
