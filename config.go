package desaweb

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kkn-guyangan/desaweb/assets"
)

// SiteConfig holds all configuration for a desaweb site.
type SiteConfig struct {
	Name        string `yaml:"name"`        // Site name (default "Padukuhan Guyangan")
	URL         string `yaml:"url"`         // Canonical URL (default "http://localhost:3000")
	Description string `yaml:"description"` // Site description for RSS
	Addr        string `yaml:"addr"`        // Listen address (default ":3000")
	Locale      string `yaml:"locale"`      // "id" (default) or "en"

	Database DatabaseConfig `yaml:"database"`
	Assets   AssetsConfig   `yaml:"assets"`
	Log      LogConfig      `yaml:"log"`

	SessionSecret string        `yaml:"session_secret"` // Required: cookie signing secret
	CookieSecure  bool          `yaml:"cookie_secure"`  // Set true for HTTPS
	SessionTTL    time.Duration `yaml:"session_ttl"`    // Admin session lifetime (default 12h)

	ImageCeiling  int           `yaml:"image_ceiling"`  // Bytes above which uploads are compressed (default 1 MiB)
	LoginAttempts int           `yaml:"login_attempts"` // Login attempts per window and IP (default 5)
	LoginWindow   time.Duration `yaml:"login_window"`   // default 1m
}

// DatabaseConfig selects the document store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default) or "postgres"
	DSN    string `yaml:"dsn"`    // sqlite file path or postgres URL (default "data/desa.db")
}

// AssetsConfig selects where uploaded images go.
type AssetsConfig struct {
	Provider   string           `yaml:"provider"` // "local" (default) or "cloudinary"
	Dir        string           `yaml:"dir"`      // local provider root, served at /public (default "public")
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
}

// CloudinaryConfig holds the hosted image service settings.
type CloudinaryConfig struct {
	CloudName    string `yaml:"cloud_name"`
	UploadPreset string `yaml:"upload_preset"`
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
}

// LogConfig controls logger output.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default info)
	JSON  bool   `yaml:"json"`
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Padukuhan Guyangan"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Description == "" {
		c.Description = "Berita, galeri dan UMKM Padukuhan Guyangan"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.Locale == "" {
		c.Locale = "id"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/desa.db"
	}
	if c.Assets.Provider == "" {
		c.Assets.Provider = "local"
	}
	if c.Assets.Dir == "" {
		c.Assets.Dir = "public"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 12 * time.Hour
	}
	if c.ImageCeiling == 0 {
		c.ImageCeiling = 1 << 20
	}
	if c.LoginAttempts == 0 {
		c.LoginAttempts = 5
	}
	if c.LoginWindow == 0 {
		c.LoginWindow = time.Minute
	}
}

func (c *SiteConfig) validate() error {
	if c.SessionSecret == "" {
		return errors.New("desaweb: SessionSecret is required")
	}
	switch c.Assets.Provider {
	case "local":
	case "cloudinary":
		if c.Assets.Cloudinary.CloudName == "" || c.Assets.Cloudinary.UploadPreset == "" {
			return errors.New("desaweb: cloudinary provider needs cloud_name and upload_preset")
		}
	default:
		return fmt.Errorf("desaweb: unknown asset provider %q", c.Assets.Provider)
	}
	if c.Database.DSN == "" {
		return errors.New("desaweb: database DSN is required")
	}
	return nil
}

// LoadConfig reads an optional YAML file, then a .env file if present, then
// environment variables. Later sources win. A missing file at path is not an
// error.
func LoadConfig(path string) (SiteConfig, error) {
	var cfg SiteConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *SiteConfig) applyEnv() error {
	for key, dst := range map[string]*string{
		"SITE_NAME":                &c.Name,
		"SITE_URL":                 &c.URL,
		"SITE_DESCRIPTION":         &c.Description,
		"ADDR":                     &c.Addr,
		"LOCALE":                   &c.Locale,
		"DATABASE_DRIVER":          &c.Database.Driver,
		"DATABASE_DSN":             &c.Database.DSN,
		"ASSET_PROVIDER":           &c.Assets.Provider,
		"ASSET_DIR":                &c.Assets.Dir,
		"CLOUDINARY_CLOUD_NAME":    &c.Assets.Cloudinary.CloudName,
		"CLOUDINARY_UPLOAD_PRESET": &c.Assets.Cloudinary.UploadPreset,
		"CLOUDINARY_API_KEY":       &c.Assets.Cloudinary.APIKey,
		"CLOUDINARY_API_SECRET":    &c.Assets.Cloudinary.APISecret,
		"SESSION_SECRET":           &c.SessionSecret,
		"LOG_LEVEL":                &c.Log.Level,
	} {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	for key, dst := range map[string]*bool{
		"COOKIE_SECURE": &c.CookieSecure,
		"LOG_JSON":      &c.Log.JSON,
	} {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App before the server starts.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithLogger sets the application logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.Log = l
	}
}

// WithAssetHost replaces the asset host chosen by configuration.
func WithAssetHost(h assets.Host) Option {
	return func(a *App) {
		a.Assets = h
	}
}

func normalizeURL(u string) string {
	return strings.TrimSuffix(strings.TrimSpace(u), "/")
}
