package desaweb

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkn-guyangan/desaweb/content"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		segs []string
		want string
	}{
		{"https://desa.example", nil, "https://desa.example"},
		{"https://desa.example", []string{"artikel", "abc"}, "https://desa.example/artikel/abc/"},
		{"https://desa.example/sub", []string{"umkm"}, "https://desa.example/sub/umkm/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildURL(tt.base, tt.segs...))
	}
}

func TestArticleJsonLD(t *testing.T) {
	cfg := SiteConfig{Name: "Padukuhan Guyangan", URL: "https://desa.example"}
	art := content.Article{
		ID:        "a1",
		Title:     "Panen Raya",
		ImageURL:  "https://cdn.test/a.jpg",
		Category:  "Pertanian",
		CreatedAt: content.NewTimestamp(time.Date(2025, 3, 10, 2, 0, 0, 0, time.UTC)),
	}

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(ArticleJsonLD(art, cfg)), &got))
	assert.Equal(t, "NewsArticle", got["@type"])
	assert.Equal(t, "https://desa.example/artikel/a1/", got["url"])
	assert.Equal(t, "2025-03-10T02:00:00Z", got["datePublished"])
	assert.Equal(t, "Pertanian", got["articleSection"])
	assert.NotContains(t, got, "dateModified")
	assert.Equal(t, []any{"https://cdn.test/a.jpg"}, got["image"])
}

func TestWebsiteJsonLD(t *testing.T) {
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(WebsiteJsonLD(SiteConfig{Name: "Desa", URL: "https://desa.example", Locale: "id"})), &got))
	assert.Equal(t, "WebSite", got["@type"])
	assert.Equal(t, "https://desa.example", got["url"])
	assert.Equal(t, "id", got["inLanguage"])
}
