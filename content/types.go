package content

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCategory is used for articles saved without a category.
const DefaultCategory = "Umum"

// ErrInvalidInput is matched by every *ValidationError.
var ErrInvalidInput = errors.New("content: invalid input")

// ValidationError reports a required field that was missing or empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("content: %s is required", e.Field)
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Article is a news post about the village.
type Article struct {
	ID           string    `json:"id"`
	ImageURL     string    `json:"image_url"`
	Title        string    `json:"title"`
	BodyText     string    `json:"body_text"`
	ExternalLink string    `json:"external_link,omitempty"`
	Category     string    `json:"category"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

// GalleryItem is one photo in the public gallery.
type GalleryItem struct {
	ID        string    `json:"id"`
	PhotoURL  string    `json:"photo_url"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// Business is a local business (UMKM) listing.
type Business struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"image_url"`
	Category    string    `json:"category"`
	OwnerName   string    `json:"owner_name"`
	Phone       string    `json:"phone"`
	Description string    `json:"description"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// Account is an admin login. Password is never serialized.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Password    string `json:"-"`
}

// account is the stored shape of Account, which does include the password.
type account struct {
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

// ArticleInput holds the text fields of a new article.
type ArticleInput struct {
	Title        string
	BodyText     string
	ExternalLink string
	Category     string
}

func (in ArticleInput) validate() error {
	switch {
	case blank(in.Title):
		return &ValidationError{Field: "title"}
	case blank(in.BodyText):
		return &ValidationError{Field: "body_text"}
	}
	return nil
}

// ArticlePatch lists the article fields to change. Nil fields are left as
// they are.
type ArticlePatch struct {
	Title        *string
	BodyText     *string
	ExternalLink *string
	Category     *string
}

func (p ArticlePatch) fields() (map[string]any, error) {
	f := map[string]any{}
	if err := setRequired(f, "title", p.Title); err != nil {
		return nil, err
	}
	if err := setRequired(f, "body_text", p.BodyText); err != nil {
		return nil, err
	}
	if p.ExternalLink != nil {
		f["external_link"] = strings.TrimSpace(*p.ExternalLink)
	}
	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		if c == "" {
			c = DefaultCategory
		}
		f["category"] = c
	}
	return f, nil
}

// GalleryInput holds the text fields of a new gallery item.
type GalleryInput struct {
	Title string
}

// GalleryPatch lists the gallery fields to change.
type GalleryPatch struct {
	Title *string
}

func (p GalleryPatch) fields() (map[string]any, error) {
	f := map[string]any{}
	if p.Title != nil {
		f["title"] = strings.TrimSpace(*p.Title)
	}
	return f, nil
}

// BusinessInput holds the text fields of a new business listing.
type BusinessInput struct {
	Name        string
	Category    string
	OwnerName   string
	Phone       string
	Description string
}

func (in BusinessInput) validate() error {
	switch {
	case blank(in.Name):
		return &ValidationError{Field: "name"}
	case blank(in.Category):
		return &ValidationError{Field: "category"}
	case blank(in.OwnerName):
		return &ValidationError{Field: "owner_name"}
	case blank(in.Phone):
		return &ValidationError{Field: "phone"}
	case blank(in.Description):
		return &ValidationError{Field: "description"}
	}
	return nil
}

// BusinessPatch lists the business fields to change.
type BusinessPatch struct {
	Name        *string
	Category    *string
	OwnerName   *string
	Phone       *string
	Description *string
}

func (p BusinessPatch) fields() (map[string]any, error) {
	f := map[string]any{}
	for _, kv := range []struct {
		key string
		val *string
	}{
		{"name", p.Name},
		{"category", p.Category},
		{"owner_name", p.OwnerName},
		{"phone", p.Phone},
		{"description", p.Description},
	} {
		if err := setRequired(f, kv.key, kv.val); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// setRequired copies a patched value for a field that may not be emptied.
func setRequired(f map[string]any, key string, val *string) error {
	if val == nil {
		return nil
	}
	if blank(*val) {
		return &ValidationError{Field: key}
	}
	f[key] = strings.TrimSpace(*val)
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
