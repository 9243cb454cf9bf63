package content

import (
	"context"
	"strings"

	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
)

func setArticleID(a *Article, id string) { a.ID = id }

// AddArticle uploads img and stores a new article pointing at it.
func (s *Service) AddArticle(ctx context.Context, img imaging.Image, in ArticleInput) (Article, error) {
	if err := in.validate(); err != nil {
		return Article{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}
	fields := docstore.Fields{
		"title":     strings.TrimSpace(in.Title),
		"body_text": in.BodyText,
		"category":  category,
	}
	if link := strings.TrimSpace(in.ExternalLink); link != "" {
		fields["external_link"] = link
	}

	id, url, err := s.createWithImage(ctx, docstore.Articles, "image_url", img, fields)
	if err != nil {
		return Article{}, err
	}
	return Article{
		ID:           id,
		ImageURL:     url,
		Title:        fields["title"].(string),
		BodyText:     in.BodyText,
		ExternalLink: strings.TrimSpace(in.ExternalLink),
		Category:     category,
		CreatedAt:    fields["created_at"].(Timestamp),
	}, nil
}

// EditArticle applies patch and, when img is non-nil, replaces the image.
// Without an image the stored image_url is left untouched.
func (s *Service) EditArticle(ctx context.Context, id string, patch ArticlePatch, img *imaging.Image) (Article, error) {
	fields, err := patch.fields()
	if err != nil {
		return Article{}, err
	}
	if err := s.editWithImage(ctx, docstore.Articles, id, "image_url", fields, img); err != nil {
		return Article{}, err
	}
	return s.GetArticle(ctx, id)
}

// DeleteArticle removes the article and then, best effort, its image.
func (s *Service) DeleteArticle(ctx context.Context, id string) error {
	return s.deleteWithImage(ctx, docstore.Articles, id, "image_url")
}

// ListArticles returns all articles in storage order.
func (s *Service) ListArticles(ctx context.Context) ([]Article, error) {
	docs, err := s.store.List(ctx, docstore.Articles)
	if err != nil {
		return nil, err
	}
	return decodeAll(s, docstore.Articles, docs, setArticleID), nil
}

// GetArticle returns one article or docstore.ErrNotFound.
func (s *Service) GetArticle(ctx context.Context, id string) (Article, error) {
	doc, err := s.store.Get(ctx, docstore.Articles, id)
	if err != nil {
		return Article{}, err
	}
	return decodeOne(doc, docstore.Articles, setArticleID)
}
