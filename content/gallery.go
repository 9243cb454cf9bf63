package content

import (
	"context"
	"strings"

	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
)

func setGalleryID(g *GalleryItem, id string) { g.ID = id }

// AddGalleryItem uploads the photo and stores a gallery item for it.
func (s *Service) AddGalleryItem(ctx context.Context, photo imaging.Image, in GalleryInput) (GalleryItem, error) {
	fields := docstore.Fields{"title": strings.TrimSpace(in.Title)}
	id, url, err := s.createWithImage(ctx, docstore.Gallery, "photo_url", photo, fields)
	if err != nil {
		return GalleryItem{}, err
	}
	return GalleryItem{
		ID:        id,
		PhotoURL:  url,
		Title:     fields["title"].(string),
		CreatedAt: fields["created_at"].(Timestamp),
	}, nil
}

// EditGalleryItem applies patch and, when photo is non-nil, replaces the photo.
func (s *Service) EditGalleryItem(ctx context.Context, id string, patch GalleryPatch, photo *imaging.Image) (GalleryItem, error) {
	fields, err := patch.fields()
	if err != nil {
		return GalleryItem{}, err
	}
	if err := s.editWithImage(ctx, docstore.Gallery, id, "photo_url", fields, photo); err != nil {
		return GalleryItem{}, err
	}
	return s.GetGalleryItem(ctx, id)
}

// DeleteGalleryItem removes the item and then, best effort, its photo.
func (s *Service) DeleteGalleryItem(ctx context.Context, id string) error {
	return s.deleteWithImage(ctx, docstore.Gallery, id, "photo_url")
}

// ListGallery returns all gallery items in storage order.
func (s *Service) ListGallery(ctx context.Context) ([]GalleryItem, error) {
	docs, err := s.store.List(ctx, docstore.Gallery)
	if err != nil {
		return nil, err
	}
	return decodeAll(s, docstore.Gallery, docs, setGalleryID), nil
}

// GetGalleryItem returns one gallery item or docstore.ErrNotFound.
func (s *Service) GetGalleryItem(ctx context.Context, id string) (GalleryItem, error) {
	doc, err := s.store.Get(ctx, docstore.Gallery, id)
	if err != nil {
		return GalleryItem{}, err
	}
	return decodeOne(doc, docstore.Gallery, setGalleryID)
}
