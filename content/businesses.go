package content

import (
	"context"
	"strings"

	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
)

func setBusinessID(b *Business, id string) { b.ID = id }

// AddBusiness uploads img and stores a new business listing.
func (s *Service) AddBusiness(ctx context.Context, img imaging.Image, in BusinessInput) (Business, error) {
	if err := in.validate(); err != nil {
		return Business{}, err
	}
	b := Business{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.TrimSpace(in.Category),
		OwnerName:   strings.TrimSpace(in.OwnerName),
		Phone:       strings.TrimSpace(in.Phone),
		Description: in.Description,
	}
	fields := docstore.Fields{
		"name":        b.Name,
		"category":    b.Category,
		"owner_name":  b.OwnerName,
		"phone":       b.Phone,
		"description": b.Description,
	}
	id, url, err := s.createWithImage(ctx, docstore.Businesses, "image_url", img, fields)
	if err != nil {
		return Business{}, err
	}
	b.ID = id
	b.ImageURL = url
	b.CreatedAt = fields["created_at"].(Timestamp)
	return b, nil
}

// EditBusiness applies patch and, when img is non-nil, replaces the image.
func (s *Service) EditBusiness(ctx context.Context, id string, patch BusinessPatch, img *imaging.Image) (Business, error) {
	fields, err := patch.fields()
	if err != nil {
		return Business{}, err
	}
	if err := s.editWithImage(ctx, docstore.Businesses, id, "image_url", fields, img); err != nil {
		return Business{}, err
	}
	return s.GetBusiness(ctx, id)
}

// DeleteBusiness removes the listing and then, best effort, its image.
func (s *Service) DeleteBusiness(ctx context.Context, id string) error {
	return s.deleteWithImage(ctx, docstore.Businesses, id, "image_url")
}

// ListBusinesses returns all listings in storage order.
func (s *Service) ListBusinesses(ctx context.Context) ([]Business, error) {
	docs, err := s.store.List(ctx, docstore.Businesses)
	if err != nil {
		return nil, err
	}
	return decodeAll(s, docstore.Businesses, docs, setBusinessID), nil
}

// GetBusiness returns one listing or docstore.ErrNotFound.
func (s *Service) GetBusiness(ctx context.Context, id string) (Business, error) {
	doc, err := s.store.Get(ctx, docstore.Businesses, id)
	if err != nil {
		return Business{}, err
	}
	return decodeOne(doc, docstore.Businesses, setBusinessID)
}
