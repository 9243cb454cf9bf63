// Package content turns admin submissions into stored records. Each add or
// edit that carries an image compresses it when needed, uploads it to the
// asset host and only then writes the record that references it.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/kkn-guyangan/desaweb/assets"
	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
)

// Store is the document storage the service writes through.
type Store interface {
	Create(ctx context.Context, collection string, f docstore.Fields) (string, error)
	List(ctx context.Context, collection string) ([]docstore.Document, error)
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
	Update(ctx context.Context, collection, id string, partial docstore.Fields) error
	Delete(ctx context.Context, collection, id string) error
	FindByCredentials(ctx context.Context, username, password string) (docstore.Document, error)
}

// Compressor shrinks an image below a byte ceiling.
type Compressor interface {
	Compress(ctx context.Context, img imaging.Image) (imaging.Image, error)
}

// Service coordinates image handling with record persistence. It is safe for
// concurrent use.
type Service struct {
	store   Store
	host    assets.Host
	comp    Compressor
	log     *zap.Logger
	now     func() time.Time
	ceiling int

	sessions *sessionRegistry
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock replaces time.Now for created_at, updated_at and session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithImageCeiling sets the byte size above which images are compressed
// before upload.
func WithImageCeiling(n int) Option {
	return func(s *Service) { s.ceiling = n }
}

// WithSessionTTL sets how long an admin session stays valid.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) { s.sessions.ttl = d }
}

// New returns a Service.
func New(store Store, host assets.Host, comp Compressor, opts ...Option) *Service {
	s := &Service{
		store:    store,
		host:     host,
		comp:     comp,
		log:      zap.NewNop(),
		now:      time.Now,
		ceiling:  imaging.MaxBytes,
		sessions: newSessionRegistry(defaultSessionTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() Timestamp {
	return NewTimestamp(s.now().UTC())
}

// prepareImage checks the format and compresses only images above the
// ceiling.
func (s *Service) prepareImage(ctx context.Context, img imaging.Image) (imaging.Image, error) {
	if len(img.Data) == 0 {
		return imaging.Image{}, &ValidationError{Field: "image"}
	}
	if !imaging.Supported(img.MIMEType) {
		return imaging.Image{}, fmt.Errorf("%w: %q", imaging.ErrUnsupportedFormat, img.MIMEType)
	}
	if len(img.Data) <= s.ceiling {
		return img, nil
	}
	out, err := s.comp.Compress(ctx, img)
	if err != nil {
		return imaging.Image{}, err
	}
	s.log.Info("image compressed",
		zap.String("name", img.Name),
		zap.String("from", humanize.IBytes(uint64(len(img.Data)))),
		zap.String("to", humanize.IBytes(uint64(len(out.Data)))),
	)
	return out, nil
}

func (s *Service) upload(ctx context.Context, img imaging.Image) (string, error) {
	img, err := s.prepareImage(ctx, img)
	if err != nil {
		return "", err
	}
	asset, err := s.host.Upload(ctx, img)
	if err != nil {
		return "", err
	}
	return asset.URL, nil
}

// createWithImage uploads img and then writes fields with the returned URL
// under imageField. No record is written unless the upload succeeded.
func (s *Service) createWithImage(ctx context.Context, collection, imageField string, img imaging.Image, fields docstore.Fields) (string, string, error) {
	url, err := s.upload(ctx, img)
	if err != nil {
		return "", "", err
	}
	fields[imageField] = url
	fields["created_at"] = s.timestamp()

	id, err := s.store.Create(ctx, collection, fields)
	if err != nil {
		s.log.Warn("record write failed after upload, asset is orphaned",
			zap.String("collection", collection),
			zap.String("asset_url", url),
			zap.Error(err),
		)
		return "", "", err
	}
	return id, url, nil
}

// editWithImage applies fields to an existing record. With a new image the
// record must exist before anything is uploaded; the replaced asset is
// removed once the record points at the new one.
func (s *Service) editWithImage(ctx context.Context, collection, id, imageField string, fields docstore.Fields, img *imaging.Image) error {
	var oldURL, newURL string
	if img != nil {
		doc, err := s.store.Get(ctx, collection, id)
		if err != nil {
			return err
		}
		oldURL = stringField(doc, imageField)
		if newURL, err = s.upload(ctx, *img); err != nil {
			return err
		}
		fields[imageField] = newURL
	}
	fields["updated_at"] = s.timestamp()

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		if newURL != "" {
			s.log.Warn("record update failed after upload, asset is orphaned",
				zap.String("collection", collection),
				zap.String("id", id),
				zap.String("asset_url", newURL),
				zap.Error(err),
			)
		}
		return err
	}
	if oldURL != "" && oldURL != newURL {
		s.deleteAsset(ctx, collection, id, oldURL)
	}
	return nil
}

// deleteWithImage removes the record first and then its asset. Asset
// failures are logged and never returned. Deleting a missing record is a
// no-op.
func (s *Service) deleteWithImage(ctx context.Context, collection, id, imageField string) error {
	doc, err := s.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, collection, id); err != nil {
		return err
	}
	if url := stringField(doc, imageField); url != "" {
		s.deleteAsset(ctx, collection, id, url)
	}
	return nil
}

func (s *Service) deleteAsset(ctx context.Context, collection, id, url string) {
	// The record change is already committed; finish the cleanup even if the
	// caller has gone away.
	err := s.host.Delete(context.WithoutCancel(ctx), url)
	switch {
	case err == nil:
		s.log.Debug("asset deleted", zap.String("asset_url", url))
	case errors.Is(err, assets.ErrDeleteUnsupported):
		s.log.Info("asset host cannot delete, asset left in place",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.String("asset_url", url),
		)
	default:
		s.log.Warn("asset delete failed, asset is orphaned",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.String("asset_url", url),
			zap.Error(err),
		)
	}
}

func stringField(doc docstore.Document, key string) string {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(doc.Data, &m); err != nil {
		return ""
	}
	var v string
	if err := json.Unmarshal(m[key], &v); err != nil {
		return ""
	}
	return v
}

// decodeAll decodes every document, skipping the ones that do not fit T.
func decodeAll[T any](s *Service, collection string, docs []docstore.Document, setID func(*T, string)) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			s.log.Warn("skipping undecodable document",
				zap.String("collection", collection),
				zap.String("id", doc.ID),
				zap.Error(err),
			)
			continue
		}
		setID(&v, doc.ID)
		out = append(out, v)
	}
	return out
}

func decodeOne[T any](doc docstore.Document, collection string, setID func(*T, string)) (T, error) {
	var v T
	if err := doc.Decode(&v); err != nil {
		return v, fmt.Errorf("content: decode %s/%s: %w", collection, doc.ID, err)
	}
	setID(&v, doc.ID)
	return v, nil
}
