// Package assets stores uploaded images on an asset host and hands back
// durable public URLs.
package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/kkn-guyangan/desaweb/imaging"
)

var (
	// ErrUploadFailed matches every *UploadError.
	ErrUploadFailed = errors.New("assets: upload failed")
	// ErrDeleteUnsupported is returned by hosts that cannot remove assets
	// with the credentials they were configured with.
	ErrDeleteUnsupported = errors.New("assets: delete not supported")
)

// Host persists images. Upload is not idempotent: every call creates a new
// remote asset.
type Host interface {
	Upload(ctx context.Context, img imaging.Image) (Asset, error)
	Delete(ctx context.Context, url string) error
}

// Asset is a stored image.
type Asset struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id,omitempty"`
}

// UploadError describes a failed upload. Status is the upstream HTTP status,
// or 0 when the request never got a response.
type UploadError struct {
	Status int
	Msg    string
	Err    error
}

func (e *UploadError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("assets: upload failed (status %d): %s: %v", e.Status, e.Msg, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("assets: upload failed (status %d): %s", e.Status, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("assets: upload failed: %s: %v", e.Msg, e.Err)
	}
	return "assets: upload failed: " + e.Msg
}

func (e *UploadError) Unwrap() error { return e.Err }

func (e *UploadError) Is(target error) bool { return target == ErrUploadFailed }
