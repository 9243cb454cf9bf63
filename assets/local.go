package assets

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kkn-guyangan/desaweb/imaging"
)

const uploadsSubdir = "uploads"

// Local stores images on disk under Dir/uploads and serves them from
// BaseURL/public/uploads. It is meant for development and single-node
// deployments that serve Dir as static files.
type Local struct {
	Dir     string
	BaseURL string
}

// NewLocal returns a Local host rooted at dir.
func NewLocal(dir, baseURL string) *Local {
	return &Local{Dir: dir, BaseURL: strings.TrimSuffix(baseURL, "/")}
}

// Upload writes img to a fresh, unique filename.
func (l *Local) Upload(ctx context.Context, img imaging.Image) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, &UploadError{Msg: "canceled", Err: err}
	}
	dir := filepath.Join(l.Dir, uploadsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Asset{}, &UploadError{Msg: "create uploads dir", Err: err}
	}

	base := Slugify(strings.TrimSuffix(img.Name, filepath.Ext(img.Name)))
	if base == "" {
		base = "image"
	}
	ext := extensionFor(img.MIMEType)

	// O_EXCL makes the existence check and the create one step, so two
	// concurrent uploads of the same name cannot clobber each other.
	candidate := base + ext
	for counter := 2; ; counter++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			candidate = fmt.Sprintf("%s-%d%s", base, counter, ext)
			continue
		}
		if err != nil {
			return Asset{}, &UploadError{Msg: "create file", Err: err}
		}
		_, werr := f.Write(img.Data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(f.Name())
			if werr == nil {
				werr = cerr
			}
			return Asset{}, &UploadError{Msg: "write image", Err: werr}
		}
		break
	}

	return Asset{
		URL:      l.BaseURL + "/public/" + uploadsSubdir + "/" + url.PathEscape(candidate),
		PublicID: candidate,
	}, nil
}

// Delete removes the file behind assetURL. A file that is already gone is
// not an error.
func (l *Local) Delete(ctx context.Context, assetURL string) error {
	u, err := url.Parse(assetURL)
	if err != nil {
		return fmt.Errorf("assets: parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || !strings.Contains(u.Path, "/"+uploadsSubdir+"/") {
		return fmt.Errorf("assets: %q is not a local upload", assetURL)
	}
	err = os.Remove(filepath.Join(l.Dir, uploadsSubdir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("assets: remove %s: %w", name, err)
	}
	return nil
}

func extensionFor(mime string) string {
	switch strings.ToLower(mime) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Slugify converts a name to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
