package assets

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/kkn-guyangan/desaweb/imaging"
)

const defaultCloudinaryEndpoint = "https://api.cloudinary.com"

// Cloudinary uploads through an unsigned upload preset. Deletes need the API
// key and secret.
type Cloudinary struct {
	CloudName    string
	UploadPreset string
	APIKey       string
	APISecret    string
	Endpoint     string // default https://api.cloudinary.com
	HTTPClient   *http.Client

	now func() time.Time
}

// NewCloudinary returns a Cloudinary host. A nil client uses http.DefaultClient.
func NewCloudinary(cloudName, preset string, client *http.Client) *Cloudinary {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cloudinary{
		CloudName:    cloudName,
		UploadPreset: preset,
		Endpoint:     defaultCloudinaryEndpoint,
		HTTPClient:   client,
		now:          time.Now,
	}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *Cloudinary) apiURL(action string) string {
	endpoint := strings.TrimSuffix(c.Endpoint, "/")
	if endpoint == "" {
		endpoint = defaultCloudinaryEndpoint
	}
	return fmt.Sprintf("%s/v1_1/%s/image/%s", endpoint, url.PathEscape(c.CloudName), action)
}

func (c *Cloudinary) client() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

// Upload sends img as a multipart form and returns the secure URL.
func (c *Cloudinary) Upload(ctx context.Context, img imaging.Image) (Asset, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("upload_preset", c.UploadPreset); err != nil {
		return Asset{}, &UploadError{Msg: "build form", Err: err}
	}
	name := img.Name
	if name == "" {
		name = "upload"
	}
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	hdr.Set("Content-Type", img.MIMEType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return Asset{}, &UploadError{Msg: "build form", Err: err}
	}
	if _, err := part.Write(img.Data); err != nil {
		return Asset{}, &UploadError{Msg: "build form", Err: err}
	}
	if err := mw.Close(); err != nil {
		return Asset{}, &UploadError{Msg: "build form", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("upload"), &body)
	if err != nil {
		return Asset{}, &UploadError{Msg: "create request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client().Do(req)
	if err != nil {
		return Asset{}, &UploadError{Msg: "send request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Asset{}, &UploadError{Status: resp.StatusCode, Msg: "read response", Err: err}
	}
	var out uploadResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Asset{}, &UploadError{Status: resp.StatusCode, Msg: msg}
	}
	if decodeErr != nil {
		return Asset{}, &UploadError{Status: resp.StatusCode, Msg: "decode response", Err: decodeErr}
	}
	if out.SecureURL == "" {
		return Asset{}, &UploadError{Status: resp.StatusCode, Msg: "response has no secure_url"}
	}
	return Asset{URL: out.SecureURL, PublicID: out.PublicID}, nil
}

// Delete destroys the asset behind assetURL. Destroy is idempotent on the
// host side, so transient failures are retried.
func (c *Cloudinary) Delete(ctx context.Context, assetURL string) error {
	if c.APIKey == "" || c.APISecret == "" {
		return ErrDeleteUnsupported
	}
	publicID, err := PublicIDFromURL(assetURL)
	if err != nil {
		return err
	}

	return retry.Do(
		func() error { return c.destroy(ctx, publicID) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (c *Cloudinary) destroy(ctx context.Context, publicID string) error {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	ts := strconv.FormatInt(now().Unix(), 10)
	form := url.Values{}
	form.Set("public_id", publicID)
	form.Set("timestamp", ts)
	form.Set("api_key", c.APIKey)
	form.Set("signature", c.sign(map[string]string{"public_id": publicID, "timestamp": ts}))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create destroy request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("destroy %s: status %d", publicID, resp.StatusCode)
	case resp.StatusCode >= 300:
		return retry.Unrecoverable(fmt.Errorf("destroy %s: status %d", publicID, resp.StatusCode))
	}
	return nil
}

// sign builds the request signature: parameters sorted by name, joined as
// k=v with '&', secret appended, SHA-1 hex encoded.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}

// PublicIDFromURL extracts the public id from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712345678/desa/abc.jpg,
// which yields "desa/abc".
func PublicIDFromURL(assetURL string) (string, error) {
	u, err := url.Parse(assetURL)
	if err != nil {
		return "", fmt.Errorf("assets: parse url: %w", err)
	}
	_, rest, ok := strings.Cut(u.Path, "/upload/")
	if !ok || rest == "" {
		return "", fmt.Errorf("assets: %q is not an upload url", assetURL)
	}
	segs := strings.Split(rest, "/")
	if len(segs) > 1 && isVersion(segs[0]) {
		segs = segs[1:]
	}
	id := strings.Join(segs, "/")
	return strings.TrimSuffix(id, path.Ext(id)), nil
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	_, err := strconv.ParseUint(seg[1:], 10, 64)
	return err == nil
}
