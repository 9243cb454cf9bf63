package assets

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkn-guyangan/desaweb/imaging"
)

func newTestCloudinary(srv *httptest.Server) *Cloudinary {
	c := NewCloudinary("guyangan", "desa_preset", srv.Client())
	c.Endpoint = srv.URL
	return c
}

func TestCloudinaryUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/guyangan/image/upload", r.URL.Path)
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "desa_preset", r.FormValue("upload_preset"))

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "foto.jpg", hdr.Filename)
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"secure_url":"https://res.cloudinary.com/guyangan/image/upload/v1/foto.jpg","public_id":"foto"}`)
	}))
	defer srv.Close()

	asset, err := newTestCloudinary(srv).Upload(context.Background(), imaging.Image{
		Name:     "foto.jpg",
		MIMEType: "image/jpeg",
		Data:     []byte{0xff, 0xd8, 0xff},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/guyangan/image/upload/v1/foto.jpg", asset.URL)
	assert.Equal(t, "foto", asset.PublicID)
}

func TestCloudinaryUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"Upload preset not found"}}`)
	}))
	defer srv.Close()

	_, err := newTestCloudinary(srv).Upload(context.Background(), imaging.Image{MIMEType: "image/jpeg", Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUploadFailed))

	var upErr *UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusBadRequest, upErr.Status)
	assert.Contains(t, upErr.Error(), "Upload preset not found")
}

func TestCloudinaryUploadMissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"public_id":"x"}`)
	}))
	defer srv.Close()

	_, err := newTestCloudinary(srv).Upload(context.Background(), imaging.Image{MIMEType: "image/jpeg", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestCloudinaryUploadNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestCloudinary(srv)
	srv.Close()

	_, err := c.Upload(context.Background(), imaging.Image{MIMEType: "image/jpeg", Data: []byte("x")})
	require.ErrorIs(t, err, ErrUploadFailed)
	var upErr *UploadError
	require.True(t, errors.As(err, &upErr))
	assert.Zero(t, upErr.Status)
}

func TestCloudinaryDeleteSigned(t *testing.T) {
	fixed := time.Unix(1712345678, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/guyangan/image/destroy", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "desa/abc", r.PostForm.Get("public_id"))
		assert.Equal(t, "1712345678", r.PostForm.Get("timestamp"))
		assert.Equal(t, "key", r.PostForm.Get("api_key"))

		sum := sha1.Sum([]byte("public_id=desa/abc&timestamp=1712345678secret"))
		assert.Equal(t, hex.EncodeToString(sum[:]), r.PostForm.Get("signature"))
		_, _ = io.WriteString(w, `{"result":"ok"}`)
	}))
	defer srv.Close()

	c := newTestCloudinary(srv)
	c.APIKey, c.APISecret = "key", "secret"
	c.now = func() time.Time { return fixed }

	err := c.Delete(context.Background(), "https://res.cloudinary.com/guyangan/image/upload/v1712345678/desa/abc.jpg")
	assert.NoError(t, err)
}

func TestCloudinaryDeleteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"result":"ok"}`)
	}))
	defer srv.Close()

	c := newTestCloudinary(srv)
	c.APIKey, c.APISecret = "key", "secret"

	require.NoError(t, c.Delete(context.Background(), "https://res.cloudinary.com/guyangan/image/upload/abc.png"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestCloudinaryDeleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestCloudinary(srv)
	c.APIKey, c.APISecret = "key", "wrong"

	assert.Error(t, c.Delete(context.Background(), "https://res.cloudinary.com/guyangan/image/upload/abc.png"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestCloudinaryDeleteWithoutCredentials(t *testing.T) {
	c := NewCloudinary("guyangan", "preset", nil)
	err := c.Delete(context.Background(), "https://res.cloudinary.com/guyangan/image/upload/abc.png")
	assert.ErrorIs(t, err, ErrDeleteUnsupported)
}

func TestPublicIDFromURL(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712345678/desa/abc.jpg", "desa/abc", false},
		{"https://res.cloudinary.com/demo/image/upload/abc.png", "abc", false},
		{"https://res.cloudinary.com/demo/image/upload/v2/abc", "abc", false},
		{"https://example.com/images/abc.png", "", true},
	}
	for _, tt := range tests {
		got, err := PublicIDFromURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}
