package desaweb

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kkn-guyangan/desaweb/assets"
	"github.com/kkn-guyangan/desaweb/content"
	"github.com/kkn-guyangan/desaweb/docstore"
	"github.com/kkn-guyangan/desaweb/imaging"
)

type errorBody struct {
	Error          string `json:"error"`
	Reason         string `json:"reason"`
	Field          string `json:"field,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// statusFor maps a domain error to an HTTP status and response body. The
// messages are what the admin panel shows to the user.
func statusFor(err error) (int, errorBody) {
	var (
		ve *content.ValidationError
		up *assets.UploadError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, errorBody{Error: "Kolom " + ve.Field + " wajib diisi", Reason: "invalid_input", Field: ve.Field}
	case errors.Is(err, content.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Error: "Data tidak valid", Reason: "invalid_input"}
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		return http.StatusBadRequest, errorBody{Error: "Format gambar tidak didukung, gunakan JPG, PNG atau GIF", Reason: "unsupported_format"}
	case errors.Is(err, imaging.ErrDecodeFailed):
		return http.StatusBadRequest, errorBody{Error: "Gambar rusak atau tidak dapat dibaca", Reason: "decode_failed"}
	case errors.As(err, &up):
		return http.StatusBadGateway, errorBody{Error: "Gagal mengunggah gambar", Reason: "upload_failed", UpstreamStatus: up.Status}
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: "Data tidak ditemukan", Reason: "not_found"}
	case errors.Is(err, docstore.ErrWriteFailed):
		return http.StatusServiceUnavailable, errorBody{Error: "Gagal menyimpan data", Reason: "write_failed"}
	case errors.As(err, &he):
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, errorBody{Error: msg, Reason: reasonForStatus(he.Code)}
	}
	return http.StatusInternalServerError, errorBody{Error: "Terjadi kesalahan pada server", Reason: "internal"}
}

func reasonForStatus(code int) string {
	switch code {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	}
	if code >= 500 {
		return "internal"
	}
	return "bad_request"
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, body := statusFor(err)
	if code >= 500 {
		a.Log.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", code),
			zap.Error(err),
		)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, body)
}
