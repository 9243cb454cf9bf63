package desaweb

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kkn-guyangan/desaweb/content"
	"github.com/kkn-guyangan/desaweb/imaging"
)

// maxImageUpload bounds a single image field; larger files are rejected
// before compression is attempted.
const maxImageUpload = 15 << 20

type sessionResponse struct {
	Account   content.Account `json:"account"`
	CSRFToken string          `json:"csrf_token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// handleAdminCSRF hands out a token for the login form. The CSRF middleware
// sets the matching cookie on the same response.
func (a *App) handleAdminCSRF(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"csrf_token": CsrfToken(c)})
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "Terlalu banyak percobaan login. Coba lagi nanti.")
	}
	sess, err := a.Content.Login(c.Request().Context(), c.FormValue("username"), c.FormValue("password"))
	if err != nil {
		return err
	}
	if sess == nil {
		a.loginLimiter.Record(ip)
		a.Log.Warn("login failed", zap.String("ip", ip))
		return c.JSON(http.StatusUnauthorized, errorBody{Error: "Username atau password salah", Reason: "invalid_credentials"})
	}
	if err := setAdminSession(c, sess); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{Account: sess.Account, CSRFToken: CsrfToken(c), ExpiresAt: sess.ExpiresAt})
}

func (a *App) handleAdminLogout(c echo.Context) error {
	if sess, ok := a.adminSession(c); ok {
		a.Content.Logout(sess)
	}
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleAdminSession(c echo.Context) error {
	sess := AdminSession(c)
	return c.JSON(http.StatusOK, sessionResponse{Account: sess.Account, CSRFToken: CsrfToken(c), ExpiresAt: sess.ExpiresAt})
}

// formImage reads an uploaded image field. It returns nil when the field is
// absent and required is false.
func formImage(c echo.Context, field string, required bool) (*imaging.Image, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		if required {
			return nil, &content.ValidationError{Field: field}
		}
		return nil, nil
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Form tidak valid").SetInternal(err)
	}
	if fh.Size > maxImageUpload {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Ukuran gambar terlalu besar")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageUpload+1))
	if err != nil {
		return nil, err
	}

	mime := fh.Header.Get(echo.HeaderContentType)
	if mime == "" || mime == echo.MIMEOctetStream {
		mime = http.DetectContentType(data)
	}
	modTime := time.Now()
	if ms, err := strconv.ParseInt(c.FormValue(field+"_last_modified"), 10, 64); err == nil && ms > 0 {
		modTime = time.UnixMilli(ms)
	}
	return &imaging.Image{Name: fh.Filename, MIMEType: mime, Data: data, ModTime: modTime}, nil
}

// formPtr returns a pointer to the submitted value, or nil when the field was
// not sent at all.
func formPtr(c echo.Context, name string) *string {
	params, err := c.FormParams()
	if err != nil {
		return nil
	}
	vals, ok := params[name]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

func (a *App) handleCreateArticle(c echo.Context) error {
	img, err := formImage(c, "image", true)
	if err != nil {
		return err
	}
	art, err := a.Content.AddArticle(c.Request().Context(), *img, content.ArticleInput{
		Title:        c.FormValue("title"),
		BodyText:     c.FormValue("body_text"),
		ExternalLink: c.FormValue("external_link"),
		Category:     c.FormValue("category"),
	})
	if err != nil {
		return err
	}
	a.logChange(c, "article created", art.ID)
	return c.JSON(http.StatusCreated, art)
}

func (a *App) handleUpdateArticle(c echo.Context) error {
	img, err := formImage(c, "image", false)
	if err != nil {
		return err
	}
	art, err := a.Content.EditArticle(c.Request().Context(), c.Param("id"), content.ArticlePatch{
		Title:        formPtr(c, "title"),
		BodyText:     formPtr(c, "body_text"),
		ExternalLink: formPtr(c, "external_link"),
		Category:     formPtr(c, "category"),
	}, img)
	if err != nil {
		return err
	}
	a.logChange(c, "article updated", art.ID)
	return c.JSON(http.StatusOK, art)
}

func (a *App) handleDeleteArticle(c echo.Context) error {
	id := c.Param("id")
	if err := a.Content.DeleteArticle(c.Request().Context(), id); err != nil {
		return err
	}
	a.logChange(c, "article deleted", id)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleCreateGalleryItem(c echo.Context) error {
	photo, err := formImage(c, "image", true)
	if err != nil {
		return err
	}
	item, err := a.Content.AddGalleryItem(c.Request().Context(), *photo, content.GalleryInput{
		Title: c.FormValue("title"),
	})
	if err != nil {
		return err
	}
	a.logChange(c, "gallery item created", item.ID)
	return c.JSON(http.StatusCreated, item)
}

func (a *App) handleUpdateGalleryItem(c echo.Context) error {
	photo, err := formImage(c, "image", false)
	if err != nil {
		return err
	}
	item, err := a.Content.EditGalleryItem(c.Request().Context(), c.Param("id"), content.GalleryPatch{
		Title: formPtr(c, "title"),
	}, photo)
	if err != nil {
		return err
	}
	a.logChange(c, "gallery item updated", item.ID)
	return c.JSON(http.StatusOK, item)
}

func (a *App) handleDeleteGalleryItem(c echo.Context) error {
	id := c.Param("id")
	if err := a.Content.DeleteGalleryItem(c.Request().Context(), id); err != nil {
		return err
	}
	a.logChange(c, "gallery item deleted", id)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleCreateBusiness(c echo.Context) error {
	img, err := formImage(c, "image", true)
	if err != nil {
		return err
	}
	b, err := a.Content.AddBusiness(c.Request().Context(), *img, content.BusinessInput{
		Name:        c.FormValue("name"),
		Category:    c.FormValue("category"),
		OwnerName:   c.FormValue("owner_name"),
		Phone:       c.FormValue("phone"),
		Description: c.FormValue("description"),
	})
	if err != nil {
		return err
	}
	a.logChange(c, "business created", b.ID)
	return c.JSON(http.StatusCreated, b)
}

func (a *App) handleUpdateBusiness(c echo.Context) error {
	img, err := formImage(c, "image", false)
	if err != nil {
		return err
	}
	b, err := a.Content.EditBusiness(c.Request().Context(), c.Param("id"), content.BusinessPatch{
		Name:        formPtr(c, "name"),
		Category:    formPtr(c, "category"),
		OwnerName:   formPtr(c, "owner_name"),
		Phone:       formPtr(c, "phone"),
		Description: formPtr(c, "description"),
	}, img)
	if err != nil {
		return err
	}
	a.logChange(c, "business updated", b.ID)
	return c.JSON(http.StatusOK, b)
}

func (a *App) handleDeleteBusiness(c echo.Context) error {
	id := c.Param("id")
	if err := a.Content.DeleteBusiness(c.Request().Context(), id); err != nil {
		return err
	}
	a.logChange(c, "business deleted", id)
	return c.NoContent(http.StatusNoContent)
}

func (a *App) logChange(c echo.Context, msg, id string) {
	fields := []zap.Field{zap.String("id", id)}
	if sess := AdminSession(c); sess != nil {
		fields = append(fields, zap.String("admin", sess.Account.Username))
	}
	a.Log.Info(msg, fields...)
}
