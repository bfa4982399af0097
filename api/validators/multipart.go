package validators

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/storage"
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// PhotoForm is a parsed multipart request carrying an optional photo.
type PhotoForm struct {
	form  *multipart.Form
	Photo *storage.Photo
	file  multipart.File
}

// Value returns the trimmed first value of a form field.
func (f *PhotoForm) Value(key string) string {
	if f == nil || f.form == nil {
		return ""
	}
	values := f.form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

// Close releases the uploaded file and any temp files.
func (f *PhotoForm) Close() {
	if f == nil {
		return
	}
	if f.file != nil {
		_ = f.file.Close()
	}
	if f.form != nil {
		_ = f.form.RemoveAll()
	}
}

// IsMultipart reports whether the request carries a multipart body.
func IsMultipart(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data")
}

// ParsePhotoForm reads a multipart body capped at maxBytes. The photo field
// is optional; when present it must be an image.
func ParsePhotoForm(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*PhotoForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "upload too large").WithDetails(map[string]any{"max_bytes": maxBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}
	out := &PhotoForm{form: r.MultipartForm}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return out, nil
	}
	if err != nil {
		out.Close()
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid photo upload")
	}
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFromExt(header.Filename)
	}
	if !allowedPhotoTypes[contentType] {
		_ = file.Close()
		out.Close()
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "photo must be an image").WithDetails(map[string]any{"content_type": contentType})
	}
	out.file = file
	out.Photo = &storage.Photo{Filename: header.Filename, ContentType: contentType, Body: file}
	return out, nil
}

func contentTypeFromExt(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	}
	return ""
}
