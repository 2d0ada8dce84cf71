// Package uploads stores user-supplied images (avatars, cover images, post images) on disk.
// Files are renamed to `<kind>-<uuid><ext>` so client-supplied names never reach the filesystem.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/user/blog-go/apperror"
)

// MaxFileSize is the largest accepted upload.
const MaxFileSize = 5 << 20 // 5 MiB

// Kinds of upload; each is stored in its own sub-directory.
const (
	KindAvatar = "avatars"
	KindCover  = "covers"
	KindImage  = "images"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Storage persists an upload and returns its public relative path (e.g. /uploads/avatars/avatars-<uuid>.png).
type Storage interface {
	Save(kind, filename string, r io.Reader) (string, error)
}

type DiskStorage struct {
	root string
}

func NewDiskStorage(root string) *DiskStorage {
	return &DiskStorage{root: root}
}

func (s *DiskStorage) Save(kind, filename string, r io.Reader) (string, error) {
	switch kind {
	case KindAvatar, KindCover, KindImage:
	default:
		return "", apperror.NewBadRequestError(fmt.Sprintf("unknown upload kind %q", kind), nil)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", apperror.NewValidationError("only image files are allowed",
			apperror.FieldError{Field: "file", Message: "must be a .jpg, .jpeg, .png, .gif or .webp image"})
	}

	dir := filepath.Join(s.root, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperror.NewInternalError("failed to prepare upload directory", err)
	}

	name := kind + "-" + uuid.NewString() + ext
	full := filepath.Join(dir, name)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", apperror.NewInternalError("failed to create upload file", err)
	}

	// Read one byte past the limit so oversized files are detected without trusting headers.
	n, err := io.Copy(f, io.LimitReader(r, MaxFileSize+1))
	closeErr := f.Close()
	if err == nil && n > MaxFileSize {
		err = errTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(full); rmErr != nil {
			log.Printf("Warning: failed to remove partial upload %s: %v", full, rmErr)
		}
		if errors.Is(err, errTooLarge) {
			return "", apperror.NewValidationError("file too large",
				apperror.FieldError{Field: "file", Message: "must be at most 5 MiB"})
		}
		return "", apperror.NewInternalError("failed to write upload", err)
	}

	return "/uploads/" + kind + "/" + name, nil
}

var errTooLarge = errors.New("upload exceeds size limit")

// FromRequest reads the first of fields present in the multipart body of r and saves it
// under kind. The body is capped slightly above MaxFileSize so oversized requests fail early.
func FromRequest(w http.ResponseWriter, r *http.Request, storage Storage, kind string, fields ...string) (string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFileSize+1<<20)
	if err := r.ParseMultipartForm(MaxFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", apperror.NewValidationError("file too large",
				apperror.FieldError{Field: strings.Join(fields, "|"), Message: "must be at most 5 MiB"})
		}
		return "", apperror.NewBadRequestError("expected a multipart/form-data body", err)
	}

	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return "", apperror.NewBadRequestError("No file uploaded.", err)
		}
		defer file.Close()
		return storage.Save(kind, header.Filename, file)
	}
	return "", apperror.NewBadRequestError("No file uploaded.", nil)
}

// AbsoluteURL turns a stored relative path into a URL on the host that served r.
func AbsoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}
