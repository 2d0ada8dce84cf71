package uploads

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
)

func TestDiskStorageSave(t *testing.T) {
	root := t.TempDir()
	s := NewDiskStorage(root)

	path, err := s.Save(KindAvatar, "Me At The Beach.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, "/uploads/avatars/avatars-"), path)
	require.True(t, strings.HasSuffix(path, ".png"), path)

	data, err := os.ReadFile(filepath.Join(root, KindAvatar, filepath.Base(path)))
	require.NoError(t, err)
	require.Equal(t, "png-bytes", string(data))
}

func TestDiskStorageRejectsNonImages(t *testing.T) {
	s := NewDiskStorage(t.TempDir())
	_, err := s.Save(KindImage, "script.sh", strings.NewReader("#!/bin/sh"))
	require.True(t, apperror.IsValidationError(err))

	_, err = s.Save("secrets", "a.png", strings.NewReader("x"))
	require.True(t, apperror.Is(err, apperror.BadRequestError))
}

func TestDiskStorageRejectsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	s := NewDiskStorage(root)

	big := bytes.Repeat([]byte{'a'}, MaxFileSize+1)
	_, err := s.Save(KindCover, "huge.jpg", bytes.NewReader(big))
	require.True(t, apperror.IsValidationError(err))

	entries, err := os.ReadDir(filepath.Join(root, KindCover))
	require.NoError(t, err)
	require.Empty(t, entries, "partial file must be removed")
}

func TestFromRequest(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("coverImage", "cover.webp")
	require.NoError(t, err)
	_, err = part.Write([]byte("webp"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPut, "/api/users/profile/cover", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	path, err := FromRequest(w, r, NewDiskStorage(t.TempDir()), KindCover, "coverImage")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(path, "/uploads/covers/covers-"))
	require.Equal(t, "http://example.com"+path, AbsoluteURL(r, path))

	// Missing field.
	r = httptest.NewRequest(http.MethodPut, "/api/users/profile/cover", strings.NewReader(""))
	r.Header.Set("Content-Type", mw.FormDataContentType())
	_, err = FromRequest(httptest.NewRecorder(), r, NewDiskStorage(t.TempDir()), KindCover, "coverImage")
	require.True(t, apperror.Is(err, apperror.BadRequestError))
}

func TestHandleUploadAcceptsEitherField(t *testing.T) {
	h := NewHandlers(NewDiskStorage(t.TempDir()))

	for _, field := range []string{"image", "file"} {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		part, err := mw.CreateFormFile(field, "photo.PNG")
		require.NoError(t, err)
		_, err = part.Write([]byte("png"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		r := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
		r.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		h.HandleUpload().ServeHTTP(w, r)

		require.Equal(t, http.StatusCreated, w.Code, field)
		require.Contains(t, w.Body.String(), `"path":"/uploads/images/images-`)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "no file here"))
	require.NoError(t, mw.Close())
	r := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.HandleUpload().ServeHTTP(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "No file uploaded.")
}
