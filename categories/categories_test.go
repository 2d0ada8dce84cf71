package categories

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/models"
	"github.com/user/blog-go/store/memory"
)

func TestCreateAndList(t *testing.T) {
	svc := NewCategoryService(memory.New())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateCategoryRequest{Name: "Travel"})
	require.NoError(t, err)
	created, err := svc.Create(ctx, CreateCategoryRequest{Name: "  Art ", Image: "/uploads/images/a.png"})
	require.NoError(t, err)
	require.Equal(t, "Art", created.Name)
	require.NotEmpty(t, created.ID)

	_, err = svc.Create(ctx, CreateCategoryRequest{Name: "Art"})
	require.True(t, apperror.IsConflictError(err))
	_, err = svc.Create(ctx, CreateCategoryRequest{Name: "   "})
	require.True(t, apperror.IsValidationError(err))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Art", list[0].Name)
	require.Equal(t, "Travel", list[1].Name)
}

func TestCreateRunsBehindGuard(t *testing.T) {
	h := NewCategoryHandlers(NewCategoryService(memory.New()))
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Admin") != "yes" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	r.Route("/categories", func(r chi.Router) { h.RegisterRoutes(r, deny) })

	post := func(admin bool, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/categories", bytes.NewBufferString(body))
		if admin {
			req.Header.Set("X-Admin", "yes")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusForbidden, post(false, `{"name":"Go"}`).Code)
	require.Equal(t, http.StatusCreated, post(true, `{"name":"Go"}`).Code)
	require.Equal(t, http.StatusConflict, post(true, `{"name":"Go"}`).Code)
	require.Equal(t, http.StatusBadRequest, post(true, `{"name":""}`).Code)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/categories", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "Go", list[0].Name)
}
