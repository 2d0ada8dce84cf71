package tags

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/store/memory"
)

func TestCreateTag(t *testing.T) {
	svc := NewTagService(memory.New())
	ctx := context.Background()

	for _, name := range []string{"zig", "go", "rust"} {
		_, err := svc.Create(ctx, CreateTagRequest{Name: name})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, CreateTagRequest{Name: " go "})
	require.True(t, apperror.IsConflictError(err))
	_, err = svc.Create(ctx, CreateTagRequest{Name: ""})
	require.True(t, apperror.IsValidationError(err))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"go", "rust", "zig"}, []string{list[0].Name, list[1].Name, list[2].Name})
}

func TestCreateTagRequiresAuthentication(t *testing.T) {
	h := NewTagHandlers(NewTagService(memory.New()))
	authenticate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	r.Route("/tags", func(r chi.Router) { h.RegisterRoutes(r, authenticate) })

	req := httptest.NewRequest(http.MethodPost, "/tags", bytes.NewBufferString(`{"name":"go"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/tags", bytes.NewBufferString(`{"name":"go"}`))
	req.Header.Set("Authorization", "Bearer anything")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"name":"go"`)
}
