// Package server assembles the HTTP surface: global middleware, Swagger UI, the health
// probe and every feature module's routes under /api.
package server

import (
	"context"
	"log"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/user/blog-go/apperror"
	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/categories"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/httpx"
	"github.com/user/blog-go/moderation"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/tags"
	"github.com/user/blog-go/uploads"
	"github.com/user/blog-go/users"
)

// requestTimeout bounds ordinary requests. The moderation stream is mounted outside it.
const requestTimeout = 60 * time.Second

// Pinger reports whether the persistent store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries the services the router exposes.
type Deps struct {
	Store              Pinger
	Auth               *auth.AuthService
	Users              *users.UserService
	Posts              *posts.PostService
	Categories         *categories.CategoryService
	Tags               *tags.TagService
	Comments           comments.CommentService
	Uploads            uploads.Storage
	Broadcaster        *moderation.Broadcaster
	CORSAllowedOrigins []string
}

// NewRouter builds the application's http.Handler.
func NewRouter(d Deps) http.Handler {
	authHandlers := auth.NewHandlers(d.Auth)
	userHandlers := users.NewUserHandlers(d.Users, d.Uploads)
	postHandlers := posts.NewPostHandlers(d.Posts, d.Auth)
	categoryHandlers := categories.NewCategoryHandlers(d.Categories)
	tagHandlers := tags.NewTagHandlers(d.Tags)
	commentHandlers := comments.NewCommentHandler(d.Comments)
	uploadHandlers := uploads.NewHandlers(d.Uploads)
	moderationHandlers := moderation.NewHandlers(d.Broadcaster, originChecker(d.CORSAllowedOrigins))

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(d.CORSAllowedOrigins, "*"),
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	health := handleHealth(d.Store)
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)

		// Streams stay open for as long as the moderator is connected.
		r.Route("/moderation", func(r chi.Router) {
			r.Use(d.Auth.Authenticate, d.Auth.RequireAdmin)
			r.Get("/events", moderationHandlers.HandleEvents())
			r.Get("/ws", moderationHandlers.HandleWebSocket())
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Route("/users", func(r chi.Router) {
				r.Post("/register", authHandlers.HandleRegister())
				r.Post("/login", authHandlers.HandleLogin())
				r.Post("/forgot-password", authHandlers.HandleForgotPassword())
				r.Patch("/reset-password/{token}", authHandlers.HandleResetPassword())

				r.Get("/", userHandlers.HandleListUsers())
				r.Get("/profile/{id}", userHandlers.HandleGetUserProfile())
				r.Group(func(r chi.Router) {
					r.Use(d.Auth.Authenticate)
					r.Get("/me", userHandlers.HandleMe())
					r.Put("/profile/avatar", userHandlers.HandleUpdateAvatar())
					r.Put("/profile/cover", userHandlers.HandleUpdateCoverImage())
				})
			})

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", postHandlers.HandleListPublic())
				r.Get("/articles", postHandlers.HandleListArticles())
				r.Get("/category/{categoryId}", postHandlers.HandleListByCategory())
				r.With(d.Auth.OptionalAuthenticate).Get("/user/{userId}", postHandlers.HandleListByAuthor())
				r.With(d.Auth.OptionalAuthenticate).Get("/{id}", postHandlers.HandleGetPost())

				r.Group(func(r chi.Router) {
					r.Use(d.Auth.Authenticate)
					r.Post("/", postHandlers.HandleCreatePost())
					r.Put("/{id}", postHandlers.HandleEditPost())
					r.Delete("/{id}", postHandlers.HandleDeletePost())

					r.Group(func(r chi.Router) {
						r.Use(d.Auth.RequireAdmin)
						r.Get("/all", postHandlers.HandleListForAdmin())
						r.Put("/{id}/approve", postHandlers.HandleApprove())
						r.Put("/{id}/reject", postHandlers.HandleReject())
					})
				})
			})

			r.Route("/categories", func(r chi.Router) {
				categoryHandlers.RegisterRoutes(r, d.Auth.Authenticate, d.Auth.RequireAdmin)
			})
			r.Route("/tags", func(r chi.Router) {
				tagHandlers.RegisterRoutes(r, d.Auth.Authenticate)
			})
			r.Route("/comments", func(r chi.Router) {
				commentHandlers.RegisterRoutes(r, d.Auth.Authenticate, d.Auth.OptionalAuthenticate)
			})
			r.With(d.Auth.Authenticate).Post("/uploads", uploadHandlers.HandleUpload())
		})
	})

	return r
}

// recoverer turns a panicking handler into a 500 in the usual error shape.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.Printf("Panic serving %s %s: %+v", r.Method, r.URL.Path, rvr)
				httpx.WriteError(w, r, apperror.NewInternalError("internal server error", nil))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// originChecker builds the WebSocket origin policy from the CORS allow-list.
// A nil result keeps gorilla's same-origin default.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// handleHealth godoc
// @Summary Health check
// @Description Reports whether the API and its store are reachable.
// @Tags Health
// @Produce json
// @Success 200 {object} server.HealthResponse
// @Failure 503 {object} server.HealthResponse
// @Router /health [get]
func handleHealth(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.Printf("Health check failed: %v", err)
			httpx.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
			return
		}
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
	}
}
