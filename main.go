// This is the main entry point of the blog API.
// It loads configuration, opens the selected store, wires the services and serves HTTP
// until it receives SIGINT or SIGTERM. The `migrate` and `promote-admin` commands cover
// the operational tasks that must not be reachable over HTTP.
//
// @title Blog API
// @version 1.0
// @description REST API for a moderated blog: users, posts, categories, tags and comments.
// @contact.name API Support
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type 'Bearer YOUR_JWT_TOKEN' to authorize
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/background"
	"github.com/user/blog-go/categories"
	"github.com/user/blog-go/clock"
	"github.com/user/blog-go/comments"
	"github.com/user/blog-go/config"
	"github.com/user/blog-go/db"
	_ "github.com/user/blog-go/docs" // Generated Swagger docs
	"github.com/user/blog-go/mail"
	"github.com/user/blog-go/moderation"
	"github.com/user/blog-go/posts"
	"github.com/user/blog-go/server"
	"github.com/user/blog-go/store"
	"github.com/user/blog-go/store/memory"
	mongostore "github.com/user/blog-go/store/mongo"
	"github.com/user/blog-go/store/postgres"
	"github.com/user/blog-go/tags"
	"github.com/user/blog-go/uploads"
	"github.com/user/blog-go/users"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file. In production the variables are usually set directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	app := &cli.App{
		Name:   "blog-go",
		Usage:  "blog REST API with moderated posts",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server (default)",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "skip-migrations",
						Usage: "do not apply pending SQL migrations on startup (postgres only)",
					},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply pending SQL migrations and exit",
				Action: migrateCmd,
			},
			{
				Name:  "promote-admin",
				Usage: "grant (or with --revoke, remove) the admin role",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "email of the account", Required: true},
					&cli.BoolFlag{Name: "revoke", Usage: "remove the admin role instead"},
				},
				Action: promoteAdmin,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore connects the backend named by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return postgres.New(pool), nil
	case config.StoreDriverMongo:
		client, err := db.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		st, err := mongostore.New(ctx, client, cfg.Mongo.Database)
		if err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return st, nil
	case config.StoreDriverMemory:
		log.Println("Warning: using the in-memory store; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func closeStore(st store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.Close(ctx); err != nil {
		log.Printf("Error closing store: %v", err)
	}
}

func runMigrations(cfg *config.StoreConfig) error {
	if cfg.Driver != config.StoreDriverPostgres {
		log.Printf("Store driver %q has no SQL migrations; nothing to do", cfg.Driver)
		return nil
	}
	if err := db.RunMigrations(db.MigrationDSN(cfg.Postgres), cfg.MigrationsPath); err != nil {
		return err
	}
	log.Println("Database migrations applied")
	return nil
}

func migrateCmd(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return runMigrations(cfg.Store)
}

func promoteAdmin(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore(st)

	user, err := users.NewUserService(st).SetAdmin(c.Context, c.String("email"), !c.Bool("revoke"))
	if err != nil {
		return err
	}
	log.Printf("User %s (%s) is_admin=%t", user.Email, user.ID, user.IsAdmin)
	return nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !c.Bool("skip-migrations") {
		if err := runMigrations(cfg.Store); err != nil {
			return err
		}
	}

	st, err := openStore(c.Context, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore(st)

	clk := clock.NewRealClock()
	broadcaster := moderation.NewBroadcaster()

	// Services get their dependencies injected here; nothing below reaches for globals.
	authService := auth.NewAuthService(st, mail.New(cfg.Mail), clk, cfg.Auth, cfg.Server.FrontendURL)
	handler := server.NewRouter(server.Deps{
		Store:              st,
		Auth:               authService,
		Users:              users.NewUserService(st),
		Posts:              posts.NewPostService(st, broadcaster, clk),
		Categories:         categories.NewCategoryService(st),
		Tags:               tags.NewTagService(st),
		Comments:           comments.NewCommentService(st, clk),
		Uploads:            uploads.NewDiskStorage(cfg.Server.UploadsDir),
		Broadcaster:        broadcaster,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	// Shutdown does not cancel request contexts, so the long-lived moderation streams are ended explicitly.
	srv.RegisterOnShutdown(broadcaster.Close)

	janitorStop := make(chan struct{})
	janitorDone := background.StartResetTokenJanitor(st, clk, cfg.Server.ResetSweepInterval, janitorStop)

	g, gctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		log.Printf("Server starting on %s (store: %s)", srv.Addr, cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Server shutting down...")

		close(janitorStop)
		<-janitorDone

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		log.Println("Server stopped gracefully")
		return nil
	})

	return g.Wait()
}
