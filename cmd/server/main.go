// Command server runs the ImageDrop web server.
//
// main only reads configuration, builds the dependency graph and starts the
// server; everything else lives under internal/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dhrumilshah777/imageDrop/internal/auth"
	"github.com/Dhrumilshah777/imageDrop/internal/blobstore"
	miniostore "github.com/Dhrumilshah777/imageDrop/internal/blobstore/minio"
	"github.com/Dhrumilshah777/imageDrop/internal/config"
	"github.com/Dhrumilshah777/imageDrop/internal/diagnostics"
	"github.com/Dhrumilshah777/imageDrop/internal/docstore"
	mongostore "github.com/Dhrumilshah777/imageDrop/internal/docstore/mongo"
	sqlitestore "github.com/Dhrumilshah777/imageDrop/internal/docstore/sqlite"
	"github.com/Dhrumilshah777/imageDrop/internal/handler"
	"github.com/Dhrumilshah777/imageDrop/internal/preview"
	sqliteRepo "github.com/Dhrumilshah777/imageDrop/internal/repository/sqlite"
	"github.com/Dhrumilshah777/imageDrop/internal/server"
	"github.com/Dhrumilshah777/imageDrop/internal/service"
	"github.com/Dhrumilshah777/imageDrop/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run builds everything and blocks until the server stops. Resources are
// released in reverse order of creation.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// === USERS ===
	if err := ensureDir(cfg.UsersDBPath); err != nil {
		return err
	}
	users, err := sqliteRepo.New(cfg.UsersDBPath)
	if err != nil {
		return fmt.Errorf("opening users database: %w", err)
	}
	cleanup = append(cleanup, func() { users.Close() })

	// === DOCUMENT STORE ===
	docs, err := openDocstore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, func() { docs.Close() })

	// === OBJECT STORE ===
	blobs, err := openBlobstore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// === DIAGNOSTICS ===
	reporters := diagnostics.Multi{diagnostics.LogReporter{Logger: logger}}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, diagnostics will only be logged",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
		}
		reporters = append(reporters, diagnostics.NewRedisReporter(rdb, cfg.DiagnosticsChannel, logger))
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	// === UPLOADS ===
	orchestrator := upload.NewOrchestrator(blobs, docs, reporters, logger, cfg.MaxUploadBytes)
	previews := preview.NewRegistry(logger)
	uploads := upload.NewManager(orchestrator, previews, logger)

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, auth.DefaultTTL)
	if err != nil {
		return err
	}
	authService := service.NewAuthService(users, tokens, auth.NewPasswordService(), logger)

	var github handler.GitHubExchanger
	if cfg.GitHub.Enabled() {
		github = auth.NewGitHubProvider(cfg.GitHub.ClientID, cfg.GitHub.ClientSecret, cfg.GitHub.CallbackURL)
	} else {
		logger.Warn("GITHUB_CLIENT_ID/GITHUB_CLIENT_SECRET not set, GitHub sign-in is disabled")
	}

	srv, err := server.New(server.Config{
		Port:               cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		UploadRatePerMin:   cfg.UploadRatePerMin,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	}, server.Deps{
		Auth:       authService,
		Tokens:     tokens,
		GitHub:     github,
		Docs:       docs,
		Uploads:    uploads,
		Previews:   previews,
		OnShutdown: []func(){uploads.Close},
	}, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT or SIGTERM.
	return srv.Start()
}

func openDocstore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (docstore.Store, error) {
	switch cfg.Docstore.Driver {
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.Docstore.MongoURI, cfg.Docstore.MongoDatabase, logger)
		if err != nil {
			return nil, fmt.Errorf("opening mongo document store: %w", err)
		}
		logger.Info("document store ready", slog.String("driver", "mongo"))
		return s, nil
	default:
		if err := ensureDir(cfg.Docstore.Path); err != nil {
			return nil, err
		}
		s, err := sqlitestore.Open(cfg.Docstore.Path)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite document store: %w", err)
		}
		logger.Info("document store ready",
			slog.String("driver", "sqlite"),
			slog.String("path", cfg.Docstore.Path),
		)
		return s, nil
	}
}

func openBlobstore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (blobstore.Store, error) {
	if cfg.Blobstore.Driver != config.DriverMinIO {
		logger.Warn("inline object store in use, image bytes are kept in document records")
		return blobstore.Inline{}, nil
	}

	b := cfg.Blobstore
	s, err := miniostore.New(ctx, miniostore.Config{
		Endpoint:      b.Endpoint,
		AccessKey:     b.AccessKey,
		SecretKey:     b.SecretKey,
		Bucket:        b.Bucket,
		UseSSL:        b.UseSSL,
		PublicBaseURL: b.PublicBaseURL,
		URLExpiry:     b.URLExpiry,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to object store: %w", err)
	}
	logger.Info("object store ready", slog.String("endpoint", b.Endpoint), slog.String("bucket", b.Bucket))
	return s, nil
}

// ensureDir creates the parent directory of a database file.
func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}
