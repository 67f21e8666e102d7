package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"filetrack-backend/internal/files"
	"filetrack-backend/internal/queue"
	"filetrack-backend/internal/reports"
	"filetrack-backend/internal/scans"
	"filetrack-backend/internal/services/health"
	"filetrack-backend/internal/shared/auth"
	"filetrack-backend/internal/shared/config"
	"filetrack-backend/internal/shared/server"
	"filetrack-backend/internal/shared/storage/db"
	"filetrack-backend/internal/shared/storage/object"
	localstore "filetrack-backend/internal/shared/storage/object/local"
	s3store "filetrack-backend/internal/shared/storage/object/s3"
	"filetrack-backend/internal/shared/telemetry"
	"filetrack-backend/internal/users"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Store    object.ObjectStore
	Queue    queue.Client
	Tokens   *auth.Tokens
	Location *time.Location

	UsersRepo users.Repo
	FilesRepo files.Repo
	ScansRepo scans.Repo

	UsersService   *users.Service
	FilesService   *files.Service
	ReportsService *reports.Service
	ScansService   *scans.Service
	Health         *health.Service
}

// Build prepares dependencies and wires routes.
func Build(cfg config.Config) (*App, error) {
	return BuildContext(context.Background(), cfg)
}

func BuildContext(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	tokens, err := auth.NewTokens(cfg.Env, cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Queue:    queueClient,
		Tokens:   tokens,
		Location: cfg.Location(),
	}

	if err := buildServices(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		Tokens:         app.Tokens,
		Health:         app.Health,
		UserHandler:    users.NewHandler(app.UsersService, app.Tokens),
		FileHandler:    files.NewHandler(app.FilesService),
		ReportsHandler: reports.NewHandler(app.ReportsService),
		ScanHandler:    scans.NewHandler(app.ScansService, cfg.MaxScanUploadBytes),
	})

	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_repositories", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repositories", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return queue.Discard{}, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(ctx context.Context, app *App) error {
	if app.DB != nil {
		app.UsersRepo = &users.PGRepo{DB: app.DB}
		app.FilesRepo = &files.PGRepo{DB: app.DB}
		app.ScansRepo = &scans.PGRepo{DB: app.DB}
	} else {
		app.UsersRepo = users.NewMemoryRepo()
		app.FilesRepo = files.NewMemoryRepo()
		app.ScansRepo = scans.NewMemoryRepo()
	}

	app.UsersService = users.NewService(app.UsersRepo)
	if _, created, err := app.UsersService.EnsureAdmin(ctx, app.Config.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if created {
		telemetry.Info("bootstrap.admin_created", map[string]any{"username": "admin"})
	}

	filesSvc := files.NewService(app.FilesRepo, app.UsersService)
	filesSvc.Notifier = app.Queue
	filesSvc.Location = app.Location
	app.FilesService = filesSvc

	app.ReportsService = reports.NewService(app.FilesRepo, app.Location)
	app.ScansService = scans.NewService(app.ScansRepo, filesSvc, app.Store)

	var pinger health.Pinger
	if app.DB != nil {
		pinger = app.DB
	}
	app.Health = health.NewService(pinger)
	return nil
}
