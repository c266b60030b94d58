package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/option"

	"gazette-monitor/internal/editions"
	"gazette-monitor/internal/llm"
	openai "gazette-monitor/internal/llm/openai"
	"gazette-monitor/internal/llm/vertex"
	"gazette-monitor/internal/monitor"
	"gazette-monitor/internal/notify"
	"gazette-monitor/internal/portal"
	"gazette-monitor/internal/queue"
	"gazette-monitor/internal/services/health"
	"gazette-monitor/internal/shared/config"
	"gazette-monitor/internal/shared/server"
	"gazette-monitor/internal/shared/storage/db"
	"gazette-monitor/internal/shared/storage/object"
	gcsstore "gazette-monitor/internal/shared/storage/object/gcs"
	localstore "gazette-monitor/internal/shared/storage/object/local"
	s3store "gazette-monitor/internal/shared/storage/object/s3"
)

// App holds shared dependencies for every entrypoint.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Store     object.ObjectStore
	Queue     queue.Client
	Repo      editions.Repo
	LLM       llm.Client
	Notifiers []notify.Notifier
	Browser   *portal.Browser
	Monitor   *monitor.Service

	closers []func() error
}

// Build prepares shared dependencies and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()
	app := &App{Config: cfg}

	sqlDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Repo = &editions.PGRepo{DB: sqlDB}
		// The Lambda pool is a process singleton reused by warm invocations.
		if !db.IsLambdaRuntime() {
			app.closers = append(app.closers, sqlDB.Close)
		}
	} else {
		app.Repo = editions.NewMemoryRepo()
	}

	fail := func(err error) (*App, error) {
		app.Close()
		return nil, err
	}
	if app.Store, err = app.buildStore(ctx); err != nil {
		return fail(err)
	}
	if app.Queue, err = buildQueue(ctx, cfg); err != nil {
		return fail(err)
	}
	if app.LLM, err = app.buildLLM(ctx); err != nil {
		return fail(err)
	}
	app.Notifiers = buildNotifiers(cfg)

	app.Browser = portal.NewBrowser(portal.BrowserOptions{
		PortalURL:    cfg.PortalURL,
		DownloadPath: cfg.PortalDownloadPath,
		RemoteURL:    cfg.ChromeRemoteURL,
		Headless:     cfg.ChromeHeadless,
		UserAgent:    cfg.UserAgent,
		Wait:         cfg.PortalWait,
		PageLoad:     cfg.PortalPageLoad,
		ClickSettle:  cfg.PortalClickSettle,
	})

	app.Monitor = &monitor.Service{
		Locator: app.Browser,
		Downloader: &portal.FallbackDownloader{
			Primary:   portal.NewHTTPDownloader(cfg.UserAgent, cfg.PortalPageLoad, cfg.MinPDFBytes),
			Secondary: app.Browser,
			MinBytes:  cfg.MinPDFBytes,
		},
		Store:     app.Store,
		LLM:       app.LLM,
		Notifiers: app.Notifiers,
		Repo:      app.Repo,
		Options: monitor.Options{
			MonitorName:   cfg.MonitorName,
			PromptVersion: cfg.PromptVersion,
			MaxTextChars:  cfg.MaxTextChars,
			MinTextChars:  cfg.MinTextChars,
			MinPDFBytes:   cfg.MinPDFBytes,
		},
	}

	app.Router = server.NewRouter(server.RouterDeps{
		CORSAllowOrigin: cfg.CORSAllowOrigin,
		RunsPerMinute:   cfg.RunsPerMinute,
		Health:          health.NewService(app.pinger()),
		Editions:        app.Repo,
		Runner:          app.Monitor,
		Queue:           app.Queue,
	})

	return app, nil
}

func (a *App) pinger() health.Pinger {
	if a.DB == nil {
		return nil
	}
	return a.DB
}

// Close releases clients that hold connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("bootstrap: close: %v", err)
		}
	}
	a.closers = nil
}

// openDatabase is replaced in tests.
var openDatabase = buildDB

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(db.ProfileLambda)))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultOptions(db.ProfileServer)))
	}
	if err == nil {
		if err = db.RunMigrations(ctx, sqlDB); err != nil && !db.IsLambdaRuntime() {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database unavailable; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func (a *App) buildStore(ctx context.Context) (object.ObjectStore, error) {
	cfg := a.Config
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID, cfg.S3Endpoint)
	case "gcs":
		if strings.TrimSpace(cfg.GCSBucket) == "" {
			return nil, errors.New("OBJECT_STORE=gcs requires GCS_BUCKET")
		}
		store, err := gcsstore.New(ctx, cfg.GCSBucket, cfg.GCSPrefix, googleOptions(cfg, cfg.GCSEndpoint)...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func googleOptions(cfg config.Config, endpoint string) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.GoogleCredsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredsFile))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	return opts
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.QueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func (a *App) buildLLM(ctx context.Context) (llm.Client, error) {
	cfg := a.Config
	switch cfg.LLMProvider {
	case "vertex":
		client, err := vertex.NewClient(ctx, cfg.VertexProjectID, cfg.VertexRegion, cfg.LLMModel, cfg.LLMTemperature, googleOptions(cfg, "")...)
		if err != nil {
			return a.llmFallback(err)
		}
		a.closers = append(a.closers, client.Close)
		return client, nil
	case "openai", "":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.LLMTemperature)
		if err != nil {
			return a.llmFallback(err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

// llmFallback keeps dev environments bootable without credentials; runs fail at the summarize stage.
func (a *App) llmFallback(err error) (llm.Client, error) {
	if !a.Config.IsDevLike() {
		return nil, err
	}
	log.Printf("bootstrap: llm client unavailable; summaries will fail: %v", err)
	return llmPlaceholder{err: err}, nil
}

func buildNotifiers(cfg config.Config) []notify.Notifier {
	var out []notify.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.SMTPAddr != "" && cfg.EmailFrom != "" && len(cfg.EmailTo) > 0 {
		out = append(out, notify.NewEmail(notify.EmailOptions{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}))
	}
	if len(out) == 0 {
		log.Printf("bootstrap: no notifiers configured")
	}
	return out
}

type llmPlaceholder struct {
	err error
}

func (p llmPlaceholder) Summarize(ctx context.Context, in llm.SummarizeInput) (llm.Summary, error) {
	return llm.Summary{}, fmt.Errorf("llm client not configured: %w", p.err)
}
