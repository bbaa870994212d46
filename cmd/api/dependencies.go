package api

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/bundle"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/classifier"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/classifier/onnx"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/classifier/remote"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/handler"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/lexicon"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/echo-entity-extractor/pkg/config"
	"github.com/FACorreiaa/echo-entity-extractor/pkg/db"
	"github.com/FACorreiaa/echo-entity-extractor/pkg/observability"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *observability.Metrics

	// Model
	Bundle     *bundle.Bundle
	Lexicon    *lexicon.Lexicon
	Classifier classifier.Classifier

	// Repositories
	ExtractionRepo repository.ExtractionRepository

	// Services
	Extractor *service.Extractor

	// Handlers
	ExtractorHandler *handler.ExtractorHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Load tokenizer bundle, lexicon and classifier
	if err := deps.initModel(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init model: %w", err)
	}

	// Initialize repositories
	deps.initRepositories()

	// Initialize services
	deps.initServices()

	// Initialize handlers
	deps.initHandlers()

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase connects and migrates when a database is configured. Without one the
// extractor runs stateless.
func (d *Dependencies) initDatabase() error {
	if !d.Config.Database.Enabled() {
		d.Logger.Warn("DB_HOST not set; extraction store disabled")
		return nil
	}

	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initModel loads the bundle and lexicon and builds the configured classifier backend.
func (d *Dependencies) initModel() error {
	mc := d.Config.Model

	b, err := bundle.Load(mc.BundleDir, d.Logger)
	if err != nil {
		return err
	}
	d.Bundle = b

	d.Lexicon = lexicon.Default()
	if mc.LexiconPath != "" {
		lex, err := lexicon.Load(mc.LexiconPath)
		if err != nil {
			return fmt.Errorf("failed to load lexicon: %w", err)
		}
		d.Lexicon = lex
	}

	switch mc.Backend {
	case config.BackendRemote:
		d.Classifier = remote.New(mc.RemoteURL, mc.Timeout)
		d.Logger.Info("using remote classifier", "url", mc.RemoteURL)
	default:
		clf, err := onnx.New(onnx.Config{
			ModelPath:   mc.OnnxPath,
			LibraryPath: mc.OnnxLibrary,
			SeqLen:      mc.MaxLength,
			NumLabels:   len(b.Labels),
			Sessions:    mc.Sessions,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.Classifier = clf
	}

	d.Logger.Info("model initialized",
		"bundle", mc.BundleDir,
		"vocab_size", b.Vocab.Size(),
		"labels", len(b.Labels),
		"lowercase", b.Lowercase,
		"backend", mc.Backend,
	)
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() {
	if d.DB != nil {
		d.ExtractionRepo = repository.NewPostgresExtractionRepository(d.DB.Pool)
		d.Logger.Info("repositories initialized")
	}
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() {
	opts := service.Options{
		MaxLength:  d.Config.Model.MaxLength,
		Workers:    d.Config.Model.Workers,
		Lexicon:    d.Lexicon,
		Location:   d.Config.Model.Location(),
		DateFormat: d.Config.Model.DateFormat,
		Repository: d.ExtractionRepo,
		Metrics:    d.Metrics,
	}
	d.Extractor = service.NewExtractor(d.Bundle, d.Classifier, opts, d.Logger)

	d.Logger.Info("services initialized")
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() {
	d.ExtractorHandler = handler.NewExtractorHandler(d.Extractor, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if c, ok := d.Classifier.(io.Closer); ok {
		if err := c.Close(); err != nil {
			d.Logger.Error("failed to close classifier", "error", err)
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
