package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/nicktill/crowdwait/pkg/config"
	"github.com/nicktill/crowdwait/pkg/export"
	"github.com/nicktill/crowdwait/pkg/ingest"
	"github.com/nicktill/crowdwait/pkg/publish"
	"github.com/nicktill/crowdwait/pkg/server/monitor"
	"github.com/nicktill/crowdwait/pkg/storage"
	"github.com/nicktill/crowdwait/pkg/storage/badger"
	"github.com/nicktill/crowdwait/pkg/storage/memory"
	"github.com/nicktill/crowdwait/pkg/storage/sqlite"
)

// SQLiteFile is the database file name inside the data directory
const SQLiteFile = "crowdwait.db"

// InitializeStorage opens the configured storage backend.
func InitializeStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "memory":
		log.Println("Using in-memory storage (data is lost on exit)")
		return memory.New(), nil
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		path := filepath.Join(cfg.Storage.DataDir, SQLiteFile)
		log.Printf("Initializing SQLite storage at %s...", path)
		store, err := sqlite.New(sqlite.Config{Path: path})
		if err != nil {
			return nil, err
		}
		log.Println("SQLite storage initialized successfully")
		return store, nil
	case "badger", "":
		if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		log.Printf("Initializing BadgerDB storage at %s...", cfg.Storage.DataDir)
		store, err := badger.New(badger.Config{
			Path:        cfg.Storage.DataDir,
			MaxMemoryMB: cfg.Storage.MaxMemoryMB,
		})
		if err != nil {
			return nil, err
		}
		log.Println("BadgerDB storage initialized successfully")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// App bundles the components behind the HTTP server and the CLI.
type App struct {
	Config         *config.Config
	Store          storage.Storage
	Refresher      *Refresher
	Snapshot       *export.Snapshot
	Hub            *EstimatesHub
	RefreshMonitor *monitor.RefreshMonitor
	DiskMonitor    *monitor.DiskMonitor
	ExportHandler  *export.Handler
	Publisher      *publish.Publisher
}

// NewApp wires every component around store. The Kafka publisher is only
// created when brokers are configured.
func NewApp(cfg *config.Config, store storage.Storage) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	calendar, err := cfg.Calendar()
	if err != nil {
		return nil, err
	}
	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:         cfg,
		Store:          store,
		Snapshot:       &export.Snapshot{},
		Hub:            NewEstimatesHub(),
		RefreshMonitor: monitor.NewRefreshMonitor(2 * cfg.Interval()),
		DiskMonitor:    monitor.NewDiskMonitor(cfg.Storage.DataDir, monitor.DefaultDiskCacheDuration),
		ExportHandler:  export.NewHandler(store),
	}

	var publisher Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		app.Publisher, err = publish.NewKafka(publish.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: config.KafkaWriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		publisher = app.Publisher
		log.Printf("Publishing estimates to Kafka topic %s", cfg.Kafka.Topic)
	}

	app.Refresher = NewRefresher(RefresherConfig{
		Store:     store,
		Source:    &ingest.ReverseFileSource{Path: cfg.Log.Path, ChunkSize: cfg.Log.ChunkSize},
		Calendar:  calendar,
		Table:     table,
		Location:  loc,
		Precision: export.Decimals(cfg.Export.DensityPrecision),
		Snapshot:  app.Snapshot,
		Monitor:   app.RefreshMonitor,
		Hub:       app.Hub,
		Publisher: publisher,
	})
	return app, nil
}

// Close releases the publisher. The store is owned by the caller.
func (a *App) Close() error {
	if a.Publisher != nil {
		return a.Publisher.Close()
	}
	return nil
}

// Uptime reports time since process start
func Uptime() time.Duration {
	return time.Since(startTime)
}
