package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/ahmadzakiakmal/dossierflow/config"
	"github.com/ahmadzakiakmal/dossierflow/inbox"
	"github.com/ahmadzakiakmal/dossierflow/repository"
	"github.com/ahmadzakiakmal/dossierflow/repository/models"
	"github.com/ahmadzakiakmal/dossierflow/server"
	"github.com/ahmadzakiakmal/dossierflow/srvreg"
	"github.com/ahmadzakiakmal/dossierflow/transport"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"gorm.io/gorm"
)

var (
	configFile string
	httpPort   string
	seed       bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "Path to a config file (toml, yaml or json)")
	flag.StringVar(&httpPort, "http-port", "", "HTTP web server port, overrides the config")
	flag.BoolVar(&seed, "seed", false, "Create the demo operators on an empty database")
}

func openDatabase(cfg config.DatabaseConfig, logger cmtlog.Logger) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o750); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		logger.Info("Opening SQLite database", "path", cfg.SQLitePath)
		return repository.OpenSQLite(cfg.SQLitePath)
	default:
		return repository.ConnectPostgres(cfg.DSN, cfg.Attempts, logger)
	}
}

// buildTransports registers a sender for every delivery method that is configured
func buildTransports(ctx context.Context, cfg config.TransportConfig, logger cmtlog.Logger) (*transport.Registry, func(), error) {
	registry := transport.NewRegistry(logger)
	cleanup := func() {}

	registry.Register(models.MethodSecureShare, &transport.SecureShare{
		Root:           cfg.Share.Root,
		BaseURL:        cfg.Share.BaseURL,
		Expiry:         cfg.Share.Expiry,
		PasswordLength: cfg.Share.PasswordLength,
	})
	registry.Register(models.MethodPhysicalMedia, &transport.PhysicalMedia{StagingDir: cfg.Physical.StagingDir})

	if cfg.FTP.Addr != "" {
		registry.Register(models.MethodFTP, &transport.FTP{
			Addr:      cfg.FTP.Addr,
			User:      cfg.FTP.User,
			Password:  cfg.FTP.Password,
			Dir:       cfg.FTP.Dir,
			PublicURL: cfg.FTP.PublicURL,
			Timeout:   cfg.FTP.Timeout,
		})
	}
	if cfg.SMTP.Addr != "" {
		registry.Register(models.MethodEmail, &transport.Email{
			Addr:     cfg.SMTP.Addr,
			Host:     cfg.SMTP.Host,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
		})
	}
	if cfg.GCS.Bucket != "" {
		gcs, err := storage.NewClient(ctx)
		if err != nil {
			return nil, cleanup, fmt.Errorf("creating cloud storage client: %w", err)
		}
		cleanup = func() {
			if err := gcs.Close(); err != nil {
				logger.Error("Closing cloud storage client", "err", err)
			}
		}
		registry.Register(models.MethodCloudStorage, &transport.CloudStorage{
			Bucket:     gcs.Bucket(cfg.GCS.Bucket),
			BucketName: cfg.GCS.Bucket,
			Prefix:     cfg.GCS.Prefix,
		})
	}
	return registry, cleanup, nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("Loading config: %v", err)
	}
	if httpPort != "" {
		cfg.HTTPPort = httpPort
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	level, err := cmtlog.AllowLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Parsing log level: %v", err)
	}
	logger = cmtlog.NewFilter(logger, level)

	db, err := openDatabase(cfg.Database, logger.With("module", "database"))
	if err != nil {
		log.Fatalf("Opening database: %v", err)
	}

	box, err := inbox.Open(cfg.InboxDir, logger.With("module", "inbox"))
	if err != nil {
		log.Fatalf("Opening inbox: %v", err)
	}
	defer func() {
		if err := box.Close(); err != nil {
			logger.Error("Closing inbox", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transports, closeTransports, err := buildTransports(ctx, cfg.Transport, logger.With("module", "transport"))
	if err != nil {
		log.Fatalf("Configuring transports: %v", err)
	}
	defer closeTransports()

	repo := repository.NewRepository(db, repository.Options{
		Logger:           logger.With("module", "repository"),
		Notifier:         box,
		Dispatcher:       transports,
		CartonCapacity:   cfg.CartonCapacity,
		DefaultRecipient: cfg.DefaultRecipient,
	})
	if err := repo.Migrate(); err != nil {
		log.Fatalf("Migrating database: %v", err)
	}
	if seed || cfg.Seed {
		if err := repo.Seed(); err != nil {
			log.Fatalf("Seeding database: %v", err)
		}
	}

	serviceRegistry := srvreg.NewServiceRegistry(repo, box, logger.With("module", "srvreg"), nil)
	serviceRegistry.RegisterDefaultServices()

	webserver := server.NewWebServer(cfg.HTTPPort, logger.With("module", "server"), serviceRegistry)
	if err := webserver.Start(); err != nil {
		log.Fatalf("Starting HTTP server: %v", err)
	}

	// Wait for interrupt signal to gracefully shut down the server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := webserver.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutting down HTTP web server", "err", err)
	}
	logger.Info("HTTP web server gracefully stopped")
}
