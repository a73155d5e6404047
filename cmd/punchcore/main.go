// punchcore - Prepaid Card Access Service
//
// This is the main entry point for the punchcore application.
// punchcore manages a fleet of physical card readers over persistent
// WebSocket connections, processing prepaid card check-in/check-out
// punches against an append-only event log.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/calder-systems/punchcore/migrations"

	"github.com/calder-systems/punchcore/internal/api"
	"github.com/calder-systems/punchcore/internal/card"
	"github.com/calder-systems/punchcore/internal/infrastructure/config"
	"github.com/calder-systems/punchcore/internal/infrastructure/database"
	"github.com/calder-systems/punchcore/internal/infrastructure/influxdb"
	"github.com/calder-systems/punchcore/internal/infrastructure/logging"
	"github.com/calder-systems/punchcore/internal/infrastructure/mqtt"
	"github.com/calder-systems/punchcore/internal/punch"
	"github.com/calder-systems/punchcore/internal/punchlog"
	"github.com/calder-systems/punchcore/internal/reader"
	"github.com/calder-systems/punchcore/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting punchcore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise reader registry
	readers := reader.NewRegistry(reader.NewSQLiteRepository(db.DB))
	readers.SetLogger(log)
	if refreshErr := readers.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading reader registry: %w", refreshErr)
	}

	// Initialise card ledger
	cards := card.NewLedger(card.NewSQLiteRepository(db.DB), card.LedgerConfig{
		Fee:                 cfg.Punch.Fee,
		LowBalanceThreshold: cfg.Punch.LowBalanceThreshold,
	})
	cards.SetLogger(log)
	if refreshErr := cards.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading card ledger: %w", refreshErr)
	}
	log.Info("registries initialised",
		"fee", cfg.Punch.Fee,
		"low_balance_threshold", cfg.Punch.LowBalanceThreshold,
	)

	// Punch event log and processor
	events := punchlog.NewSQLiteRepository(db.DB)
	processor := punch.NewProcessor(cards, readers, events)
	processor.SetLogger(log)

	// Session manager for reader connections
	sessions := session.NewManager(readers)
	sessions.SetLogger(log)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		publisher = mqtt.NewPublisher(mqttClient)
		publisher.SetLogger(log)
		processor.SetPublisher(publisher)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		processor.SetTelemetry(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server
	apiDeps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Readers:   readers,
		Cards:     cards,
		Events:    events,
		Processor: processor,
		Sessions:  sessions,
		Version:   version,
	}
	if publisher != nil {
		apiDeps.Publisher = publisher
	}
	if influxClient != nil {
		apiDeps.Telemetry = influxClient
	}

	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("punchcore stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PUNCHCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PUNCHCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
