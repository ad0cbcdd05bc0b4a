// Templegate Capacity Core - Dynamic Capacity Management
//
// This is the main entry point for the Templegate Capacity Core daemon.
// Capacity Core evaluates dynamic capacity rules for temple sites:
//   - Rule-driven capacity adjustments (festivals, maintenance, weather)
//   - Manual overrides with an approval workflow
//   - Live occupancy and weather feeds over MQTT
//   - REST API and WebSocket broadcasts for booking frontends
//
// For architecture details, see: docs/architecture/system-overview.md
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/templegate/capacity-core/migrations"

	"github.com/templegate/capacity-core/internal/api"
	"github.com/templegate/capacity-core/internal/capacity"
	"github.com/templegate/capacity-core/internal/infrastructure/config"
	"github.com/templegate/capacity-core/internal/infrastructure/database"
	"github.com/templegate/capacity-core/internal/infrastructure/influxdb"
	"github.com/templegate/capacity-core/internal/infrastructure/logging"
	"github.com/templegate/capacity-core/internal/infrastructure/mqtt"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Templegate Capacity Core",
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
	db, err := database.Open(ctx, database.Config{
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

	// Initialise capacity store
	repo := capacity.NewSQLiteRepository(db.DB, cfg.Site.ID)
	store := capacity.NewStore(repo)
	store.SetLogger(log)

	if refreshErr := store.Refresh(ctx); refreshErr != nil {
		return fmt.Errorf("loading capacity store: %w", refreshErr)
	}
	log.Info("capacity store initialised", "site", cfg.Site.ID)

	// WebSocket hub is shared between the engine (broadcasts) and the API
	// server (client registration), so it is created here.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var feed *mqtt.CapacityFeed
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

		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		feed = mqtt.NewCapacityFeed(
			mqttClient,
			cfg.Site.ID,
			byte(cfg.MQTT.QoS),
			store,
			cfg.Engine.WarningThreshold,
			cfg.Engine.CriticalThreshold,
		)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Assign through typed variables so a disabled client stays a true
	// nil interface inside the engine.
	var publisher capacity.StatePublisher
	if feed != nil {
		publisher = feed
	}
	var recorder capacity.Recorder
	if influxClient != nil {
		recorder = influxClient
	}

	engine := capacity.NewEngine(store, repo, publisher, hub, recorder, log)

	// The feed needs the engine for weather handling, but the engine needs
	// the feed as its publisher; the cycle is closed post-construction.
	if feed != nil {
		feed.SetEngine(engine)
		if startErr := feed.Start(); startErr != nil {
			return fmt.Errorf("starting capacity feed: %w", startErr)
		}
		log.Info("capacity feed started", "site", cfg.Site.ID)
	}

	// Start the evaluation scheduler
	scheduler := capacity.NewScheduler(engine, store, cfg.GetEvaluationInterval(), log)
	store.SetOnChange(scheduler.Trigger)
	scheduler.Start(ctx)
	defer func() {
		log.Info("stopping scheduler")
		scheduler.Stop()
	}()
	log.Info("scheduler started", "interval", cfg.GetEvaluationInterval())

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:                  cfg.API,
		WS:                      cfg.WebSocket,
		Logger:                  log,
		Engine:                  engine,
		Store:                   store,
		Repo:                    repo,
		ExternalHub:             hub,
		RequireOverrideApproval: cfg.Engine.RequireApprovalForOverrides,
		EvaluationHistory:       cfg.Engine.EvaluationHistory,
		Version:                 version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, apiServer, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Scheduler
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Templegate Capacity Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TEMPLEGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TEMPLEGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - apiServer: API server to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, apiServer *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := apiServer.HealthCheck(checkCtx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(checkCtx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
