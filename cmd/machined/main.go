// Machine Core - Accelerator Middleware Daemon
//
// This is the main entry point for the machine-core daemon. It loads the
// device lattice, connects the control bus, and holds one snapshot engine
// per hardware type:
//   - Control points over MQTT (retained state topics, set topics)
//   - Per-device YAML definitions under the lattice directory
//   - Snapshot capture/apply/diff with YAML persistence and a SQLite catalog
//   - Optional InfluxDB recording of buffered statistical samples
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/arclight-systems/machine-core/migrations"

	"github.com/arclight-systems/machine-core/internal/area"
	"github.com/arclight-systems/machine-core/internal/bridges/mqttbus"
	"github.com/arclight-systems/machine-core/internal/control"
	"github.com/arclight-systems/machine-core/internal/device"
	"github.com/arclight-systems/machine-core/internal/infrastructure/config"
	"github.com/arclight-systems/machine-core/internal/infrastructure/database"
	"github.com/arclight-systems/machine-core/internal/infrastructure/influxdb"
	"github.com/arclight-systems/machine-core/internal/infrastructure/logging"
	"github.com/arclight-systems/machine-core/internal/infrastructure/mqtt"
	"github.com/arclight-systems/machine-core/internal/snapshot"
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
	log.Info("starting machine-core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

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

	// Open database (snapshot catalog)
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to the MQTT control bus
	mqttClient, err := mqtt.Connect(cfg.MQTT)
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

	// Connect to InfluxDB (optional, records buffered samples)
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

	// Load the device lattice
	registry, err := loadLattice(cfg, mqttClient, influxClient, log)
	if err != nil {
		return fmt.Errorf("loading lattice: %w", err)
	}
	log.Info("lattice loaded",
		"devices", registry.Len(),
		"areas", cfg.Machine.Areas,
		"virtual", cfg.Machine.Virtual,
	)

	// Build one snapshot engine per hardware type
	engines, err := buildEngines(ctx, cfg, db, registry, log)
	if err != nil {
		return fmt.Errorf("building snapshot engines: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"snapshot_engines", len(engines),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. InfluxDB (if enabled)
	// 2. MQTT
	// 3. Database

	log.Info("machine-core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MACHINECORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MACHINECORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadLattice dials the control bus for every point in the lattice
// directory and returns the populated device registry.
func loadLattice(cfg *config.Config, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) (*device.Registry, error) {
	areas, err := area.NewSequence(cfg.Machine.Areas)
	if err != nil {
		return nil, fmt.Errorf("building area sequence: %w", err)
	}

	dialer := mqttbus.NewDialer(mqttClient, byte(cfg.MQTT.QoS), cfg.GetOperationTimeout())
	dialer.SetLogger(log)

	loader := device.NewLoader(dialer, control.BuildOptions{
		Virtual: cfg.Machine.Virtual,
	})
	loader.SetLogger(log)

	// Buffered samples stream to InfluxDB when recording is enabled
	if influxClient != nil {
		loader.SetRecorderFactory(func(hwtype, dev string) control.SampleRecorder {
			return func(point string, value float64, _ time.Time) {
				influxClient.WritePointSample(hwtype, dev, point, value)
			}
		})
	}

	return loader.LoadLattice(cfg.Lattice.Path, areas)
}

// buildEngines creates a snapshot engine for each hardware type present
// in the registry, all sharing one store and one catalog, and primes
// each with an initial machine capture.
func buildEngines(ctx context.Context, cfg *config.Config, db *database.DB, registry *device.Registry, log *logging.Logger) (map[string]*snapshot.Engine, error) {
	store, err := snapshot.NewStore(cfg.Snapshot.Root)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}
	store.SetLogger(log)

	catalog, err := snapshot.NewCatalog(db)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot catalog: %w", err)
	}

	engines := make(map[string]*snapshot.Engine)
	for _, d := range registry.All() {
		hwtype := d.HardwareType()
		if _, ok := engines[hwtype]; ok {
			continue
		}

		engine, err := snapshot.NewEngine(hwtype, registry, store)
		if err != nil {
			return nil, fmt.Errorf("creating engine for %q: %w", hwtype, err)
		}
		engine.SetLogger(log)
		engine.SetCatalog(catalog)
		engines[hwtype] = engine
	}

	// Prime each engine with a first capture so the daemon holds a live
	// machine snapshot from startup. Capture warnings are expected when
	// parts of the machine are offline.
	for hwtype, engine := range engines {
		warnings, err := engine.Update(ctx)
		if err != nil {
			log.Warn("initial snapshot capture failed", "hardware_type", hwtype, "error", err)
			continue
		}
		for _, w := range warnings {
			log.Warn("initial snapshot capture warning",
				"hardware_type", hwtype,
				"device", w.Device,
				"point", w.Point,
				"message", w.Message,
			)
		}
		log.Info("snapshot engine primed", "hardware_type", hwtype, "state", engine.State().String())
	}

	return engines, nil
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
