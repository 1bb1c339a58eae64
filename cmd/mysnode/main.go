// mysnode - MySensors node over MQTT
//
// This is the main entry point for mysnode. It turns the host it runs on
// into a MySensors node: it obtains a node id from the controller, presents
// the sensors listed in the configuration and then stays connected, serving
// controller requests until it is interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/mysnode/internal/hostctl"
	"github.com/nerrad567/mysnode/internal/identity"
	"github.com/nerrad567/mysnode/internal/infrastructure/config"
	"github.com/nerrad567/mysnode/internal/infrastructure/database"
	"github.com/nerrad567/mysnode/internal/infrastructure/influxdb"
	"github.com/nerrad567/mysnode/internal/infrastructure/logging"
	"github.com/nerrad567/mysnode/internal/infrastructure/mqtt"
	"github.com/nerrad567/mysnode/internal/metrics"
	"github.com/nerrad567/mysnode/internal/mysensors"
	"github.com/nerrad567/mysnode/internal/node"
	"github.com/nerrad567/mysnode/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// connectRetryDelay is the pause between Connect calls while the controller
// does not answer id requests.
const connectRetryDelay = 30 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configFlag string

	cmd := &cobra.Command{
		Use:           "mysnode",
		Short:         "MySensors node over MQTT",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), getConfigPath(configFlag))
		},
	}

	cmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config.yaml (default $MYSNODE_CONFIG or "+defaultConfigPath+")")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the broker and run the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), getConfigPath(configFlag))
		},
	}

	cmd.AddCommand(runCmd, identityCmd(&configFlag))
	return cmd
}

func identityCmd(configFlag *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect or reset the persisted node id",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the persisted node id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(getConfigPath(*configFlag))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			store, _, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			id, err := store.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading node identity: %w", err)
			}

			if id.Known() {
				fmt.Fprintf(cmd.OutOrStdout(), "node id: %d\n", id.NodeID)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "node id: unassigned")
			}
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget the node id so the controller assigns a new one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(getConfigPath(*configFlag))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			store, _, closeStore, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			session, err := node.NewSession(node.Options{
				Transport: mqtt.New(cfg.MQTT),
				Store:     store,
				Topics:    topicsFromConfig(cfg),
				Logger:    logging.NewWithWriter(cfg.Logging, version, cmd.ErrOrStderr()),
			})
			if err != nil {
				return err
			}
			if err := session.ResetIdentity(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "node id reset; a new id will be requested on next start")
			return nil
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}

// run is the node daemon, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting mysnode",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	store, db, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	log.Info("identity store ready", "backend", cfg.Identity.Backend)

	// Metrics (optional)
	var (
		nodeMetrics *metrics.Metrics
		registry    *prometheus.Registry
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		nodeMetrics, err = metrics.New(registry, node.StateNames())
		if err != nil {
			return fmt.Errorf("creating metrics: %w", err)
		}
	}

	// InfluxDB (optional)
	var (
		recorder     node.Recorder
		influxClient *influxdb.Client
	)
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorder = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	mqttClient := mqtt.New(cfg.MQTT)
	mqttClient.SetLogger(log.Component("mqtt"))

	session, err := node.NewSession(node.Options{
		Transport:      mqttClient,
		Store:          store,
		HostControl:    hostctl.NewRebooter(cfg.Host.Reboot, log),
		Recorder:       recorder,
		Topics:         topicsFromConfig(cfg),
		SketchName:     cfg.Node.SketchName,
		SketchVersion:  cfg.Node.SketchVersion,
		Logger:         log,
		Metrics:        nodeMetrics,
		RequestTimeout: cfg.GetRequestTimeout(),
		ConfigTimeout:  cfg.GetConfigTimeout(),
		MaxAttempts:    cfg.Node.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	if err := registerSensors(session, cfg.Node.Sensors); err != nil {
		return err
	}
	session.SetOnStateChange(func(from, to node.SessionState) {
		log.Info("session state changed", "from", from.String(), "to", to.String())
	})
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := session.Close(); closeErr != nil {
			log.Error("error closing session", "error", closeErr)
		}
	}()

	check := func(ctx context.Context) error {
		return healthCheck(ctx, session, db, mqttClient, influxClient)
	}

	if registry != nil {
		server := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, registry, check)
		server.SetOnError(func(err error) {
			log.Error("metrics server error", "error", err)
		})
		if err := server.Start(); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("error stopping metrics server", "error", err)
			}
		}()
		log.Info("metrics server started", "addr", server.Addr(), "path", cfg.Metrics.Path)
	}

	if err := connect(ctx, session, log); err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown requested before node was ready")
			return nil
		}
		return err
	}
	log.Info("node ready",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", mqttClient.ClientID(),
		"node_id", session.NodeID(),
	)

	healthCtx, healthCancel := context.WithTimeout(ctx, 5*time.Second)
	err = check(healthCtx)
	healthCancel()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if unit, err := session.QueryUnitSystem(ctx); err != nil {
		log.Warn("controller unit system unknown", "error", err)
	} else {
		log.Info("controller unit system", "unit_system", unit.String())
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// connect retries Connect while the controller leaves id requests
// unanswered. Any other failure is returned.
func connect(ctx context.Context, session *node.Session, log *logging.Logger) error {
	for {
		err := session.Connect(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, node.ErrIdentityTimeout) {
			return fmt.Errorf("connecting node: %w", err)
		}

		log.Warn("controller did not assign a node id, retrying", "retry_in", connectRetryDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
}

// openStore returns the configured identity store and a function that
// releases it.
//
// Returns:
//   - identity.Store: File or SQLite backed store
//   - *database.DB: Underlying database, nil for the file backend
//   - func(): Releases the store
//   - error: Database open or migration failure
func openStore(ctx context.Context, cfg *config.Config) (identity.Store, *database.DB, func(), error) {
	switch cfg.Identity.Backend {
	case config.IdentityBackendSQLite:
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening database: %w", err)
		}
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		return identity.NewSQLiteStore(db), db, func() { _ = db.Close() }, nil
	default:
		return identity.NewFileStore(cfg.Identity.Path), nil, func() {}, nil
	}
}

// healthCheck verifies the node and its infrastructure are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - session: Node session, healthy only when Ready
//   - db: Identity database (nil with the file backend)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, session *node.Session, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if state := session.State(); state != node.StateReady {
		return fmt.Errorf("session: %s, not ready", state)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}

func topicsFromConfig(cfg *config.Config) mysensors.Topics {
	return mysensors.Topics{
		Incoming: cfg.Node.Topics.Incoming,
		Outgoing: cfg.Node.Topics.Outgoing,
	}
}

// registerSensors presents the sensors declared under node.sensors.
func registerSensors(session *node.Session, sensors []config.SensorConfig) error {
	for _, s := range sensors {
		sensorType, err := mysensors.ParseSensorType(s.Type)
		if err != nil {
			return fmt.Errorf("sensor %d: %w", s.ID, err)
		}
		valueType, err := mysensors.ParseValueType(s.Value)
		if err != nil {
			return fmt.Errorf("sensor %d: %w", s.ID, err)
		}
		if err := session.RegisterSensor(s.ID, sensorType, valueType); err != nil {
			return fmt.Errorf("sensor %d: %w", s.ID, err)
		}
	}
	return nil
}

// getConfigPath returns the config file path.
// Priority: --config flag > MYSNODE_CONFIG env var > default path
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("MYSNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
