package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/powertag-monitor/internal/alert"
	"github.com/nerrad567/powertag-monitor/internal/api"
	"github.com/nerrad567/powertag-monitor/internal/bridges/modbus"
	"github.com/nerrad567/powertag-monitor/internal/dashboard"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/config"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/database"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/influxdb"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/logging"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/mqtt"
	"github.com/nerrad567/powertag-monitor/internal/infrastructure/tsdb"
	"github.com/nerrad567/powertag-monitor/internal/notify"
	"github.com/nerrad567/powertag-monitor/internal/powertag"
	"github.com/nerrad567/powertag-monitor/internal/register"
	"github.com/nerrad567/powertag-monitor/internal/sampler"
	"github.com/nerrad567/powertag-monitor/internal/sink"
	"github.com/nerrad567/powertag-monitor/internal/snapshot"
	"github.com/nerrad567/powertag-monitor/migrations"
)

const (
	// shutdownTimeout bounds draining queued notifications on exit.
	shutdownTimeout = 15 * time.Second

	// retentionInterval is how often old history is pruned.
	retentionInterval = time.Hour
)

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting PowerTag monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	schema, err := register.SchemaFromConfig(cfg.Registers)
	if err != nil {
		return fmt.Errorf("building register schema: %w", err)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
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
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Open history database (optional)
	var db *database.DB
	var history *sink.SQLiteSink
	if cfg.Storage.SQLite.Enabled {
		db, err = database.Open(ctx, database.ConfigFrom(cfg.Storage.SQLite))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		history = sink.NewSQLiteSink(db)
		log.Info("history database ready", "path", db.Path())
	}

	// Connect to time-series backends (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	var tsdbClient *tsdb.Client
	if cfg.TSDB.Enabled {
		tsdbClient, err = tsdb.Connect(ctx, cfg.TSDB)
		if err != nil {
			if influxClient != nil {
				influxClient.Close() //nolint:errcheck // Best effort cleanup on error path
			}
			return fmt.Errorf("connecting to TSDB: %w", err)
		}
		tsdbClient.SetOnError(func(err error) {
			log.Error("TSDB write error", "error", err)
		})
		log.Info("TSDB connected", "url", cfg.TSDB.URL)
	}

	// The sinks own the time-series clients from here on.
	rowSink, err := buildSink(cfg, schema, history, influxClient, tsdbClient, mqttClient, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rowSink.Close(); closeErr != nil {
			log.Error("error closing sinks", "error", closeErr)
		}
	}()
	log.Info("row sinks ready", "sinks", rowSink.Len())

	if err := healthCheck(ctx, db, mqttClient, influxClient, tsdbClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Notifications
	var natsNotifier *notify.NATSNotifier
	if cfg.NATS.Enabled {
		natsNotifier, err = notify.ConnectNATS(cfg.NATS)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer func() {
			if closeErr := natsNotifier.Close(); closeErr != nil {
				log.Error("error closing NATS", "error", closeErr)
			}
		}()
		log.Info("NATS connected", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	dispatcher := notify.NewDispatcher(log, notify.DispatcherOptions{
		QueueSize: cfg.Notify.QueueSize,
		Timeout:   time.Duration(cfg.Notify.Timeout) * time.Second,
	}, buildNotifiers(cfg, history, influxClient, mqttClient, natsNotifier)...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if closeErr := dispatcher.Close(closeCtx); closeErr != nil {
			log.Warn("notifications not fully delivered", "error", closeErr)
		}
	}()

	metrics := sampler.NewMetrics()
	metrics.RegisterDispatcher(dispatcher)

	engineOpts := alert.OptionsFromConfig(cfg)
	tags := powertag.TagsFromConfig(cfg.PowerTags)
	modbusOpts := modbus.OptionsFromConfig(cfg.Modbus)

	sessions := make([]sampler.Session, 0, len(cfg.Modbus.Gateways))
	for _, gw := range powertag.GatewaysFromConfig(cfg.Modbus) {
		client := modbus.NewClient(gw, modbusOpts)
		client.SetLogger(log)
		sessions = append(sessions, client)
	}

	store := snapshot.New()
	sched, err := sampler.NewScheduler(sampler.SchedulerOptions{
		Sessions:     sessions,
		PowerTags:    tags,
		Schema:       schema,
		Retry:        register.RetryPolicy{Attempts: cfg.Poller.Retries, Delay: cfg.GetRetryDelay()},
		PollInterval: cfg.GetPollInterval(),
		TextRefresh:  cfg.GetAsciiRefreshInterval(),
		Engine:       alert.NewEngine(engineOpts),
		Store:        store,
		Sink:         rowSink,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	if err := sched.ConnectAll(ctx); err != nil {
		sched.Dispatch(alert.ErrorEvent(err))
		return fmt.Errorf("connecting gateways: %w", err)
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log,
			Snapshots: store,
			State:     sched,
			Metrics:   metrics.Handler(),
			Version:   version,
		}
		if history != nil {
			deps.History = history
		}
		if cfg.API.Dashboard.Enabled {
			deps.Dashboard = dashboard.Handler(cfg.API.Dashboard.Dir)
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			sched.Close() //nolint:errcheck // Best effort cleanup on error path
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			sched.Close() //nolint:errcheck // Best effort cleanup on error path
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		sched.OnPublish(srv.PublishSnapshot)
		sched.OnAlert(srv.PublishAlert)
	}

	if history != nil && cfg.Storage.SQLite.RetentionDays > 0 {
		retention := time.Duration(cfg.Storage.SQLite.RetentionDays) * 24 * time.Hour
		go runRetention(ctx, history, retention, log)
	}

	sched.Dispatch(alert.StartupEvent(engineOpts.Thresholds, len(tags)))
	log.Info("initialisation complete", "powertags", len(tags), "gateways", len(sessions))

	if runErr := sched.Run(ctx); runErr != nil {
		sched.Dispatch(alert.ErrorEvent(runErr))
		return fmt.Errorf("sampling: %w", runErr)
	}

	log.Info("shutdown signal received, cleaning up")
	sched.Dispatch(alert.ShutdownEvent())

	// Deferred Close() calls will run in reverse order:
	// 1. API server (if enabled)
	// 2. Notification dispatcher (drains the queue)
	// 3. NATS (if enabled)
	// 4. Row sinks, flushing the time-series clients
	// 5. Database (if enabled)
	// 6. MQTT (if enabled)
	log.Info("PowerTag monitor stopped")
	return nil
}

// buildSink assembles the enabled row sinks. Nil clients are skipped.
func buildSink(
	cfg *config.Config,
	schema register.Schema,
	history *sink.SQLiteSink,
	influxClient *influxdb.Client,
	tsdbClient *tsdb.Client,
	mqttClient *mqtt.Client,
	log *logging.Logger,
) (*sink.Multi, error) {
	var sinks []sink.Sink

	if cfg.Storage.CSV.Enabled {
		csvSink, err := sink.OpenCSV(cfg.Storage.CSV.Path, schema.Keys())
		if err != nil {
			if influxClient != nil {
				influxClient.Close() //nolint:errcheck // Best effort cleanup on error path
			}
			if tsdbClient != nil {
				tsdbClient.Close() //nolint:errcheck // Best effort cleanup on error path
			}
			return nil, fmt.Errorf("opening CSV log: %w", err)
		}
		log.Info("CSV log open", "path", csvSink.Path())
		sinks = append(sinks, csvSink)
	}
	if history != nil {
		sinks = append(sinks, history)
	}
	if influxClient != nil {
		sinks = append(sinks, sink.NewInfluxSink(influxClient))
	}
	if tsdbClient != nil {
		sinks = append(sinks, sink.NewTSDBSink(tsdbClient))
	}
	if mqttClient != nil {
		sinks = append(sinks, sink.NewMQTTSink(mqttClient, func(err error) {
			log.Warn("MQTT state publish failed", "error", err)
		}))
	}

	return sink.NewMulti(sinks...), nil
}

// buildNotifiers returns the enabled alert channels. The SQLite alert log
// and InfluxDB annotations are treated as channels too.
func buildNotifiers(cfg *config.Config, history *sink.SQLiteSink, influxClient *influxdb.Client, mqttClient *mqtt.Client, natsNotifier *notify.NATSNotifier) []notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(
			cfg.Notify.WebhookURL,
			cfg.Notify.Username,
			time.Duration(cfg.Notify.Timeout)*time.Second,
		))
	}
	if mqttClient != nil {
		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient))
	}
	if natsNotifier != nil {
		notifiers = append(notifiers, natsNotifier)
	}
	if history != nil {
		notifiers = append(notifiers, notify.Func("alert-log", history.RecordAlert))
	}
	if influxClient != nil {
		notifiers = append(notifiers, notify.Func("influxdb", func(_ context.Context, evt alert.Event) error {
			influxClient.WriteAlert(evt.Tag, evt.Kind, evt.Severity, evt.Description, evt.Timestamp)
			return nil
		}))
	}

	return notifiers
}

// runRetention prunes history older than retention once at start and then
// every retentionInterval until ctx is cancelled.
func runRetention(ctx context.Context, history *sink.SQLiteSink, retention time.Duration, log *logging.Logger) {
	prune := func() {
		n, err := history.Prune(ctx, retention)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warn("history prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			log.Info("history pruned", "rows", n, "retention", retention)
		}
	}

	prune()
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - tsdbClient: TSDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, tsdbClient *tsdb.Client) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
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
	if tsdbClient != nil {
		if err := tsdbClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("tsdb: %w", err)
		}
	}

	// Gateway sessions are checked by ConnectAll, which opens each one.
	return nil
}
