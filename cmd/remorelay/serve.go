package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/remo-relay/internal/api"
	"github.com/nerrad567/remo-relay/internal/audit"
	"github.com/nerrad567/remo-relay/internal/infrastructure/config"
	"github.com/nerrad567/remo-relay/internal/infrastructure/database"
	"github.com/nerrad567/remo-relay/internal/infrastructure/influxdb"
	"github.com/nerrad567/remo-relay/internal/infrastructure/logging"
	"github.com/nerrad567/remo-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/remo-relay/internal/metrics"
	"github.com/nerrad567/remo-relay/internal/remo"
	irsignal "github.com/nerrad567/remo-relay/internal/signal"
)

const defaultPort = 8001

type serveOptions struct {
	*rootOptions
	port    int
	device  string
	started chan<- string // receives the bound address; tests only
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.API.Port = opts.port
			}
			if opts.device != "" {
				cfg.Device.Address = opts.device
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cfg, opts.started)
		},
	}
	cmd.Flags().IntVarP(&opts.port, "port", "p", defaultPort, "HTTP listen port")
	cmd.Flags().StringVar(&opts.device, "device", "", "Nature Remo address (overrides config and NATURE_IP)")
	return cmd
}

// runServe wires the relay together and blocks until ctx is cancelled.
// Deferred closes run in reverse order: API, InfluxDB, MQTT, audit, database.
func runServe(ctx context.Context, cfg *config.Config, started chan<- string) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting remorelay",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	relay := remo.New(cfg.Device.Address,
		remo.WithHTTPClient(&http.Client{Transport: remo.DirectTransport()}),
		remo.WithTimeout(cfg.GetDeviceTimeout()),
	)
	svc := irsignal.NewService(irsignal.NewSQLiteRepository(db.DB), relay)
	svc.SetLogger(log)
	if relay.Configured() {
		log.Info("device relay configured", "address", cfg.Device.Address)
	} else {
		log.Warn("no device address configured; send and receive will return 503")
	}

	// The audit writer outlives the API server so late entries are drained
	// before the database closes.
	auditWriter := audit.NewWriter(audit.NewSQLiteRepository(db.DB), log, audit.DefaultQueueSize)
	svc.AddSendListener(auditWriter)
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		auditWriter.Run(auditCtx)
		close(auditDone)
	}()
	defer func() {
		stopAudit()
		<-auditDone
	}()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		reg.SetRelayConfigured(svc.RelayConfigured())
		svc.AddSendListener(reg)
	}

	mqttClient, bridge, err := connectMQTT(ctx, cfg.MQTT, svc, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			bridge.stop()
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	}

	influxClient, err := connectInfluxDB(ctx, cfg.InfluxDB, svc, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	srv, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Signals: svc,
		Store:   db,
		Metrics: reg,
		Audit:   auditWriter,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if started != nil {
		started <- srv.Addr()
	}

	log.Info("initialisation complete, waiting for shutdown signal", "address", srv.Addr())
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// connectMQTT starts the MQTT bridge when enabled. Client and bridge are
// nil when MQTT is switched off.
func connectMQTT(ctx context.Context, cfg config.MQTTConfig, svc *irsignal.Service, log *logging.Logger) (*mqtt.Client, *mqttBridge, error) {
	client, err := mqtt.Connect(cfg)
	if errors.Is(err, mqtt.ErrDisabled) {
		log.Info("MQTT disabled")
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT connected", "session", client.Sessions()) })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

	bridge := newMQTTBridge(ctx, client, svc, log)
	if err := bridge.start(); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info("MQTT bridge started",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
		"commands", mqtt.Topics{}.AllSendCommands(),
	)
	return client, bridge, nil
}

// connectInfluxDB records send history when enabled. It returns a nil
// client when InfluxDB is switched off.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, svc *irsignal.Service, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	svc.AddSendListener(influxListener(client))
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

// influxListener turns send events into ir_sends points.
func influxListener(client *influxdb.Client) irsignal.SendListener {
	return irsignal.SendListenerFunc(func(ev irsignal.SendEvent) {
		client.WriteSend(sendRecord(ev))
	})
}

func sendRecord(ev irsignal.SendEvent) influxdb.SendRecord {
	rec := influxdb.SendRecord{
		Name:      ev.Name,
		OK:        ev.OK(),
		Duration:  ev.Duration,
		Frequency: ev.Signal.Frequency,
		Pulses:    len(ev.Signal.Pulses),
		At:        ev.At,
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	return rec
}

// healthCheck verifies every connected backend before the API opens.
// Nil clients are skipped.
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
