package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	alertsqlite "coldchain-bridge/internal/alerts/infrastructure/sqlite"
	"coldchain-bridge/internal/broker"
	devices "coldchain-bridge/internal/devices/domain"
	devicesqlite "coldchain-bridge/internal/devices/infrastructure/sqlite"
	"coldchain-bridge/internal/egress"
	"coldchain-bridge/internal/health"
	"coldchain-bridge/internal/ingress"
	"coldchain-bridge/internal/observability/metrics"
	"coldchain-bridge/internal/replay"
	"coldchain-bridge/internal/report"
	"coldchain-bridge/internal/store"
	telemetrysqlite "coldchain-bridge/internal/telemetry/infrastructure/sqlite"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Fatalf("store open error: %v", err)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		logger.Fatalf("store migrate error: %v", err)
	}

	readingRepo := telemetrysqlite.NewReadingRepository(db)
	alertRepo := alertsqlite.NewAlertRepository(db)
	configRepo := devicesqlite.NewConfigRepository(db)

	registry := devices.NewRegistry()
	stored, err := configRepo.Load(ctx)
	if err != nil {
		logger.Fatalf("device config load error: %v", err)
	}
	if len(stored) == 0 && len(cfg.Devices) > 0 {
		// First boot: seed the store from the config file. After that the
		// store copy wins; update_config commands keep it current.
		registry.Replace(cfg.Devices)
		if err := configRepo.Save(ctx, registry.Snapshot()); err != nil {
			logger.Printf("device config seed error: %v", err)
		}
	} else {
		registry.Replace(stored)
	}
	logger.Printf("device configs loaded: %d devices", registry.Len())

	tokenSource, err := egress.NewTokenSource(cfg.RestaurantID, []byte(cfg.CloudTokenSecret))
	if err != nil {
		logger.Fatalf("token source error: %v", err)
	}
	dispatcher, err := egress.NewCommandDispatcher(registry, configRepo, logger)
	if err != nil {
		logger.Fatalf("command dispatcher error: %v", err)
	}
	connector, err := egress.NewConnector(cfg.RestaurantID, broker.Options{
		URL:                 cfg.CloudBrokerURL,
		ClientID:            "bridge-" + cfg.RestaurantID,
		CredentialsProvider: tokenSource.Credentials,
	}, dispatcher, logger, egress.WithRetryInterval(cfg.CloudRetryInterval))
	if err != nil {
		logger.Fatalf("cloud connector error: %v", err)
	}

	ring, err := replay.NewRing(cfg.BufferCapacity)
	if err != nil {
		logger.Fatalf("replay ring error: %v", err)
	}
	coordinator, err := replay.NewCoordinator(cfg.RestaurantID, ring, connector, logger,
		replay.WithSweepInterval(cfg.SweepInterval),
		replay.WithItemDelay(cfg.ItemDelay),
	)
	if err != nil {
		logger.Fatalf("replay coordinator error: %v", err)
	}
	rowSweeper, err := replay.NewRowSweeper(cfg.RestaurantID, readingRepo, alertRepo, connector, logger,
		replay.WithRowSweepInterval(cfg.RowSweepInterval),
	)
	if err != nil {
		logger.Fatalf("row sweeper error: %v", err)
	}

	var listener *ingress.Listener
	localClient, err := broker.NewClient(broker.Options{
		URL:           cfg.LocalBrokerURL,
		ClientID:      "bridge-" + cfg.RestaurantID + "-local",
		AutoReconnect: true,
		OnConnect: func(c *broker.Client) {
			if listener == nil {
				return
			}
			err := c.Subscribe(ctx, cfg.TelemetryFilter, func(topic string, payload []byte) {
				listener.HandleMessage(ctx, topic, payload)
			})
			if err != nil {
				logger.Printf("local telemetry subscribe error: %v", err)
				return
			}
			listener.HandleConnected()
		},
		OnConnectionLost: func(err error) {
			if listener != nil {
				listener.HandleDisconnected(err)
			}
		},
		OnReconnecting: func() {
			if listener != nil {
				listener.HandleConnecting()
			}
		},
	})
	if err != nil {
		logger.Fatalf("local broker client error: %v", err)
	}
	listener, err = ingress.NewListener(cfg.RestaurantID, readingRepo, alertRepo, registry, localClient, coordinator, logger)
	if err != nil {
		logger.Fatalf("ingress listener error: %v", err)
	}

	// A local broker that cannot be reached at boot is not survivable:
	// terminate and let the supervisor restart the process.
	listener.HandleConnecting()
	if err := localClient.Connect(ctx); err != nil {
		logger.Fatalf("local broker connect error: %v", err)
	}
	defer localClient.Disconnect(250 * time.Millisecond)

	reporter, err := health.NewReporter(cfg.RestaurantID, localClient, connector, coordinator, logger,
		health.WithInterval(cfg.HealthInterval),
	)
	if err != nil {
		logger.Fatalf("health reporter error: %v", err)
	}

	go connector.Run(ctx)
	go coordinator.Run(ctx)
	go rowSweeper.Run(ctx)
	go reporter.Run(ctx)

	if cfg.ReportStorageRoot != "" {
		builder, err := report.NewBuilder(cfg.RestaurantID, readingRepo, registry)
		if err != nil {
			logger.Fatalf("report builder error: %v", err)
		}
		scheduler := report.NewScheduler(builder, cfg.ReportStorageRoot, cfg.ReportDailyAt, logger)
		go scheduler.Start(ctx)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: cfg.OpsAddr, Handler: mux}
	go func() {
		logger.Printf("ops http listening on %s", cfg.OpsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("ops http error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type config struct {
	RestaurantID       string
	LocalBrokerURL     string
	CloudBrokerURL     string
	CloudTokenSecret   string
	DBPath             string
	TelemetryFilter    string
	BufferCapacity     int
	CloudRetryInterval time.Duration
	SweepInterval      time.Duration
	RowSweepInterval   time.Duration
	ItemDelay          time.Duration
	HealthInterval     time.Duration
	OpsAddr            string
	ReportStorageRoot  string
	ReportDailyAt      string
	Devices            map[string]devices.Config
}

// fileConfig is the optional YAML overlay for tunables and the initial
// device configuration.
type fileConfig struct {
	BufferCapacity     int                       `yaml:"buffer_capacity"`
	CloudRetryInterval time.Duration             `yaml:"cloud_retry_interval"`
	SweepInterval      time.Duration             `yaml:"sweep_interval"`
	RowSweepInterval   time.Duration             `yaml:"row_sweep_interval"`
	ItemDelay          time.Duration             `yaml:"item_delay"`
	HealthInterval     time.Duration             `yaml:"health_interval"`
	ReportStorageRoot  string                    `yaml:"report_storage_root"`
	ReportDailyAt      string                    `yaml:"report_daily_at"`
	Devices            map[string]devices.Config `yaml:"devices"`
}

func loadConfig() config {
	cfg := config{
		RestaurantID:       getenvDefault("RESTAURANT_ID", ""),
		LocalBrokerURL:     getenvDefault("LOCAL_BROKER_URL", "tcp://localhost:1883"),
		CloudBrokerURL:     getenvDefault("CLOUD_BROKER_URL", ""),
		CloudTokenSecret:   getenvDefault("CLOUD_TOKEN_SECRET", ""),
		DBPath:             getenvDefault("BRIDGE_DB_PATH", "bridge.db"),
		TelemetryFilter:    getenvDefault("LOCAL_TELEMETRY_FILTER", broker.DefaultTelemetryFilter),
		BufferCapacity:     getenvIntDefault("BUFFER_CAPACITY", 1000),
		CloudRetryInterval: getenvDuration("CLOUD_RETRY_INTERVAL", 30*time.Second),
		SweepInterval:      getenvDuration("SWEEP_INTERVAL", 10*time.Second),
		RowSweepInterval:   getenvDuration("ROW_SWEEP_INTERVAL", 30*time.Second),
		ItemDelay:          getenvDuration("REPLAY_ITEM_DELAY", 100*time.Millisecond),
		HealthInterval:     getenvDuration("HEALTH_INTERVAL", 60*time.Second),
		OpsAddr:            getenvDefault("OPS_ADDR", ":9090"),
		ReportStorageRoot:  getenvDefault("REPORT_STORAGE_ROOT", ""),
		ReportDailyAt:      getenvDefault("REPORT_DAILY_AT", "02:00"),
	}

	if path := os.Getenv("BRIDGE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("BRIDGE_CONFIG read error: %v", err)
		}
		var overlay fileConfig
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			log.Fatalf("BRIDGE_CONFIG parse error: %v", err)
		}
		if overlay.BufferCapacity > 0 {
			cfg.BufferCapacity = overlay.BufferCapacity
		}
		if overlay.CloudRetryInterval > 0 {
			cfg.CloudRetryInterval = overlay.CloudRetryInterval
		}
		if overlay.SweepInterval > 0 {
			cfg.SweepInterval = overlay.SweepInterval
		}
		if overlay.RowSweepInterval > 0 {
			cfg.RowSweepInterval = overlay.RowSweepInterval
		}
		if overlay.ItemDelay > 0 {
			cfg.ItemDelay = overlay.ItemDelay
		}
		if overlay.HealthInterval > 0 {
			cfg.HealthInterval = overlay.HealthInterval
		}
		if overlay.ReportStorageRoot != "" {
			cfg.ReportStorageRoot = overlay.ReportStorageRoot
		}
		if overlay.ReportDailyAt != "" {
			cfg.ReportDailyAt = overlay.ReportDailyAt
		}
		cfg.Devices = overlay.Devices
	}

	if cfg.RestaurantID == "" {
		log.Fatal("RESTAURANT_ID is required")
	}
	if cfg.CloudBrokerURL == "" {
		log.Fatal("CLOUD_BROKER_URL is required")
	}
	if cfg.CloudTokenSecret == "" {
		log.Fatal("CLOUD_TOKEN_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
