package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pilotfs/uploadgateway/internal/logger"
	"github.com/pilotfs/uploadgateway/internal/telemetry"
	"github.com/pilotfs/uploadgateway/pkg/activity"
	"github.com/pilotfs/uploadgateway/pkg/api"
	"github.com/pilotfs/uploadgateway/pkg/catalog"
	"github.com/pilotfs/uploadgateway/pkg/config"
	"github.com/pilotfs/uploadgateway/pkg/dataopsclient"
	"github.com/pilotfs/uploadgateway/pkg/finalizer"
	"github.com/pilotfs/uploadgateway/pkg/folder"
	"github.com/pilotfs/uploadgateway/pkg/foldercache"
	"github.com/pilotfs/uploadgateway/pkg/jobstore"
	"github.com/pilotfs/uploadgateway/pkg/lockclient"
	"github.com/pilotfs/uploadgateway/pkg/metrics"
	"github.com/pilotfs/uploadgateway/pkg/objectstore"
	"github.com/pilotfs/uploadgateway/pkg/partledger"
	"github.com/pilotfs/uploadgateway/pkg/projectclient"
	"github.com/pilotfs/uploadgateway/pkg/upload"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the upload gateway server",
	Long: `Start the upload gateway's HTTP server: the pre-upload, chunk-upload,
combine, and status endpoints, plus the background finalizer pool.

Examples:
  uploadgw start
  uploadgw start --config /etc/uploadgw/config.yaml
  UPLOADGW_SERVER_PORT=9000 uploadgw start --config /etc/uploadgw/config.yaml

An UPLOADGW_* variable overrides only a key the config file sets.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: buildVersion,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		Insecure:       true,
		SampleRate:     cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	_, coordinator, fz, metricsServer, err := buildGateway(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build upload gateway: %w", err)
	}

	fz.Run(ctx)
	defer fz.Stop(15 * time.Second)

	shutdownTimeout, err := time.ParseDuration(cfg.Server.ShutdownTimeout)
	if err != nil {
		shutdownTimeout = 15 * time.Second
	}

	apiServer := api.NewServer(api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: shutdownTimeout,
	}, coordinator, api.BuildInfo{Name: "uploadgw", Version: buildVersion})

	serverDone := make(chan error, 1)
	go func() { serverDone <- apiServer.Start(ctx) }()

	var metricsDone chan error
	if metricsServer != nil {
		metricsDone = make(chan error, 1)
		go func() {
			logger.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				metricsDone <- err
				return
			}
			metricsDone <- nil
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("upload gateway running", "addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if metricsServer != nil {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsServer.Shutdown(shutdownCtx)
			shutdownCancel()
		}
		if err := <-serverDone; err != nil {
			return fmt.Errorf("api server shutdown error: %w", err)
		}
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
	}

	logger.Info("upload gateway stopped")
	return nil
}

// buildGateway constructs every collaborator up front and wires them into
// a Coordinator and Finalizer, failing fast on the first construction
// error.
func buildGateway(ctx context.Context, cfg *config.Config) (*prometheus.Registry, *upload.Coordinator, *finalizer.Finalizer, *http.Server, error) {
	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	jobs, err := jobstore.Open(ctx, redisAddr, cfg.Redis.User, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("open job store: %w", err)
	}
	parts := partledger.New(jobs.RedisClient())

	locks := lockclient.New(cfg.Services.LockServiceURL)
	projects := projectclient.New(cfg.Services.ProjectServiceURL)
	catalogClient := catalog.New(cfg.Services.MetadataServiceURL)
	dataops := dataopsclient.New(cfg.Services.DataOpsServiceURL)

	objects, err := objectstore.NewFromConfig(ctx, objectstore.Config{
		Endpoint:        cfg.Object.Endpoint,
		Region:          cfg.Object.Region,
		AccessKeyID:     cfg.Object.AccessKeyID,
		SecretAccessKey: cfg.Object.SecretAccessKey,
		UseSSL:          cfg.Object.UseSSL,
		ForcePathStyle:  true,
	})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build object store client: %w", err)
	}

	zone := upload.ZoneGreenroom
	if cfg.Zone.Namespace != "greenroom" {
		zone = upload.ZoneCore
	}

	cache := foldercache.New()
	materializer := folder.New(catalogClient, locks, cache, int(zone))

	var publisher *activity.Publisher
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Brokers[0] != "" {
		schema, err := activity.LoadSchema(cfg.Kafka.SchemaPath)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("load activity schema: %w", err)
		}
		publisher, err = activity.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, schema)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("build kafka publisher: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	var fz *finalizer.Finalizer
	metricsClient := metrics.New(registry, func() float64 {
		if fz == nil {
			return 0
		}
		return float64(fz.Pending())
	})

	materializer = materializer.WithMetrics(metricsClient)

	fz = finalizer.New(finalizer.Deps{
		Jobs:      jobs,
		Parts:     parts,
		Locks:     locks,
		Objects:   objects,
		Catalog:   catalogClient,
		Folders:   materializer,
		DataOps:   dataops,
		Activity:  publisher,
		Metrics:   metricsClient,
		TempRoot:  cfg.TempRoot,
		Namespace: cfg.Zone.Namespace,
	}, finalizer.Config{Workers: cfg.Finalizer.Workers, QueueSize: cfg.Finalizer.QueueSize})

	coordinator := &upload.Coordinator{
		Jobs:      jobs,
		Parts:     parts,
		Locks:     locks,
		Objects:   objects,
		Catalog:   catalogClient,
		Projects:  projects,
		Finalizer: fz,
		Metrics:   metricsClient,
		Zone:      zone,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
	}

	return registry, coordinator, fz, metricsServer, nil
}
