package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/api"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/audit"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/dedup"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/geoserver"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/helpers"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/jobstore"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/raster"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/status"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/syncutil"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yml"
	}

	conf, err := config.NewConfig(configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	setupLogging(conf)

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	// Postgres is the system of record for jobs; refuse to start without it.
	pgxPool, err := helpers.InitPostgres(ctx, conf)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer pgxPool.Close()

	jobs, err := jobstore.NewStore(ctx, pgxPool)
	if err != nil {
		log.WithError(err).Fatal("Failed to prepare job store")
	}

	// Kafka, Mongo and Redis are side channels; run degraded when absent.
	producer, err := helpers.InitKafkaProducer(conf)
	if err != nil {
		log.WithError(err).Warn("Kafka unavailable, status events disabled")
	}
	publisher := status.NewPublisher(producer, conf)
	defer publisher.Close()

	mongoDB, err := helpers.InitMongo(ctx, conf)
	if err != nil {
		log.WithError(err).Warn("Mongo unavailable, auditing disabled")
	}
	audit.Init(mongoDB)

	rdb, err := helpers.InitRedis(ctx, conf)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, dedup locks disabled")
		rdb = nil
	}
	locks := dedup.NewLocker(rdb, time.Duration(conf.Server.WriteTimeoutSeconds)*time.Second)

	go audit.Listen(conf.PostgresUrl())
	if conf.Audit.CdcEnabled {
		go audit.TailJobChanges(conf.PostgresUrl())
	}

	service := api.New(
		geoserver.NewClient(conf),
		publisher,
		jobs,
		locks,
		raster.NewNDVIProcessor(conf),
		raster.NewNDWIProcessor(conf),
		conf.Server.MaxWorkers,
	)

	server := &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      service.Router(),
		ReadTimeout:  time.Duration(conf.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeoutSeconds) * time.Second,
	}

	go func() {
		log.WithFields(log.Fields{
			"addr": server.Addr,
		}).Info("Server listening")

		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("Server closed")
		} else if err != nil {
			log.WithError(err).Error("Error listening")
		}
		cancelCtx()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		log.WithFields(log.Fields{
			"signal": sig.String(),
		}).Info("Shutting down")
	case <-ctx.Done():
	}

	syncutil.SignalServiceShutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Shutdown error")
	}
}

func setupLogging(conf *config.Config) {
	level, err := log.ParseLevel(conf.Logging.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if conf.Logging.Dir == "" {
		return
	}

	if err := os.MkdirAll(conf.Logging.Dir, 0o755); err != nil {
		log.WithError(err).Warn("Failed to create logs directory")
		return
	}

	logFile, err := os.OpenFile(filepath.Join(conf.Logging.Dir, "app.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.WithError(err).Warn("Failed to open log file")
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))
}
