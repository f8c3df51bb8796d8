// Package api exposes the raster processing endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/audit"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/geoserver"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/models"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/raster"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	ServiceName    = "gdal-image-service"
	ServiceVersion = "1.0.0"
)

var layerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+:[a-zA-Z0-9_-]+$`)

// GeoServer is the subset of the REST client the handlers need.
type GeoServer interface {
	GetLayerFilePath(ctx context.Context, workspace, layerName string) (string, error)
	LayerExists(ctx context.Context, workspace, layerName string) bool
	PublishLayer(ctx context.Context, workspace, layerName, filePath string) error
}

// StatusPublisher reports terminal job states downstream.
type StatusPublisher interface {
	PublishSuccess(workspace, storeName, layerType, originalLayer, filePath string)
	PublishFailure(workspace, storeName, layerType, originalLayer, errorMessage string)
}

// JobStore tracks job rows. Bookkeeping failures degrade to log lines; they
// never fail a request that can still do useful work.
type JobStore interface {
	Create(ctx context.Context, workspace, layer, layerType string) (*models.Job, error)
	Finish(ctx context.Context, job *models.Job, jobStatus, filePath, errorMessage string) error
}

// Locker prevents two requests from producing the same derived layer at once.
type Locker interface {
	Acquire(ctx context.Context, workspace, layerName string) bool
	Release(ctx context.Context, workspace, layerName string)
}

type API struct {
	geoserver GeoServer
	publisher StatusPublisher
	jobs      JobStore
	locks     Locker
	ndvi      raster.Processor
	ndwi      raster.Processor
	slots     chan struct{}
}

func New(gs GeoServer, publisher StatusPublisher, jobs JobStore, locks Locker, ndvi, ndwi raster.Processor, maxWorkers int) *API {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &API{
		geoserver: gs,
		publisher: publisher,
		jobs:      jobs,
		locks:     locks,
		ndvi:      ndvi,
		ndwi:      ndwi,
		slots:     make(chan struct{}, maxWorkers),
	}
}

func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(audit.Notify)
	r.HandleFunc("/process-ndvi/", a.process(a.ndvi)).Methods(http.MethodPost)
	r.HandleFunc("/process-ndwi/", a.process(a.ndwi)).Methods(http.MethodPost)
	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	return r
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": ServiceName, "version": ServiceVersion, "status": "ok"})
}

func (a *API) process(processor raster.Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		layerType := processor.LayerType()

		var req models.ProcessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if !layerNamePattern.MatchString(req.LayerName) {
			writeError(w, http.StatusBadRequest, "Invalid layer format. Expected workspace:layer_name")
			return
		}

		parts := strings.SplitN(req.LayerName, ":", 2)
		workspace, layer := parts[0], parts[1]
		derivedLayer := layer + processor.Suffix()

		// cap concurrent raster jobs at the configured worker count
		select {
		case a.slots <- struct{}{}:
			defer func() { <-a.slots }()
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "Processing capacity exhausted")
			return
		}

		if !a.locks.Acquire(ctx, workspace, derivedLayer) {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("%s processing for %s:%s already in progress", layerType, workspace, derivedLayer))
			return
		}
		defer a.locks.Release(ctx, workspace, derivedLayer)

		filePath, err := a.geoserver.GetLayerFilePath(ctx, workspace, layer)
		if err != nil {
			if errors.Is(err, geoserver.ErrStoreNotFound) {
				writeError(w, http.StatusNotFound,
					fmt.Sprintf("Layer %s not found in GeoServer", req.LayerName))
				return
			}
			log.WithError(err).Error("GeoServer lookup failed")
			writeError(w, http.StatusInternalServerError, "Internal processing error")
			return
		}

		if a.geoserver.LayerExists(ctx, workspace, derivedLayer) {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("%s layer %s:%s already exists", layerType, workspace, derivedLayer))
			return
		}

		job := a.createJob(ctx, workspace, layer, layerType)

		outputPath, err := processor.Process(filePath, layer)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"layer": req.LayerName,
				"type":  layerType,
			}).Error("Raster processing failed")
			a.finishFailed(ctx, job, workspace, derivedLayer, layerType, layer, err)
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("%s processing failed", layerType))
			return
		}

		if err := a.geoserver.PublishLayer(ctx, workspace, derivedLayer, outputPath); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"layer": req.LayerName,
				"type":  layerType,
			}).Error("Failed to publish layer to GeoServer")
			raster.CleanupFile(outputPath)
			a.finishFailed(ctx, job, workspace, derivedLayer, layerType, layer, err)
			writeError(w, http.StatusInternalServerError,
				fmt.Sprintf("Failed to publish %s layer to GeoServer", layerType))
			return
		}

		a.publisher.PublishSuccess(workspace, derivedLayer, layerType, layer, outputPath)
		a.finishJob(ctx, job, models.JobStatusSuccess, outputPath, "")

		writeJSON(w, http.StatusCreated, models.ProcessResponse{
			Message:   fmt.Sprintf("%s layer %s successfully created", layerType, derivedLayer),
			LayerName: workspace + ":" + derivedLayer,
			FilePath:  outputPath,
		})
	}
}

func (a *API) createJob(ctx context.Context, workspace, layer, layerType string) *models.Job {
	if a.jobs == nil {
		return nil
	}
	job, err := a.jobs.Create(ctx, workspace, layer, layerType)
	if err != nil {
		log.WithError(err).Warn("Failed to record job")
		return nil
	}
	return job
}

func (a *API) finishFailed(ctx context.Context, job *models.Job, workspace, derivedLayer, layerType, originalLayer string, cause error) {
	a.publisher.PublishFailure(workspace, derivedLayer, layerType, originalLayer, cause.Error())
	a.finishJob(ctx, job, models.JobStatusFailed, "", cause.Error())
}

func (a *API) finishJob(ctx context.Context, job *models.Job, jobStatus, filePath, errorMessage string) {
	if a.jobs == nil || job == nil {
		return
	}
	if err := a.jobs.Finish(ctx, job, jobStatus, filePath, errorMessage); err != nil {
		log.WithError(err).Warn("Failed to update job")
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, models.ErrorResponse{Error: message})
}
