// Package geoserver talks to the GeoServer REST API to resolve coverage store
// file paths and to publish processed GeoTIFF layers.
package geoserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/rotisserie/eris"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"
)

var (
	ErrStoreNotFound = eris.New("coverage store not found")
	ErrLayerExists   = eris.New("layer already exists")
)

type coverageStoreResponse struct {
	CoverageStore struct {
		Name string `json:"name"`
		Url  string `json:"url"`
	} `json:"coverageStore"`
}

type Client struct {
	baseUrl  string
	restUrl  string
	username string
	password string
	http     *http.Client
}

func NewClient(conf *config.Config) *Client {
	return &Client{
		baseUrl:  conf.GeoServer.BaseUrl,
		restUrl:  conf.GeoServer.BaseUrl + "/rest",
		username: conf.GeoServer.Username,
		password: conf.GeoServer.Password,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

// GetLayerFilePath resolves the on-disk file behind a coverage store. Returns
// ErrStoreNotFound when the store is missing or its file is not on this host.
func (c *Client) GetLayerFilePath(ctx context.Context, workspace, layerName string) (string, error) {
	storeUrl := fmt.Sprintf("%s/workspaces/%s/coveragestores/%s.json", c.restUrl, workspace, layerName)

	body, status, err := c.doWithRetry(ctx, http.MethodGet, storeUrl, nil)
	if err != nil {
		return "", eris.Wrap(err, "geoserver coverage store request")
	}
	if status == http.StatusNotFound {
		log.WithFields(log.Fields{
			"workspace": workspace,
			"layer":     layerName,
		}).Warn("Coverage store not found")
		return "", ErrStoreNotFound
	}
	if status != http.StatusOK {
		return "", eris.Errorf("geoserver coverage store request: status %d", status)
	}

	var store coverageStoreResponse
	if err := json.Unmarshal(body, &store); err != nil {
		return "", eris.Wrap(err, "invalid geoserver response format")
	}
	if store.CoverageStore.Url == "" {
		return "", eris.New("invalid geoserver response format: missing coverage store url")
	}

	filePath, err := extractFilePath(store.CoverageStore.Url)
	if err != nil {
		return "", err
	}

	if !fileExists(filePath) {
		log.WithFields(log.Fields{
			"path": filePath,
		}).Error("File not found at coverage store path")
		return "", ErrStoreNotFound
	}

	return filePath, nil
}

// LayerExists reports whether the layer is already published. Request failures
// count as absent so that processing can proceed and fail later with context.
func (c *Client) LayerExists(ctx context.Context, workspace, layerName string) bool {
	layerUrl := fmt.Sprintf("%s/workspaces/%s/layers/%s.json", c.restUrl, workspace, layerName)
	_, status, err := c.doWithRetry(ctx, http.MethodGet, layerUrl, nil)
	if err != nil {
		return false
	}
	return status == http.StatusOK
}

// PublishLayer registers filePath as a GeoTIFF coverage store and exposes it
// as a coverage named layerName.
func (c *Client) PublishLayer(ctx context.Context, workspace, layerName, filePath string) error {
	if c.LayerExists(ctx, workspace, layerName) {
		return ErrLayerExists
	}

	if err := c.createCoverageStore(ctx, workspace, layerName, filePath); err != nil {
		return err
	}

	return c.createCoverage(ctx, workspace, layerName)
}

func (c *Client) createCoverageStore(ctx context.Context, workspace, storeName, filePath string) error {
	storesUrl := fmt.Sprintf("%s/workspaces/%s/coveragestores", c.restUrl, workspace)

	payload := map[string]interface{}{
		"coverageStore": map[string]interface{}{
			"name":    storeName,
			"type":    "GeoTIFF",
			"enabled": true,
			"workspace": map[string]interface{}{
				"name": workspace,
			},
			"url": "file://" + filePath,
		},
	}

	log.WithFields(log.Fields{
		"workspace": workspace,
		"store":     storeName,
		"path":      filePath,
	}).Info("Creating coverage store")

	body, status, err := c.doJSON(ctx, storesUrl, payload)
	if err != nil {
		return eris.Wrap(err, "coverage store creation")
	}
	if status != http.StatusCreated {
		log.WithFields(log.Fields{
			"status":   status,
			"response": string(body),
		}).Error("Coverage store creation failed")
		return eris.Errorf("coverage store creation: status %d", status)
	}

	return nil
}

func (c *Client) createCoverage(ctx context.Context, workspace, layerName string) error {
	coveragesUrl := fmt.Sprintf("%s/workspaces/%s/coveragestores/%s/coverages", c.restUrl, workspace, layerName)

	payload := map[string]interface{}{
		"coverage": map[string]interface{}{
			"name":    layerName,
			"title":   layerName,
			"enabled": true,
		},
	}

	body, status, err := c.doJSON(ctx, coveragesUrl, payload)
	if err != nil {
		return eris.Wrap(err, "coverage creation")
	}
	if status < 200 || status > 299 {
		log.WithFields(log.Fields{
			"status":   status,
			"response": string(body),
		}).Error("Coverage creation failed")
		return eris.Errorf("coverage creation: status %d", status)
	}

	return nil
}

func (c *Client) doJSON(ctx context.Context, requestUrl string, payload interface{}) ([]byte, int, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, eris.Wrap(err, "marshal payload")
	}
	return c.doWithRetry(ctx, http.MethodPost, requestUrl, payloadBytes)
}

// doWithRetry issues a request, retrying transport-level failures and 5xx
// responses up to 3 times with fibonacci backoff.
func (c *Client) doWithRetry(ctx context.Context, method, requestUrl string, payload []byte) ([]byte, int, error) {
	backoff, err := retry.NewFibonacci(500 * time.Millisecond)
	if err != nil {
		return nil, 0, eris.Wrap(err, "build backoff")
	}
	backoff = retry.WithMaxRetries(3, backoff)

	var body []byte
	var status int

	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, requestUrl, reader)
		if err != nil {
			return err
		}
		req.SetBasicAuth(c.username, c.password)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(err)
		}

		status = resp.StatusCode
		if status >= 500 {
			return retry.RetryableError(fmt.Errorf("geoserver returned %d", status))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return body, status, nil
}

func extractFilePath(fileUrl string) (string, error) {
	parsed, err := url.Parse(fileUrl)
	if err != nil {
		return "", eris.Wrap(err, "parse coverage store url")
	}
	// relative store URLs like file:data/scene.tif parse as opaque
	if parsed.Opaque != "" {
		return parsed.Opaque, nil
	}
	if parsed.Path == "" {
		// GeoServer sometimes stores relative paths without a scheme.
		return fileUrl, nil
	}
	return parsed.Path, nil
}

func fileExists(path string) bool {
	stat, err := os.Stat(path)
	return err == nil && !stat.IsDir()
}
