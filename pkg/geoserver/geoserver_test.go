package geoserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverUrl string) *Client {
	conf := &config.Config{}
	conf.GeoServer.BaseUrl = serverUrl + "/geoserver"
	conf.GeoServer.Username = "admin"
	conf.GeoServer.Password = "geoserver"
	return NewClient(conf)
}

func writeTempRaster(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.tif")
	require.NoError(t, os.WriteFile(path, []byte("not a real tiff"), 0o644))
	return path
}

func TestGetLayerFilePath(t *testing.T) {
	rasterPath := writeTempRaster(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/geoserver/rest/workspaces/sentinel/coveragestores/scene.json", r.URL.Path)
		username, password, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "admin", username)
		assert.Equal(t, "geoserver", password)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"coverageStore": map[string]interface{}{
				"name": "scene",
				"url":  "file://" + rasterPath,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	path, err := client.GetLayerFilePath(context.Background(), "sentinel", "scene")
	require.NoError(t, err)
	assert.Equal(t, rasterPath, path)
}

func TestGetLayerFilePathStoreMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetLayerFilePath(context.Background(), "sentinel", "missing")
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestGetLayerFilePathFileMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"coverageStore": map[string]interface{}{
				"name": "scene",
				"url":  "file:///nonexistent/scene.tif",
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetLayerFilePath(context.Background(), "sentinel", "scene")
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestGetLayerFilePathMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{}")
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetLayerFilePath(context.Background(), "sentinel", "scene")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid geoserver response format")
}

func TestLayerExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/geoserver/rest/workspaces/sentinel/layers/scene_NDVI.json" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	assert.True(t, client.LayerExists(context.Background(), "sentinel", "scene_NDVI"))
	assert.False(t, client.LayerExists(context.Background(), "sentinel", "other"))
}

func TestPublishLayer(t *testing.T) {
	var storePayload map[string]interface{}
	var coverageCreated bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.URL.Path == "/geoserver/rest/workspaces/sentinel/coveragestores":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&storePayload))
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/geoserver/rest/workspaces/sentinel/coveragestores/scene_NDVI/coverages":
			coverageCreated = true
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.PublishLayer(context.Background(), "sentinel", "scene_NDVI", "/data/scene_NDVI.tif")
	require.NoError(t, err)
	assert.True(t, coverageCreated)

	store := storePayload["coverageStore"].(map[string]interface{})
	assert.Equal(t, "scene_NDVI", store["name"])
	assert.Equal(t, "GeoTIFF", store["type"])
	assert.Equal(t, "file:///data/scene_NDVI.tif", store["url"])
}

func TestPublishLayerAlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.PublishLayer(context.Background(), "sentinel", "scene_NDVI", "/data/scene_NDVI.tif")
	assert.ErrorIs(t, err, ErrLayerExists)
}

func TestPublishLayerStoreCreationFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.PublishLayer(context.Background(), "sentinel", "scene_NDVI", "/data/scene_NDVI.tif")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coverage store creation")
}

func TestExtractFilePath(t *testing.T) {
	cases := []struct {
		fileUrl string
		want    string
	}{
		{"file:///data/scene.tif", "/data/scene.tif"},
		// relative store url, no authority: the path is opaque
		{"file:data/scene.tif", "data/scene.tif"},
		{"data/scene.tif", "data/scene.tif"},
	}

	for _, c := range cases {
		got, err := extractFilePath(c.fileUrl)
		require.NoError(t, err, "url %q", c.fileUrl)
		assert.Equal(t, c.want, got, "url %q", c.fileUrl)
	}
}

func TestGetLayerFilePathRelativeStoreUrl(t *testing.T) {
	// relative to the server data dir, which for the test is the working dir
	relDir, err := os.MkdirTemp(".", "raster")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(relDir) })

	rasterPath := filepath.Join(relDir, "scene.tif")
	require.NoError(t, os.WriteFile(rasterPath, []byte("not a real tiff"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"coverageStore": map[string]interface{}{
				"name": "scene",
				// no slashes after the scheme
				"url": "file:" + rasterPath,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	path, err := client.GetLayerFilePath(context.Background(), "sentinel", "scene")
	require.NoError(t, err)
	assert.Equal(t, rasterPath, path)
}

func TestRetriesTransientServerErrors(t *testing.T) {
	rasterPath := writeTempRaster(t)
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"coverageStore": map[string]interface{}{
				"name": "scene",
				"url":  "file://" + rasterPath,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	path, err := client.GetLayerFilePath(context.Background(), "sentinel", "scene")
	require.NoError(t, err)
	assert.Equal(t, rasterPath, path)
	assert.Equal(t, 2, attempts)
}
