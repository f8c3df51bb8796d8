package status

import (
	"testing"
	"time"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageSuccess(t *testing.T) {
	message := BuildMessage("sentinel", "scene_NDVI", "NDVI", models.JobStatusSuccess, "scene", "/data/scene_NDVI.tif", "")

	assert.Equal(t, "sentinel", message.Workspace)
	assert.Equal(t, "scene_NDVI", message.StoreName)
	assert.Equal(t, "NDVI", message.LayerType)
	assert.Equal(t, models.JobStatusSuccess, message.Status)
	assert.Equal(t, "scene", message.OriginalLayer)
	assert.Equal(t, "/data/scene_NDVI.tif", message.FilePath)
	assert.Empty(t, message.ErrorMessage)

	// UTC ISO timestamp with a trailing Z
	require.True(t, len(message.Timestamp) > 0)
	assert.Equal(t, byte('Z'), message.Timestamp[len(message.Timestamp)-1])
	_, err := time.Parse("2006-01-02T15:04:05.000000Z", message.Timestamp)
	assert.NoError(t, err)
}

func TestBuildMessageFailure(t *testing.T) {
	message := BuildMessage("sentinel", "scene_NDWI", "NDWI", models.JobStatusFailed, "scene", "", "band 8 missing")

	assert.Equal(t, models.JobStatusFailed, message.Status)
	assert.Equal(t, "band 8 missing", message.ErrorMessage)
	assert.Empty(t, message.FilePath)
}

func TestMessageKey(t *testing.T) {
	assert.Equal(t, "sentinel:scene_NDVI", MessageKey("sentinel", "scene_NDVI"))
}

func TestPublishWithoutProducerIsSkipped(t *testing.T) {
	conf := &config.Config{}
	conf.Kafka.Topic = "image-processing-status"
	publisher := NewPublisher(nil, conf)

	// must not panic and must not block
	publisher.PublishSuccess("sentinel", "scene_NDVI", "NDVI", "scene", "/data/scene_NDVI.tif")
	publisher.PublishFailure("sentinel", "scene_NDVI", "NDVI", "scene", "boom")
	publisher.Close()
}
