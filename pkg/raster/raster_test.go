package raster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func float64Ptr(v float64) *float64 { return &v }

func TestNormalizedDifference(t *testing.T) {
	// NDVI-style input: a=NIR, b=Red
	a := []float32{800, 400, 100}
	b := []float32{200, 400, 300}

	result := normalizedDifference(a, b, nil, nil)

	assert.InDelta(t, 0.6, result[0], 1e-6)
	assert.InDelta(t, 0.0, result[1], 1e-6)
	assert.InDelta(t, -0.5, result[2], 1e-6)
}

func TestNormalizedDifferenceNodata(t *testing.T) {
	a := []float32{-9999, 800, 800}
	b := []float32{200, -9999, 200}

	result := normalizedDifference(a, b, float64Ptr(-9999), float64Ptr(-9999))

	assert.Equal(t, NoDataValue, result[0])
	assert.Equal(t, NoDataValue, result[1])
	assert.InDelta(t, 0.6, result[2], 1e-6)
}

func TestNormalizedDifferenceNonPositivePixels(t *testing.T) {
	a := []float32{0, -5, 100}
	b := []float32{100, 100, 0}

	result := normalizedDifference(a, b, nil, nil)

	for i := range result {
		assert.Equal(t, NoDataValue, result[i], "pixel %d should be nodata", i)
	}
}

func TestNormalizedDifferenceMatchesNodataOnlyWhenDeclared(t *testing.T) {
	// without declared nodata, -9999 pixels are just non-positive values
	a := []float32{-9999}
	b := []float32{200}

	result := normalizedDifference(a, b, nil, nil)

	assert.Equal(t, NoDataValue, result[0])
}

func TestOutputPathFor(t *testing.T) {
	path := outputPathFor(filepath.Join("data", "scenes", "input.tif"), "scene42", "_NDVI")
	assert.Equal(t, filepath.Join("data", "scenes", "scene42_NDVI.tif"), path)
}

func TestProcessorSuffixesAndTypes(t *testing.T) {
	ndvi := &NDVIProcessor{redBand: 4, nirBand: 8}
	ndwi := &NDWIProcessor{greenBand: 3, nirBand: 8}

	assert.Equal(t, "NDVI", ndvi.LayerType())
	assert.Equal(t, "_NDVI", ndvi.Suffix())
	assert.Equal(t, "NDWI", ndwi.LayerType())
	assert.Equal(t, "_NDWI", ndwi.Suffix())
}
