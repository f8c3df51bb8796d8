// Package raster derives index products (NDVI, NDWI) from multi-band
// Sentinel-2 GeoTIFFs using GDAL.
package raster

import (
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
)

// NoDataValue marks invalid pixels in every produced index raster.
const NoDataValue = float32(-9999.0)

var ErrOutputExists = eris.New("output file already exists")

func init() {
	godal.RegisterAll()
}

// Processor turns a source GeoTIFF into a derived product next to it.
type Processor interface {
	LayerType() string
	Suffix() string
	Process(inputPath, layerName string) (string, error)
}

type bandData struct {
	pixels []float32
	nodata *float64
}

type rasterGeometry struct {
	cols       int
	rows       int
	transform  [6]float64
	projection string
}

// readBands loads the requested 1-based band indexes as float32 planes and
// captures the geometry needed to write a matching output.
func readBands(inputPath string, bandNumbers []int) ([]bandData, *rasterGeometry, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return nil, nil, eris.Wrapf(err, "input file not found: %s", inputPath)
	}

	ds, err := godal.Open(inputPath)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "cannot open file with GDAL: %s", inputPath)
	}
	defer ds.Close()

	bands := ds.Bands()
	for _, n := range bandNumbers {
		if n < 1 || n > len(bands) {
			return nil, nil, eris.Errorf("insufficient bands: found %d, need band %d", len(bands), n)
		}
	}

	structure := ds.Structure()
	cols := structure.SizeX
	rows := structure.SizeY

	transform, err := ds.GeoTransform()
	if err != nil {
		return nil, nil, eris.Wrap(err, "read geotransform")
	}

	geometry := &rasterGeometry{
		cols:       cols,
		rows:       rows,
		transform:  transform,
		projection: ds.Projection(),
	}

	loaded := make([]bandData, 0, len(bandNumbers))
	for _, n := range bandNumbers {
		band := bands[n-1]

		pixels := make([]float32, cols*rows)
		if err := band.Read(0, 0, pixels, cols, rows); err != nil {
			return nil, nil, eris.Wrapf(err, "read band %d", n)
		}

		data := bandData{pixels: pixels}
		if nodata, ok := band.NoData(); ok {
			data.nodata = &nodata
		}
		loaded = append(loaded, data)
	}

	return loaded, geometry, nil
}

// writeIndexRaster writes a single-band float32 GeoTIFF carrying the computed
// index, preserving the source geometry.
func writeIndexRaster(outputPath string, index []float32, geometry *rasterGeometry) error {
	creation := godal.CreationOption("COMPRESS=LZW", "TILED=YES")
	out, err := godal.Create(godal.GTiff, outputPath, 1, godal.Float32, geometry.cols, geometry.rows, creation)
	if err != nil {
		return eris.Wrap(err, "create output dataset")
	}

	if err := out.SetGeoTransform(geometry.transform); err != nil {
		out.Close()
		return eris.Wrap(err, "set geotransform")
	}
	if err := out.SetProjection(geometry.projection); err != nil {
		out.Close()
		return eris.Wrap(err, "set projection")
	}

	band := out.Bands()[0]
	if err := band.SetNoData(float64(NoDataValue)); err != nil {
		out.Close()
		return eris.Wrap(err, "set nodata")
	}
	if err := band.Write(0, 0, index, geometry.cols, geometry.rows); err != nil {
		out.Close()
		return eris.Wrap(err, "write index band")
	}

	return out.Close()
}

// normalizedDifference computes (a-b)/(a+b) per pixel. Pixels where either
// band is nodata or not strictly positive, or where the denominator is zero,
// get NoDataValue. Valid results are clipped to [-1, 1].
func normalizedDifference(a, b []float32, aNodata, bNodata *float64) []float32 {
	result := make([]float32, len(a))
	for i := range a {
		result[i] = NoDataValue

		if aNodata != nil && a[i] == float32(*aNodata) {
			continue
		}
		if bNodata != nil && b[i] == float32(*bNodata) {
			continue
		}
		if a[i] <= 0 || b[i] <= 0 {
			continue
		}

		denominator := a[i] + b[i]
		if denominator == 0 {
			continue
		}

		value := (a[i] - b[i]) / denominator
		if value > 1 {
			value = 1
		} else if value < -1 {
			value = -1
		}
		result[i] = value
	}
	return result
}

func outputPathFor(inputPath, layerName, suffix string) string {
	return filepath.Join(filepath.Dir(inputPath), layerName+suffix+".tif")
}

// CleanupFile removes a produced raster, for use when a later stage fails.
func CleanupFile(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.Remove(path); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"path": path,
		}).Warn("Failed to cleanup file")
		return
	}
	log.WithFields(log.Fields{
		"path": path,
	}).Info("Cleaned up file")
}
