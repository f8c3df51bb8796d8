package raster

import (
	"os"

	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
)

// NDVIProcessor computes (NIR - Red) / (NIR + Red) from Sentinel-2 bands.
type NDVIProcessor struct {
	redBand int
	nirBand int
}

func NewNDVIProcessor(conf *config.Config) *NDVIProcessor {
	return &NDVIProcessor{
		redBand: conf.Raster.RedBand,
		nirBand: conf.Raster.NirBand,
	}
}

func (p *NDVIProcessor) LayerType() string { return "NDVI" }

func (p *NDVIProcessor) Suffix() string { return "_NDVI" }

// Process writes {layerName}_NDVI.tif next to the input and returns its path.
func (p *NDVIProcessor) Process(inputPath, layerName string) (string, error) {
	outputPath := outputPathFor(inputPath, layerName, p.Suffix())

	if _, err := os.Stat(outputPath); err == nil {
		return "", eris.Wrapf(ErrOutputExists, "%s", outputPath)
	}

	bands, geometry, err := readBands(inputPath, []int{p.redBand, p.nirBand})
	if err != nil {
		return "", err
	}
	red, nir := bands[0], bands[1]

	ndvi := normalizedDifference(nir.pixels, red.pixels, nir.nodata, red.nodata)

	if err := writeIndexRaster(outputPath, ndvi, geometry); err != nil {
		CleanupFile(outputPath)
		return "", err
	}

	log.WithFields(log.Fields{
		"output": outputPath,
	}).Info("NDVI processing completed")

	return outputPath, nil
}
