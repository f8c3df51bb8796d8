package raster

import (
	"os"

	"github.com/airbusgeo/godal"
	"github.com/ganeshsharma25-official/gdal-image-service/pkg/config"
	"github.com/rotisserie/eris"
	log "github.com/sirupsen/logrus"
)

// NDWIProcessor computes (Green - NIR) / (Green + NIR) and renders the result
// through a color ramp into a styled RGB GeoTIFF.
type NDWIProcessor struct {
	greenBand int
	nirBand   int
}

func NewNDWIProcessor(conf *config.Config) *NDWIProcessor {
	return &NDWIProcessor{
		greenBand: conf.Raster.GreenBand,
		nirBand:   conf.Raster.NirBand,
	}
}

func (p *NDWIProcessor) LayerType() string { return "NDWI" }

func (p *NDWIProcessor) Suffix() string { return "_NDWI" }

// Process writes {layerName}_NDWI_styled.tif next to the input and returns its
// path. The intermediate single-band index raster is removed after styling.
func (p *NDWIProcessor) Process(inputPath, layerName string) (string, error) {
	indexPath := outputPathFor(inputPath, layerName, "_NDWI")
	styledPath := outputPathFor(inputPath, layerName, "_NDWI_styled")

	if _, err := os.Stat(styledPath); err == nil {
		return "", eris.Wrapf(ErrOutputExists, "%s", styledPath)
	}

	bands, geometry, err := readBands(inputPath, []int{p.greenBand, p.nirBand})
	if err != nil {
		return "", err
	}
	green, nir := bands[0], bands[1]

	ndwi := normalizedDifference(green.pixels, nir.pixels, green.nodata, nir.nodata)

	if err := writeIndexRaster(indexPath, ndwi, geometry); err != nil {
		CleanupFile(indexPath)
		return "", err
	}

	if err := p.style(indexPath, styledPath); err != nil {
		CleanupFile(indexPath)
		CleanupFile(styledPath)
		return "", err
	}

	CleanupFile(indexPath)

	log.WithFields(log.Fields{
		"output": styledPath,
	}).Info("NDWI processing completed")

	return styledPath, nil
}

// style reads the single-band index raster back and writes a 3-band byte RGB
// rendering of it.
func (p *NDWIProcessor) style(indexPath, styledPath string) error {
	ds, err := godal.Open(indexPath)
	if err != nil {
		return eris.Wrap(err, "open index raster")
	}
	defer ds.Close()

	structure := ds.Structure()
	cols := structure.SizeX
	rows := structure.SizeY

	band := ds.Bands()[0]
	index := make([]float32, cols*rows)
	if err := band.Read(0, 0, index, cols, rows); err != nil {
		return eris.Wrap(err, "read index band")
	}

	var nodata *float64
	if value, ok := band.NoData(); ok {
		nodata = &value
	}

	cm, err := newNDWIColorMap()
	if err != nil {
		return err
	}
	red, green, blue := cm.apply(index, nodata)

	transform, err := ds.GeoTransform()
	if err != nil {
		return eris.Wrap(err, "read geotransform")
	}

	creation := godal.CreationOption("COMPRESS=LZW", "TILED=YES", "PHOTOMETRIC=RGB")
	out, err := godal.Create(godal.GTiff, styledPath, 3, godal.Byte, cols, rows, creation)
	if err != nil {
		return eris.Wrap(err, "create styled dataset")
	}

	if err := out.SetGeoTransform(transform); err != nil {
		out.Close()
		return eris.Wrap(err, "set geotransform")
	}
	if err := out.SetProjection(ds.Projection()); err != nil {
		out.Close()
		return eris.Wrap(err, "set projection")
	}

	outBands := out.Bands()
	for i, plane := range [][]uint8{red, green, blue} {
		if err := outBands[i].Write(0, 0, plane, cols, rows); err != nil {
			out.Close()
			return eris.Wrapf(err, "write channel %d", i+1)
		}
	}

	return out.Close()
}
