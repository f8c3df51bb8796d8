package raster

import (
	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/interp"
)

// ndwiRamp is the fixed color ramp used to render NDWI rasters: greens for
// land (negative values) through white at zero into blues for water.
var ndwiRamp = struct {
	values []float64
	red    []float64
	green  []float64
	blue   []float64
}{
	values: []float64{-1.0, -0.8, -0.3, 0.0, 0.1, 0.3, 0.5, 0.8, 1.0},
	red:    []float64{0x00, 0x00, 0x60, 0xFF, 0x40, 0x40, 0x40, 0x00, 0x00},
	green:  []float64{0x60, 0x80, 0xA0, 0xFF, 0x40, 0x40, 0x40, 0x00, 0x00},
	blue:   []float64{0x00, 0x00, 0x60, 0xFF, 0xB0, 0xB0, 0xB0, 0xCC, 0xA0},
}

type colorMap struct {
	red   interp.PiecewiseLinear
	green interp.PiecewiseLinear
	blue  interp.PiecewiseLinear
}

func newNDWIColorMap() (*colorMap, error) {
	var cm colorMap
	if err := cm.red.Fit(ndwiRamp.values, ndwiRamp.red); err != nil {
		return nil, eris.Wrap(err, "fit red ramp")
	}
	if err := cm.green.Fit(ndwiRamp.values, ndwiRamp.green); err != nil {
		return nil, eris.Wrap(err, "fit green ramp")
	}
	if err := cm.blue.Fit(ndwiRamp.values, ndwiRamp.blue); err != nil {
		return nil, eris.Wrap(err, "fit blue ramp")
	}
	return &cm, nil
}

// apply renders index values into three byte planes. Pixels equal to nodata
// stay black. Values are clamped into the ramp domain before interpolation.
func (cm *colorMap) apply(index []float32, nodata *float64) (red, green, blue []uint8) {
	red = make([]uint8, len(index))
	green = make([]uint8, len(index))
	blue = make([]uint8, len(index))

	for i, v := range index {
		if nodata != nil && v == float32(*nodata) {
			continue
		}

		x := float64(v)
		if x < -1 {
			x = -1
		} else if x > 1 {
			x = 1
		}

		red[i] = uint8(cm.red.Predict(x))
		green[i] = uint8(cm.green.Predict(x))
		blue[i] = uint8(cm.blue.Predict(x))
	}

	return red, green, blue
}
