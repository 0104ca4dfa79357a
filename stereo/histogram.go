package stereo

import (
	"github.com/aybabtme/uniplot/histogram"
	"github.com/montanaflynn/stats"
)

// NormalizeHistogram stretches the contrast of an 8-bit raster in place so the darkest pixel of
// the width x height region becomes 0 and the brightest 255. Rows are step bytes apart. A flat
// region (min == max) is left unchanged.
func NormalizeHistogram(pix []byte, width, height, step int) {
	if width <= 0 || height <= 0 || len(pix) < (height-1)*step+width {
		return
	}

	minV, maxV := 255, 0
	for y := 0; y < height; y++ {
		row := pix[y*step : y*step+width]
		for _, v := range row {
			if int(v) < minV {
				minV = int(v)
			}
			if int(v) > maxV {
				maxV = int(v)
			}
		}
	}
	if minV == maxV {
		return
	}

	span := maxV - minV
	for y := 0; y < height; y++ {
		row := pix[y*step : y*step+width]
		for x, v := range row {
			row[x] = uint8((int(v) - minV) * 255 / span)
		}
	}
}

// IntensityHistogram buckets the pixels of the width x height region of an 8-bit raster into
// bins buckets. A flat region gives a single bucket.
func IntensityHistogram(pix []byte, width, height, step, bins int) histogram.Histogram {
	values := regionValues(pix, width, height, step)
	if len(values) == 0 || bins <= 0 {
		return histogram.Histogram{}
	}
	return histogram.Hist(bins, values)
}

// IntensitySummary holds summary statistics of a raster region.
type IntensitySummary struct {
	Mean, Median, StdDev float64
}

// SummarizeIntensity computes the mean, median and standard deviation of the width x height
// region of an 8-bit raster. An empty or short region is an error.
func SummarizeIntensity(pix []byte, width, height, step int) (IntensitySummary, error) {
	values := stats.Float64Data(regionValues(pix, width, height, step))
	var s IntensitySummary
	var err error
	if s.Mean, err = values.Mean(); err != nil {
		return IntensitySummary{}, err
	}
	if s.Median, err = values.Median(); err != nil {
		return IntensitySummary{}, err
	}
	if s.StdDev, err = values.StandardDeviation(); err != nil {
		return IntensitySummary{}, err
	}
	return s, nil
}

func regionValues(pix []byte, width, height, step int) []float64 {
	if width <= 0 || height <= 0 || len(pix) < (height-1)*step+width {
		return nil
	}
	values := make([]float64, 0, width*height)
	for y := 0; y < height; y++ {
		for _, v := range pix[y*step : y*step+width] {
			values = append(values, float64(v))
		}
	}
	return values
}
