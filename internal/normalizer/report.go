package normalizer

import (
	"sync"

	"gonum.org/v1/gonum/stat"

	"go-xray-inspector/pkg/models"
)

var samplePool = sync.Pool{
	New: func() interface{} {
		return make([]float64, 0, models.CanonicalWidth*models.CanonicalHeight)
	},
}

// buildReport computes population mean and standard deviation of the
// intensity plane before and after equalization.
func buildReport(before, after []uint8, h [levels]int) models.NormalizationReport {
	meanBefore, stdBefore := popMeanStdDev(before)
	meanAfter, stdAfter := popMeanStdDev(after)
	return models.NormalizationReport{
		MeanBefore:   meanBefore,
		StdDevBefore: stdBefore,
		MeanAfter:    meanAfter,
		StdDevAfter:  stdAfter,
		OccupiedBins: occupiedBins(h),
	}
}

func popMeanStdDev(plane []uint8) (mean, std float64) {
	if len(plane) == 0 {
		return 0, 0
	}
	data := samplePool.Get().([]float64)
	defer func() { samplePool.Put(data[:0]) }()

	for _, v := range plane {
		data = append(data, float64(v))
	}
	return stat.PopMeanStdDev(data, nil)
}
