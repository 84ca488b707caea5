package normalizer

import (
	"image"
	"math"
	"runtime"
	"sync"
)

const levels = 256

// grayscale averages R, G and B of every pixel into gray and copies alpha
// out. Rows are processed in horizontal strips.
func grayscale(src *image.NRGBA, maxWorkers int) (gray, alpha []uint8) {
	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	gray = make([]uint8, width*height)
	alpha = make([]uint8, width*height)

	numWorkers := maxWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if height < numWorkers {
		numWorkers = height
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}
	rowsPerWorker := (height + numWorkers - 1) / numWorkers // ceil division

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		startY := i * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > height {
			endY = height
		}
		if startY >= endY {
			break
		}
		wg.Add(1)
		go func(startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				row := src.Pix[y*src.Stride : y*src.Stride+width*4]
				for x := 0; x < width; x++ {
					p := row[x*4 : x*4+4]
					sum := int(p[0]) + int(p[1]) + int(p[2])
					// round(sum/3): the remainder is 0, 1 or 2
					gray[y*width+x] = uint8((sum + 1) / 3)
					alpha[y*width+x] = p[3]
				}
			}
		}(startY, endY)
	}
	wg.Wait()

	return gray, alpha
}

// histogram counts occurrences of each intensity
func histogram(gray []uint8) [levels]int {
	var h [levels]int
	for _, v := range gray {
		h[v]++
	}
	return h
}

// cumulative returns the running sum of h
func cumulative(h [levels]int) [levels]int {
	var cdf [levels]int
	acc := 0
	for i, c := range h {
		acc += c
		cdf[i] = acc
	}
	return cdf
}

// equalize builds the intensity lookup table. cdfMin is the cumulative count
// at the first occupied bin. When every pixel shares one intensity the
// denominator is zero and the identity table is returned.
func equalize(h [levels]int, total int) (lut [levels]uint8, uniform bool) {
	cdf := cumulative(h)

	cdfMin := 0
	for _, v := range cdf {
		if v > 0 {
			cdfMin = v
			break
		}
	}

	denom := total - cdfMin
	if denom <= 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut, true
	}

	for i := range lut {
		if h[i] == 0 {
			// Unused bins never map a pixel. Keep them monotone.
			if i > 0 {
				lut[i] = lut[i-1]
			}
			continue
		}
		v := math.Round(float64(cdf[i]-cdfMin) / float64(denom) * 255)
		lut[i] = clampUint8(v)
	}
	return lut, false
}

func clampUint8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// occupiedBins counts intensities that appear at least once
func occupiedBins(h [levels]int) int {
	n := 0
	for _, c := range h {
		if c > 0 {
			n++
		}
	}
	return n
}
