package analysis

import (
	"errors"
	"math"
	"math/cmplx"
)

var ErrLength = errors.New("analysis: fft length must be a power of two")

// FFT is a radix-2 transform of real samples.
func FFT(data []float64) ([]complex128, error) {
	n := len(data)
	if n&(n-1) != 0 {
		return nil, ErrLength
	}
	return fft(data), nil
}

func fft(data []float64) []complex128 {
	n := len(data)
	if n <= 1 {
		out := make([]complex128, n)
		for i := range data {
			out[i] = complex(data[i], 0)
		}
		return out
	}

	even := make([]float64, n/2)
	odd := make([]float64, n/2)
	for i := 0; i < n/2; i++ {
		even[i] = data[2*i]
		odd[i] = data[2*i+1]
	}
	fe, fo := fft(even), fft(odd)

	out := make([]complex128, n)
	for k := 0; k < n/2; k++ {
		w := cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
		out[k] = fe[k] + w*fo[k]
		out[k+n/2] = fe[k] - w*fo[k]
	}
	return out
}

// PowerSpectrum returns the magnitudes of the lower half of the spectrum of
// the longest power-of-two prefix of data, mean removed.
func PowerSpectrum(data []float64) []float64 {
	n := 1
	for n*2 <= len(data) {
		n *= 2
	}
	if len(data) < 2 {
		return nil
	}
	centered := make([]float64, n)
	mean := 0.0
	for _, v := range data[:n] {
		mean += v
	}
	mean /= float64(n)
	for i, v := range data[:n] {
		centered[i] = v - mean
	}

	spec := fft(centered)
	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spec[i])
	}
	return ps
}

// DominantFrequency returns the frequency in Hz of the strongest non-zero
// bin for samples taken every dt seconds. Flat or short traces give 0.
func DominantFrequency(samples []float64, dt float64) float64 {
	ps := PowerSpectrum(samples)
	if len(ps) < 2 || dt <= 0 {
		return 0
	}
	best, peak := 0, 1e-12
	for k := 1; k < len(ps); k++ {
		if ps[k] > peak {
			best, peak = k, ps[k]
		}
	}
	return float64(best) / (float64(2*len(ps)) * dt)
}
