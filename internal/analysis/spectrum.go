package analysis

import (
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

type Spectrum struct {
	SampleRate float64
	Freqs      []float64
	Amplitudes []float64
}

type Peak struct {
	Freq      float64
	Amplitude float64
}

// Compute removes the mean of series and returns amplitudes for the
// frequencies 0 through the Nyquist rate.
func Compute(series []float64, sampleRate float64) (*Spectrum, error) {
	n := len(series)
	if n < 4 {
		return nil, fmt.Errorf("need at least 4 samples, got %d", n)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	mean := 0.0
	for _, v := range series {
		mean += v
	}
	mean /= float64(n)
	centred := make([]float64, n)
	for i, v := range series {
		centred[i] = v - mean
	}

	coeffs := fft.FFTReal(centred)
	bins := n/2 + 1
	s := &Spectrum{
		SampleRate: sampleRate,
		Freqs:      make([]float64, bins),
		Amplitudes: make([]float64, bins),
	}
	for k := 0; k < bins; k++ {
		s.Freqs[k] = float64(k) * sampleRate / float64(n)
		amp := cmplx.Abs(coeffs[k]) / float64(n)
		if k != 0 && !(n%2 == 0 && k == n/2) {
			amp *= 2
		}
		s.Amplitudes[k] = amp
	}
	return s, nil
}

// Dominant is the strongest non-DC component.
func (s *Spectrum) Dominant() Peak {
	best := Peak{}
	for k := 1; k < len(s.Amplitudes); k++ {
		if s.Amplitudes[k] > best.Amplitude {
			best = Peak{Freq: s.Freqs[k], Amplitude: s.Amplitudes[k]}
		}
	}
	return best
}

// Peaks returns up to n local maxima, strongest first.
func (s *Spectrum) Peaks(n int) []Peak {
	var peaks []Peak
	for k := 1; k < len(s.Amplitudes); k++ {
		a := s.Amplitudes[k]
		if a <= 0 || a < s.Amplitudes[k-1] {
			continue
		}
		if k+1 < len(s.Amplitudes) && a < s.Amplitudes[k+1] {
			continue
		}
		peaks = append(peaks, Peak{Freq: s.Freqs[k], Amplitude: a})
	}
	for i := 1; i < len(peaks); i++ {
		for j := i; j > 0 && peaks[j].Amplitude > peaks[j-1].Amplitude; j-- {
			peaks[j], peaks[j-1] = peaks[j-1], peaks[j]
		}
	}
	if len(peaks) > n {
		peaks = peaks[:n]
	}
	return peaks
}
