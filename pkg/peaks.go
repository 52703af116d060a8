package decoder

// Derivative threshold found by trial on real data. A derivative below it is the
// leading edge of a pulse and not noise.
const DerivativeThreshold = -11

type Peak struct {
	Start   int
	End     int
	Minimum int
}

// Differentiate computes the symmetric 4th order derivative. The first two and
// the last two entries are 0 so the result lines up with the waveform.
func Differentiate(waveform []int) []int {
	derivative := make([]int, len(waveform))
	for i := 2; i < len(waveform)-2; i++ {
		derivative[i] = (-waveform[i+2] + 8*waveform[i+1] - 8*waveform[i-1] + waveform[i-2]) / 12
	}
	return derivative
}

type PeakFinder struct {
	Threshold int
}

func NewPeakFinder(threshold int) PeakFinder {
	return PeakFinder{Threshold: threshold}
}

// FindPeaks runs one pass over the waveform. A peak opens when the derivative
// drops below the threshold, starts ascending once the derivative turns
// positive and closes at the next negative derivative. A peak still open at the
// end of the waveform is dropped.
func (f PeakFinder) FindPeaks(waveform []int) []Peak {
	derivative := Differentiate(waveform)
	peaks := make([]Peak, 0, 2)

	found := false
	ascending := false
	start := 0
	minimum := 0

	for i := range waveform {
		if found && ascending && derivative[i] < 0 {
			peaks = append(peaks, Peak{Start: start, End: i, Minimum: minimum})
			found = false
			ascending = false
		}

		if found && !ascending && derivative[i] > 0 {
			ascending = true
		}

		// A peak closed at i can open again at i
		if !found && derivative[i] < f.Threshold {
			found = true
			start = i
			minimum = i
		}

		if found && waveform[i] < waveform[minimum] {
			minimum = i
		}
	}
	return peaks
}

func FindPeaks(waveform []int) []Peak {
	return NewPeakFinder(DerivativeThreshold).FindPeaks(waveform)
}
