package decoder

import "math"

// V1720 constants.
const (
	// ADC value at 0 V, from the amplitude analysis
	PedestalCounts     = 2110
	FullScaleVolts     = 2.0
	ResolutionBits     = 12
	SamplingPeriodNs   = 4
	LoadResistanceOhms = 50.0
)

const voltsPerCount = FullScaleVolts / float64(1<<ResolutionBits-1)

func CountsToVolts(counts float64) float64 {
	return (counts - PedestalCounts) * voltsPerCount
}

func SampleToNanoseconds(sample int) int {
	return sample * SamplingPeriodNs
}

// IntegratedCharge returns the pulse charge in nC over samples [start, end),
// using the midpoint of each pair of samples. waveform[end] is read as the last
// pair partner, so end is clamped to len(waveform)-1.
func IntegratedCharge(start int, end int, waveform []int) float64 {
	if start < 0 {
		start = 0
	}
	if end > len(waveform)-1 {
		end = len(waveform) - 1
	}

	sum := 0.0
	for i := start; i < end; i++ {
		sum += math.Abs(CountsToVolts(float64(waveform[i]+waveform[i+1]) / 2))
	}
	samplingPeriodSeconds := SamplingPeriodNs * 1e-9
	return sum / LoadResistanceOhms * samplingPeriodSeconds * 1e9
}
