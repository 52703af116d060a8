package decoder

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

// Histogram is a fixed binning 1D histogram over [Low, High).
type Histogram struct {
	Name      string
	Title     string
	Bins      int
	Low       float64
	High      float64
	Counts    []int64
	Underflow int64
	Overflow  int64
	Entries   int64
	sum       float64
}

func NewHistogram(name string, title string, bins int, low float64, high float64) *Histogram {
	return &Histogram{
		Name:   name,
		Title:  title,
		Bins:   bins,
		Low:    low,
		High:   high,
		Counts: make([]int64, bins),
	}
}

// Bin returns -1 for underflow and Bins for overflow.
func (h *Histogram) Bin(value float64) int {
	if value < h.Low {
		return -1
	}
	if value >= h.High {
		return h.Bins
	}
	bin := int((value - h.Low) / (h.High - h.Low) * float64(h.Bins))
	if bin >= h.Bins {
		bin = h.Bins - 1
	}
	return bin
}

func (h *Histogram) BinEdges(bin int) (float64, float64) {
	width := (h.High - h.Low) / float64(h.Bins)
	return h.Low + float64(bin)*width, h.Low + float64(bin+1)*width
}

func (h *Histogram) Mean() float64 {
	if h.Entries == 0 {
		return 0
	}
	return h.sum / float64(h.Entries)
}

func Fill[T Number](h *Histogram, value T) {
	v := float64(value)
	h.Entries++
	h.sum += v
	switch bin := h.Bin(v); {
	case bin < 0:
		h.Underflow++
	case bin >= h.Bins:
		h.Overflow++
	default:
		h.Counts[bin]++
	}
}

// Histograms aggregates the three measurement streams with the binning of the
// ROOT output of the older DaqReader.
type Histograms struct {
	TimeDifference *Histogram
	MuonCharge     *Histogram
	ElectronCharge *Histogram
}

func NewHistograms() *Histograms {
	return &Histograms{
		TimeDifference: NewHistogram("time_difference", "Decay time distribution;Time [ns];Events", 500, 0, 10000),
		MuonCharge:     NewHistogram("muon_charge", "Muon spectrum;Charge [nC];Events", 1250, 0, 1.25),
		ElectronCharge: NewHistogram("electron_charge", "Electron spectrum;Charge [nC];Events", 1250, 0, 1.25),
	}
}

func (h *Histograms) Record(result AnalysisResult) error {
	Fill(h.TimeDifference, result.TimeDifferenceNs)
	Fill(h.MuonCharge, result.MuonChargeNc)
	Fill(h.ElectronCharge, result.ElectronChargeNc)
	return nil
}

func (h *Histograms) All() []*Histogram {
	return []*Histogram{h.TimeDifference, h.MuonCharge, h.ElectronCharge}
}
