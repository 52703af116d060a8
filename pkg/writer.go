package decoder

import (
	"errors"
	"fmt"
	"sync"

	hdf5 "github.com/jmbenlloch/go-hdf5"
)

// Writer stores the measurements, histograms, run summaries and, when
// enabled, the diagnostic waveforms of a run in one HDF5 file. It is safe for
// use by several file workers.
type Writer struct {
	mu               sync.Mutex
	File             *hdf5.File
	Filename         string
	RunGroup         *hdf5.Group
	ResultsGroup     *hdf5.Group
	HistogramsGroup  *hdf5.Group
	DiagnosticsGroup *hdf5.Group
	RunInfoTable     *hdf5.Dataset
	EventTable       *hdf5.Dataset
	WaveformTable    *hdf5.Dataset
	PeakTable        *hdf5.Dataset
	Histograms       *Histograms
	EvtCounter       int
	RunCounter       int
	WaveformCounter  int
	PeakCounter      int
	compression      int
	logger           Logger
	verbosity        int
}

func NewWriter(filename string, writeWaveforms bool, compressionLevel int, logger Logger, verbosity int) (*Writer, error) {
	if logger == nil {
		logger = NopLogger{}
	}
	writer := &Writer{
		Filename:    filename,
		Histograms:  NewHistograms(),
		compression: compressionLevel,
		logger:      logger,
		verbosity:   verbosity,
	}
	if verbosity > 0 {
		logger.Info(fmt.Sprintf("Creating file: %s", filename), "hdf5writer")
	}

	var err error
	if writer.File, err = openFile(filename); err != nil {
		return nil, err
	}
	if writer.RunGroup, err = createGroup(writer.File, "Run"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.ResultsGroup, err = createGroup(writer.File, "Results"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.HistogramsGroup, err = createGroup(writer.File, "Histograms"); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.RunInfoTable, err = createTable(writer.RunGroup, "runInfo", RunInfoHDF5{}, compressionLevel); err != nil {
		return nil, errors.Join(err, writer.Close())
	}
	if writer.EventTable, err = createTable(writer.ResultsGroup, "events", ResultHDF5{}, compressionLevel); err != nil {
		return nil, errors.Join(err, writer.Close())
	}

	if writeWaveforms {
		if writer.DiagnosticsGroup, err = createGroup(writer.File, "Diagnostics"); err != nil {
			return nil, errors.Join(err, writer.Close())
		}
		if writer.WaveformTable, err = createTable(writer.DiagnosticsGroup, "waveforms", WaveformPointHDF5{}, compressionLevel); err != nil {
			return nil, errors.Join(err, writer.Close())
		}
		if writer.PeakTable, err = createTable(writer.DiagnosticsGroup, "peaks", PeakHDF5{}, compressionLevel); err != nil {
			return nil, errors.Join(err, writer.Close())
		}
	}
	return writer, nil
}

func (w *Writer) Record(result AnalysisResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := ResultHDF5{
		file_index:      int32(result.FileIndex),
		evt_number:      int32(result.EventNumber),
		time_difference: int32(result.TimeDifferenceNs),
		muon_charge:     result.MuonChargeNc,
		electron_charge: result.ElectronChargeNc,
	}
	if err := writeEntryToTable(w.EventTable, entry, w.EvtCounter); err != nil {
		return fmt.Errorf("error writing event %d: %w", result.EventNumber, err)
	}
	w.EvtCounter++
	return w.Histograms.Record(result)
}

func (w *Writer) WriteRunInfo(summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	entry := RunInfoHDF5{
		run_id:            convertToHdf5String(summary.RunID),
		file_index:        int32(summary.FileIndex),
		file_name:         convertToHdf5Path(summary.File),
		events_decoded:    int32(summary.EventsDecoded),
		events_analysed:   int32(summary.EventsAnalysed),
		events_accepted:   int32(summary.EventsAccepted),
		events_rejected:   int32(summary.EventsRejected()),
		footer_mismatches: int32(summary.FooterMismatches),
	}
	if err := writeEntryToTable(w.RunInfoTable, entry, w.RunCounter); err != nil {
		return fmt.Errorf("error writing run info: %w", err)
	}
	w.RunCounter++
	return nil
}

func (w *Writer) WriteWaveform(eventNumber int, waveform []WaveformPoint, peaks []PeakPoints) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.WaveformTable == nil {
		return nil
	}

	// The array MUST be allocated at creation, HDF5 reads it through a pointer
	points := make([]WaveformPointHDF5, len(waveform))
	for i, point := range waveform {
		points[i] = WaveformPointHDF5{
			evt_number: int32(eventNumber),
			time_ns:    int32(point.TimeNs),
			volts:      float32(point.Volts),
		}
	}
	if err := writeArrayToTable(w.WaveformTable, &points, w.WaveformCounter); err != nil {
		return fmt.Errorf("error writing waveform: %w", err)
	}
	w.WaveformCounter += len(points)

	peakRows := make([]PeakHDF5, len(peaks))
	for i, peak := range peaks {
		peakRows[i] = PeakHDF5{
			evt_number:   int32(eventNumber),
			peak:         int32(i),
			start_ns:     int32(peak.Start.TimeNs),
			start_volts:  float32(peak.Start.Volts),
			end_ns:       int32(peak.End.TimeNs),
			end_volts:    float32(peak.End.Volts),
			minimum_ns:   int32(peak.Minimum.TimeNs),
			minimum_volt: float32(peak.Minimum.Volts),
		}
	}
	if err := writeArrayToTable(w.PeakTable, &peakRows, w.PeakCounter); err != nil {
		return fmt.Errorf("error writing peaks: %w", err)
	}
	w.PeakCounter += len(peakRows)
	return nil
}

func (w *Writer) writeHistogram(h *Histogram) error {
	table, err := createTable(w.HistogramsGroup, h.Name, HistogramBinHDF5{}, w.compression)
	if err != nil {
		return err
	}
	defer table.Close()

	rows := make([]HistogramBinHDF5, h.Bins)
	for i := range rows {
		low, high := h.BinEdges(i)
		rows[i] = HistogramBinHDF5{low: low, high: high, count: h.Counts[i]}
	}
	if err := writeArrayToTable(table, &rows, 0); err != nil {
		return fmt.Errorf("error writing histogram %s: %w", h.Name, err)
	}
	return nil
}

func (w *Writer) writeHistograms() error {
	info, err := createTable(w.HistogramsGroup, "info", HistogramInfoHDF5{}, w.compression)
	if err != nil {
		return err
	}
	defer info.Close()

	histograms := w.Histograms.All()
	entries := make([]HistogramInfoHDF5, len(histograms))
	for i, h := range histograms {
		if err := w.writeHistogram(h); err != nil {
			return err
		}
		entries[i] = HistogramInfoHDF5{
			name:      convertToHdf5String(h.Name),
			title:     convertToHdf5Path(h.Title),
			bins:      int32(h.Bins),
			low:       h.Low,
			high:      h.High,
			underflow: h.Underflow,
			overflow:  h.Overflow,
			entries:   h.Entries,
			mean:      h.Mean(),
		}
	}
	return writeArrayToTable(info, &entries, 0)
}

// Close writes the histograms and closes every HDF5 object.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.verbosity > 0 {
		w.logger.Info(fmt.Sprintf("Closing file %s", w.Filename), "hdf5writer")
	}
	var errs []error

	if w.HistogramsGroup != nil && w.Histograms != nil {
		if err := w.writeHistograms(); err != nil {
			errs = append(errs, fmt.Errorf("error writing histograms: %w", err))
		}
	}

	datasets := []struct {
		name string
		dset *hdf5.Dataset
	}{
		{"run info table", w.RunInfoTable},
		{"event table", w.EventTable},
		{"waveform table", w.WaveformTable},
		{"peak table", w.PeakTable},
	}
	for _, d := range datasets {
		if d.dset == nil {
			continue
		}
		if err := d.dset.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", d.name, err))
		}
	}

	groups := []struct {
		name  string
		group *hdf5.Group
	}{
		{"run group", w.RunGroup},
		{"results group", w.ResultsGroup},
		{"histograms group", w.HistogramsGroup},
		{"diagnostics group", w.DiagnosticsGroup},
	}
	for _, g := range groups {
		if g.group == nil {
			continue
		}
		if err := g.group.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing %s: %w", g.name, err))
		}
	}

	if w.File != nil {
		if err := w.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing file: %w", err))
		}
	}

	w.RunInfoTable, w.EventTable, w.WaveformTable, w.PeakTable = nil, nil, nil, nil
	w.RunGroup, w.ResultsGroup, w.HistogramsGroup, w.DiagnosticsGroup = nil, nil, nil, nil
	w.File = nil

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
