package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	decoder "github.com/next-exp/daqreader_go/pkg"
	"github.com/spf13/pflag"
)

var logger decoder.Logger

func init() {
	logger = decoder.NewSlogLogger(os.Stdout, os.Stderr)
}

type scanRow struct {
	Threshold int
	Accepted  int
	Rejected  map[decoder.RejectReason]int
	MeanTime  float64
	MeanMuon  float64
}

func main() {
	configFilename := pflag.StringP("config", "c", "", "Configuration file path")
	thresholds := pflag.StringP("thresholds", "t", "", "Comma separated derivative thresholds, e.g. -5,-11,-20")
	maxEvents := pflag.IntP("events", "n", 0, "Maximum number of events to read")
	pflag.Parse()

	configuration, err := decoder.LoadConfiguration(*configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		os.Exit(1)
	}
	if pflag.NArg() > 0 {
		configuration.FilesIn = pflag.Args()
	}
	if pflag.CommandLine.Changed("events") {
		configuration.MaxEvents = *maxEvents
	}
	if *thresholds != "" {
		configuration.ScanThresholds, err = parseThresholds(*thresholds)
		if err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}
	if len(configuration.FilesIn) != 1 {
		logger.Error("thresholdscan needs exactly one input file")
		os.Exit(2)
	}

	start := time.Now()
	rows, decoded, err := scan(configuration.FilesIn[0], configuration)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	fmt.Println("Total events decoded: ", decoded)

	fmt.Printf("%10s %10s %12s %12s %10s %10s\n", "threshold", "accepted", "<2 peaks", ">2 peaks", "dt [ns]", "muon [nC]")
	for _, row := range rows {
		fmt.Printf("%10d %10d %12d %12d %10.1f %10.4f\n", row.Threshold, row.Accepted,
			row.Rejected[decoder.TooFewPeaks], row.Rejected[decoder.TooManyPeaks], row.MeanTime, row.MeanMuon)
	}

	duration := time.Since(start)
	fmt.Printf("Total time: %d ms\n", duration.Milliseconds())
}

func parseThresholds(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	thresholds := make([]int, 0, len(parts))
	for _, part := range parts {
		threshold, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", part, err)
		}
		thresholds = append(thresholds, threshold)
	}
	return thresholds, nil
}

// scanThreshold streams the file once with the given threshold. Only the
// current event is held in memory.
func scanThreshold(path string, threshold int, configuration decoder.Configuration) (scanRow, int, error) {
	row := scanRow{Threshold: threshold, Rejected: make(map[decoder.RejectReason]int)}
	file, err := os.Open(path)
	if err != nil {
		return row, 0, &decoder.ErrOpenFile{Filename: path, Err: err}
	}
	defer file.Close()

	params := configuration.AnalysisParams()
	params.DerivativeThreshold = threshold
	analysis := decoder.NewAnalysis(params, nil, nil, logger, configuration.Verbosity)
	histograms := decoder.NewHistograms()

	reader := decoder.NewEventReader(bufio.NewReader(file), logger, configuration.Verbosity, configuration.MaxEvents)
	for {
		event, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return row, reader.Decoded(), fmt.Errorf("error reading event: %w", err)
		}
		if event.Index < configuration.Skip {
			continue
		}
		waveform, err := event.Channel(configuration.MonitoredChannel)
		if err != nil {
			return row, reader.Decoded(), err
		}
		_, result, reason := analysis.Evaluate(waveform)
		if reason != decoder.Accepted {
			row.Rejected[reason]++
			continue
		}
		row.Accepted++
		histograms.Record(result)
	}
	row.MeanTime = histograms.TimeDifference.Mean()
	row.MeanMuon = histograms.MuonCharge.Mean()
	return row, reader.Decoded(), nil
}

// scan runs one pass per threshold and returns the rows with the number of
// events decoded in a pass.
func scan(path string, configuration decoder.Configuration) ([]scanRow, int, error) {
	rows := make([]scanRow, 0, len(configuration.ScanThresholds))
	decoded := 0
	for _, threshold := range configuration.ScanThresholds {
		row, n, err := scanThreshold(path, threshold, configuration)
		if err != nil {
			return rows, n, err
		}
		decoded = n
		rows = append(rows, row)
	}
	return rows, decoded, nil
}
