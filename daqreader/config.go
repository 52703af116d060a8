package main

import (
	"fmt"
	"os"
	"strconv"

	decoder "github.com/next-exp/daqreader_go/pkg"
	"github.com/spf13/pflag"
)

type options struct {
	configFilename string
	maxEvents      int
	fileOut        string
	verbosity      int
	numWorkers     int
	waveforms      bool
	noDB           bool
	files          []string
}

func parseFlags(args []string) (options, *pflag.FlagSet, error) {
	var opts options
	flags := pflag.NewFlagSet("daqreader", pflag.ContinueOnError)
	flags.StringVarP(&opts.configFilename, "config", "c", "", "Configuration file path (JSON or YAML)")
	flags.IntVarP(&opts.maxEvents, "events", "n", 0, "Maximum number of events to read")
	flags.StringVarP(&opts.fileOut, "out", "o", "", "Output HDF5 file (default: <first input>.h5)")
	flags.IntVarP(&opts.verbosity, "verbosity", "v", 0, "Verbosity level (0-3)")
	flags.IntVarP(&opts.numWorkers, "workers", "w", 1, "Number of files processed in parallel")
	flags.BoolVar(&opts.waveforms, "waveforms", false, "Write calibrated waveforms and peaks for inspection")
	flags.BoolVar(&opts.noDB, "no-db", true, "Do not store results in the database")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: daqreader [flags] <file>... [<nevents>]\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return opts, flags, err
	}
	opts.files = flags.Args()
	return opts, flags, nil
}

// applyOptions lets the command line override the configuration file. A
// trailing integer argument that is not a file is the event limit, as in
// "daqreader run.dat 1000".
func applyOptions(config decoder.Configuration, opts options, flags *pflag.FlagSet) decoder.Configuration {
	files := opts.files
	if n := len(files); n > 1 && !flags.Changed("events") {
		last := files[n-1]
		if _, statErr := os.Stat(last); statErr != nil {
			if events, err := strconv.Atoi(last); err == nil {
				config.MaxEvents = events
				files = files[:n-1]
			}
		}
	}
	if len(files) > 0 {
		config.FilesIn = files
	}
	if flags.Changed("events") {
		config.MaxEvents = opts.maxEvents
	}
	if flags.Changed("out") {
		config.FileOut = opts.fileOut
	}
	if flags.Changed("verbosity") {
		config.Verbosity = opts.verbosity
	}
	if flags.Changed("workers") {
		config.NumWorkers = opts.numWorkers
	}
	if flags.Changed("waveforms") {
		config.WriteWaveforms = opts.waveforms
	}
	if flags.Changed("no-db") {
		config.NoDB = opts.noDB
	}
	return config
}

func printConfiguration(config decoder.Configuration, logger decoder.Logger) {
	logger.Info(fmt.Sprintf("Files in: %v", config.FilesIn), "config")
	logger.Info(fmt.Sprintf("File out: %s", config.OutputFilename()), "config")
	logger.Info(fmt.Sprintf("Max events: %d", config.MaxEvents), "config")
	logger.Info(fmt.Sprintf("Skip: %d", config.Skip), "config")
	logger.Info(fmt.Sprintf("Verbosity: %d", config.Verbosity), "config")
	logger.Info(fmt.Sprintf("Monitored channel: %d", config.MonitoredChannel), "config")
	logger.Info(fmt.Sprintf("Derivative threshold: %d", config.DerivativeThreshold), "config")
	logger.Info(fmt.Sprintf("Min time difference: %d ns", config.MinTimeDifferenceNs), "config")
	logger.Info(fmt.Sprintf("Min charge: %g nC", config.MinChargeNc), "config")
	logger.Info(fmt.Sprintf("Write data: %t", config.WriteData), "config")
	logger.Info(fmt.Sprintf("Write waveforms: %t", config.WriteWaveforms), "config")
	logger.Info(fmt.Sprintf("Max diagnostic events: %d", config.MaxDiagnosticEvents), "config")
	logger.Info(fmt.Sprintf("Compression level: %d", config.CompressionLevel), "config")
	logger.Info(fmt.Sprintf("Number of workers: %d", config.NumWorkers), "config")
	logger.Info(fmt.Sprintf("No DB: %t", config.NoDB), "config")
	logger.Info(fmt.Sprintf("Host: %s:%d", config.Host, config.Port), "config")
	logger.Info(fmt.Sprintf("DB name: %s", config.DBName), "config")
}
