package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	sqlx "github.com/jmoiron/sqlx"
	decoder "github.com/next-exp/daqreader_go/pkg"
	"github.com/spf13/pflag"
)

var logger decoder.Logger

func init() {
	logger = decoder.NewSlogLogger(os.Stdout, os.Stderr)
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, flags, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		logger.Error(err.Error())
		return 2
	}

	configuration, err := decoder.LoadConfiguration(opts.configFilename)
	if err != nil {
		message := fmt.Errorf("Error reading configuration file: %w", err)
		logger.Error(message.Error())
		return 1
	}
	configuration = applyOptions(configuration, opts, flags)

	verbosity := configuration.Verbosity
	if verbosity > 0 {
		if opts.configFilename != "" {
			logger.Info(fmt.Sprintf("Reading configuration file: %s", opts.configFilename), "main")
		}
		printConfiguration(configuration, logger)
	}
	if len(configuration.FilesIn) == 0 {
		flags.Usage()
		return 2
	}

	runID := decoder.NewRunID()
	if verbosity > 0 {
		logger.Info(fmt.Sprintf("Run ID: %s", runID), "main")
	}

	sinks := decoder.MultiSink{}
	var diagnostics decoder.DiagnosticSink

	var writer *decoder.Writer
	if configuration.WriteData {
		writer, err = decoder.NewWriter(configuration.OutputFilename(), configuration.WriteWaveforms,
			configuration.CompressionLevel, logger, verbosity)
		if err != nil {
			message := fmt.Errorf("Error creating output file: %w", err)
			logger.Error(message.Error())
			return 1
		}
		sinks = append(sinks, writer)
		if configuration.WriteWaveforms {
			diagnostics = writer
		}
	}

	var store *decoder.ResultStore
	if !configuration.NoDB {
		var dbConn *sqlx.DB
		dbConn, err = decoder.ConnectToDatabase(configuration.User, configuration.Passwd,
			configuration.Host, configuration.Port, configuration.DBName)
		if err != nil {
			message := fmt.Errorf("Error connection to database: %w", err)
			logger.Error(message.Error())
			closeWriter(writer)
			return 1
		}
		defer dbConn.Close()
		store, err = decoder.NewResultStore(dbConn, runID, logger, verbosity)
		if err != nil {
			logger.Error(err.Error())
			closeWriter(writer)
			return 1
		}
		sinks = append(sinks, store)
	}

	start := time.Now()
	results := decoder.ProcessFiles(configuration.FilesIn, decoder.RunOptions{
		RunID:       runID,
		Config:      configuration,
		Sink:        sinks,
		Diagnostics: diagnostics,
		Logger:      logger,
	})

	status := 0
	totalDecoded := 0
	totalAccepted := 0
	for _, result := range results {
		summary := result.Summary
		totalDecoded += summary.EventsDecoded
		totalAccepted += summary.EventsAccepted

		if err := sinks.WriteRunInfo(summary); err != nil {
			logger.Error(fmt.Errorf("error writing run info: %w", err).Error())
			status = 1
		}
		logger.Info(fmt.Sprintf("%s: events decoded %d, accepted %d, rejected %d",
			summary.File, summary.EventsDecoded, summary.EventsAccepted, summary.EventsRejected()), "main")
		if verbosity > 0 {
			for reason, n := range summary.Rejected {
				logger.Info(fmt.Sprintf("  %v: %d", reason, n), "main")
			}
			if summary.FooterMismatches > 0 {
				logger.Info(fmt.Sprintf("  footer mismatches: %d", summary.FooterMismatches), "main")
			}
		}
		if result.Err != nil {
			logger.Error(fmt.Errorf("error processing %s: %w", summary.File, result.Err).Error())
			status = 1
		}
	}

	if err := closeWriter(writer); err != nil {
		status = 1
	}
	if store != nil && verbosity > 0 {
		if count, err := store.CountResults(runID); err == nil {
			logger.Info(fmt.Sprintf("Results stored in database: %d", count), "main")
		} else {
			logger.Error(err.Error())
		}
		if verbosity > 1 {
			runs, err := store.Runs(runID)
			if err != nil {
				logger.Error(err.Error())
			}
			for _, entry := range runs {
				logger.Info(fmt.Sprintf("Stored %s: decoded %d, accepted %d, rejected %d",
					entry.FileName, entry.EventsDecoded, entry.EventsAccepted, entry.EventsRejected), "database")
			}
		}
	}

	fmt.Println("Total events decoded: ", totalDecoded)
	fmt.Println("Total events accepted: ", totalAccepted)
	if verbosity > 0 {
		duration := time.Since(start)
		logger.Info(fmt.Sprintf("Total time: %d ms", duration.Milliseconds()), "main")
	}
	return status
}

func closeWriter(writer *decoder.Writer) error {
	if writer == nil {
		return nil
	}
	if err := writer.Close(); err != nil {
		logger.Error(fmt.Errorf("error closing output file: %w", err).Error())
		return err
	}
	return nil
}
