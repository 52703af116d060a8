package decoder

import (
	"bufio"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/segmentio/ksuid"
)

func NewRunID() string {
	return ksuid.New().String()
}

type RunOptions struct {
	RunID       string
	Config      Configuration
	Sink        ResultSink
	Diagnostics DiagnosticSink
	Logger      Logger
}

type FileJob struct {
	Index int
	Path  string
}

type FileResult struct {
	Summary RunSummary
	Err     error
}

// AnalyseFile decodes and analyses one file from start to end.
func AnalyseFile(index int, path string, opts RunOptions) (RunSummary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = NopLogger{}
	}
	config := opts.Config

	file, err := os.Open(path)
	if err != nil {
		summary := RunSummary{RunID: opts.RunID, FileIndex: index, File: path, Rejected: make(map[RejectReason]int)}
		return summary, &ErrOpenFile{Filename: path, Err: err}
	}
	defer file.Close()

	if config.Verbosity > 0 {
		logger.Info(fmt.Sprintf("Reading file %s", path), "analysis")
	}
	reader := NewEventReader(bufio.NewReader(file), logger, config.Verbosity, config.MaxEvents)
	analysis := NewAnalysis(config.AnalysisParams(), opts.Sink, opts.Diagnostics, logger, config.Verbosity)
	analysis.SetRun(opts.RunID, index, path)
	return analysis.Run(reader)
}

func worker(id int, jobs <-chan FileJob, results chan<- FileResult, opts RunOptions, failed *atomic.Bool) {
	var current FileJob
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d recovered from panic on file %s: %v", id, current.Path, r)
			results <- FileResult{
				Summary: RunSummary{RunID: opts.RunID, FileIndex: current.Index, File: current.Path},
				Err:     err,
			}
			failed.Store(true)
			for job := range jobs {
				results <- skippedFile(job, opts.RunID)
			}
		}
	}()

	for job := range jobs {
		current = job
		if failed.Load() {
			results <- skippedFile(job, opts.RunID)
			continue
		}
		if opts.Config.Verbosity > 1 {
			opts.Logger.Info(fmt.Sprintf("Worker %d processing file %s", id, job.Path), "workers")
		}
		summary, err := AnalyseFile(job.Index, job.Path, opts)
		if err != nil && IsFormatError(err) {
			failed.Store(true)
		}
		results <- FileResult{Summary: summary, Err: err}
	}
}

func skippedFile(job FileJob, runID string) FileResult {
	return FileResult{
		Summary: RunSummary{RunID: runID, FileIndex: job.Index, File: job.Path, Rejected: make(map[RejectReason]int)},
		Err:     fmt.Errorf("file %s not processed: run aborted", job.Path),
	}
}

// ProcessFiles runs one sequential pipeline per file on NumWorkers goroutines.
// Events of one file are never split across workers. After a FormatError no
// new file is started. Results are returned in input order.
func ProcessFiles(files []string, opts RunOptions) []FileResult {
	if opts.Logger == nil {
		opts.Logger = NopLogger{}
	}
	nWorkers := min(max(opts.Config.NumWorkers, 1), len(files))
	if nWorkers > 1 && opts.Sink != nil {
		opts.Sink = NewLockedSink(opts.Sink)
	}

	jobs := make(chan FileJob, len(files))
	results := make(chan FileResult, len(files))
	var failed atomic.Bool
	var wg sync.WaitGroup

	for w := 1; w <= nWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(id, jobs, results, opts, &failed)
		}(w)
	}
	for i, path := range files {
		jobs <- FileJob{Index: i, Path: path}
	}
	close(jobs)
	wg.Wait()
	close(results)

	ordered := make([]FileResult, len(files))
	for result := range results {
		ordered[result.Summary.FileIndex] = result
	}
	return ordered
}
