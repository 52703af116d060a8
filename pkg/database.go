package decoder

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	sqlx "github.com/jmoiron/sqlx" //make alias name the package to sqlx
)

func ConnectToDatabase(user string, pass string, host string, port int, dbname string) (*sqlx.DB, error) {
	dbURI := fmt.Sprintf("%s:%s@(%s:%d)/%s?parseTime=true", user, pass, host, port, dbname)
	db, err := sqlx.Connect("mysql", dbURI)
	return db, err
}

const createRunsTable = `CREATE TABLE IF NOT EXISTS AnalysisRuns (
	RunID            CHAR(27)     NOT NULL,
	FileIndex        INT          NOT NULL,
	FileName         VARCHAR(255) NOT NULL,
	EventsDecoded    INT          NOT NULL,
	EventsAnalysed   INT          NOT NULL,
	EventsAccepted   INT          NOT NULL,
	EventsRejected   INT          NOT NULL,
	FooterMismatches INT          NOT NULL,
	PRIMARY KEY (RunID, FileIndex)
)`

const createResultsTable = `CREATE TABLE IF NOT EXISTS AnalysisResults (
	RunID          CHAR(27) NOT NULL,
	FileIndex      INT      NOT NULL,
	EventNumber    INT      NOT NULL,
	TimeDifference INT      NOT NULL,
	MuonCharge     DOUBLE   NOT NULL,
	ElectronCharge DOUBLE   NOT NULL,
	PRIMARY KEY (RunID, FileIndex, EventNumber)
)`

const insertRun = `INSERT INTO AnalysisRuns
	(RunID, FileIndex, FileName, EventsDecoded, EventsAnalysed, EventsAccepted, EventsRejected, FooterMismatches)
	VALUES (:RunID, :FileIndex, :FileName, :EventsDecoded, :EventsAnalysed, :EventsAccepted, :EventsRejected, :FooterMismatches)`

const insertResult = `INSERT INTO AnalysisResults
	(RunID, FileIndex, EventNumber, TimeDifference, MuonCharge, ElectronCharge)
	VALUES (:RunID, :FileIndex, :EventNumber, :TimeDifference, :MuonCharge, :ElectronCharge)`

type RunEntry struct {
	RunID            string `db:"RunID"`
	FileIndex        int    `db:"FileIndex"`
	FileName         string `db:"FileName"`
	EventsDecoded    int    `db:"EventsDecoded"`
	EventsAnalysed   int    `db:"EventsAnalysed"`
	EventsAccepted   int    `db:"EventsAccepted"`
	EventsRejected   int    `db:"EventsRejected"`
	FooterMismatches int    `db:"FooterMismatches"`
}

type ResultEntry struct {
	RunID          string  `db:"RunID"`
	FileIndex      int     `db:"FileIndex"`
	EventNumber    int     `db:"EventNumber"`
	TimeDifference int     `db:"TimeDifference"`
	MuonCharge     float64 `db:"MuonCharge"`
	ElectronCharge float64 `db:"ElectronCharge"`
}

func NewRunEntry(summary RunSummary) RunEntry {
	return RunEntry{
		RunID:            summary.RunID,
		FileIndex:        summary.FileIndex,
		FileName:         summary.File,
		EventsDecoded:    summary.EventsDecoded,
		EventsAnalysed:   summary.EventsAnalysed,
		EventsAccepted:   summary.EventsAccepted,
		EventsRejected:   summary.EventsRejected(),
		FooterMismatches: summary.FooterMismatches,
	}
}

func NewResultEntry(runID string, result AnalysisResult) ResultEntry {
	return ResultEntry{
		RunID:          runID,
		FileIndex:      result.FileIndex,
		EventNumber:    result.EventNumber,
		TimeDifference: result.TimeDifferenceNs,
		MuonCharge:     result.MuonChargeNc,
		ElectronCharge: result.ElectronChargeNc,
	}
}

// ResultStore keeps a catalogue of runs and accepted events in MySQL.
type ResultStore struct {
	db        *sqlx.DB
	runID     string
	logger    Logger
	verbosity int
}

func NewResultStore(db *sqlx.DB, runID string, logger Logger, verbosity int) (*ResultStore, error) {
	if logger == nil {
		logger = NopLogger{}
	}
	for _, query := range []string{createRunsTable, createResultsTable} {
		if verbosity > 2 {
			logger.Info(fmt.Sprintf("Query: %s", query), "database")
		}
		if _, err := db.Exec(query); err != nil {
			return nil, fmt.Errorf("error creating tables: %w", err)
		}
	}
	return &ResultStore{db: db, runID: runID, logger: logger, verbosity: verbosity}, nil
}

func (s *ResultStore) Record(result AnalysisResult) error {
	if _, err := s.db.NamedExec(insertResult, NewResultEntry(s.runID, result)); err != nil {
		return fmt.Errorf("error inserting result: %w", err)
	}
	return nil
}

func (s *ResultStore) WriteRunInfo(summary RunSummary) error {
	if s.verbosity > 0 {
		message := fmt.Sprintf("Storing run %s file %d in database", summary.RunID, summary.FileIndex)
		s.logger.Info(message, "database")
	}
	if _, err := s.db.NamedExec(insertRun, NewRunEntry(summary)); err != nil {
		return fmt.Errorf("error inserting run: %w", err)
	}
	return nil
}

func (s *ResultStore) CountResults(runID string) (int, error) {
	var count int
	err := s.db.Get(&count, "SELECT COUNT(*) FROM AnalysisResults WHERE RunID = ?", runID)
	if err != nil {
		return 0, fmt.Errorf("error querying database: %w", err)
	}
	return count, nil
}

func (s *ResultStore) Runs(runID string) ([]RunEntry, error) {
	rows, err := s.db.Queryx("SELECT * FROM AnalysisRuns WHERE RunID = ? ORDER BY FileIndex", runID)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	runs := make([]RunEntry, 0)
	for rows.Next() {
		entry := RunEntry{}
		if err := rows.StructScan(&entry); err != nil {
			return nil, fmt.Errorf("error scanning DB row: %w", err)
		}
		runs = append(runs, entry)
	}
	return runs, rows.Err()
}
