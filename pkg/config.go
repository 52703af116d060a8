package decoder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Configuration struct {
	FilesIn             []string `json:"files_in" yaml:"files_in"`
	FileOut             string   `json:"file_out" yaml:"file_out"`
	MaxEvents           int      `json:"max_events" yaml:"max_events"`
	Skip                int      `json:"skip" yaml:"skip"`
	Verbosity           int      `json:"verbosity" yaml:"verbosity"`
	MonitoredChannel    int      `json:"monitored_channel" yaml:"monitored_channel"`
	DerivativeThreshold int      `json:"derivative_threshold" yaml:"derivative_threshold"`
	MinTimeDifferenceNs int      `json:"min_time_difference_ns" yaml:"min_time_difference_ns"`
	MinChargeNc         float64  `json:"min_charge_nc" yaml:"min_charge_nc"`
	WriteData           bool     `json:"write_data" yaml:"write_data"`
	WriteWaveforms      bool     `json:"write_waveforms" yaml:"write_waveforms"`
	MaxDiagnosticEvents int      `json:"max_diagnostic_events" yaml:"max_diagnostic_events"`
	CompressionLevel    int      `json:"compression_level" yaml:"compression_level"`
	NumWorkers          int      `json:"num_workers" yaml:"num_workers"`
	NoDB                bool     `json:"no_db" yaml:"no_db"`
	Host                string   `json:"host" yaml:"host"`
	Port                int      `json:"port" yaml:"port"`
	User                string   `json:"user" yaml:"user"`
	Passwd              string   `json:"pass" yaml:"pass"`
	DBName              string   `json:"dbname" yaml:"dbname"`
	ScanThresholds      []int    `json:"scan_thresholds" yaml:"scan_thresholds"`
}

func DefaultConfiguration() Configuration {
	var config Configuration

	config.MaxEvents = 1000000000
	config.Skip = 0
	config.Verbosity = 0
	config.MonitoredChannel = 1
	config.DerivativeThreshold = DerivativeThreshold
	config.MinTimeDifferenceNs = MinTimeDifferenceNs
	config.MinChargeNc = MinChargeNc
	config.WriteData = true
	config.WriteWaveforms = false
	config.MaxDiagnosticEvents = 2000
	config.CompressionLevel = 4
	config.NumWorkers = 1
	config.NoDB = true
	config.Host = "localhost"
	config.Port = 3306
	config.User = "daqwriter"
	config.Passwd = ""
	config.DBName = "MUONDECAY"
	config.ScanThresholds = []int{-5, -8, -11, -14, -17, -20}
	return config
}

// LoadConfiguration returns the defaults when filename is empty. Keys missing
// from the file keep their default value.
func LoadConfiguration(filename string) (Configuration, error) {
	config := DefaultConfiguration()
	if filename == "" {
		return config, nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, err
	}
	return config, nil
}

// OutputFilename defaults to a file next to the first input.
func (c Configuration) OutputFilename() string {
	if c.FileOut != "" {
		return c.FileOut
	}
	if len(c.FilesIn) == 0 {
		return "daqreader.h5"
	}
	return c.FilesIn[0] + ".h5"
}

func (c Configuration) AnalysisParams() AnalysisParams {
	return AnalysisParams{
		MonitoredChannel:    c.MonitoredChannel,
		DerivativeThreshold: c.DerivativeThreshold,
		MinTimeDifferenceNs: c.MinTimeDifferenceNs,
		MinChargeNc:         c.MinChargeNc,
		Skip:                c.Skip,
		MaxDiagnosticEvents: c.MaxDiagnosticEvents,
	}
}
