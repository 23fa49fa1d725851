package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/dctl/internal/logging"
	"github.com/san-kum/dctl/internal/sim"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

// TraceHeader is the column order of trace.csv.
var TraceHeader = []string{"step", "time", "setpoint", "measurement", "control", "integral", "mode"}

type Store struct {
	baseDir string
	log     *zap.Logger
}

func New(baseDir string, log *zap.Logger) *Store {
	return &Store{baseDir: baseDir, log: logging.OrNop(log)}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Timestamp time.Time `json:"timestamp"`
	Ts        float64   `json:"ts"`
	Steps     int       `json:"steps"`
	Duration  float64   `json:"duration"`
	Params    Values    `json:"params"`
	Metrics   Values    `json:"metrics"`
}

// Save writes a run directory named after the scenario and the current time.
func (s *Store) Save(scenario string, ts float64, params map[string]float64, result *sim.Result) (string, error) {
	now := time.Now()
	runID, runDir, err := s.newRunDir(scenario, now)
	if err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Scenario:  scenario,
		Timestamp: now,
		Ts:        ts,
		Steps:     result.StepsTaken,
		Duration:  float64(result.StepsTaken) * ts,
		Params:    params,
		Metrics:   result.Metrics,
	}

	if err := writeRun(runDir, meta, result); err != nil {
		if rmErr := os.RemoveAll(runDir); rmErr != nil {
			s.log.Warn("could not remove partial run", zap.String("dir", runDir), zap.Error(rmErr))
		}
		return "", fmt.Errorf("save run %s: %w", runID, err)
	}

	s.log.Info("run saved", zap.String("id", runID), zap.Int("steps", result.StepsTaken))
	return runID, nil
}

func (s *Store) newRunDir(scenario string, now time.Time) (string, string, error) {
	base := fmt.Sprintf("%s_%d", scenario, now.Unix())
	runID := base
	for i := 2; ; i++ {
		runDir := filepath.Join(s.baseDir, runID)
		err := os.Mkdir(runDir, 0755)
		if err == nil {
			return runID, runDir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		runID = fmt.Sprintf("%s-%d", base, i)
	}
}

func writeRun(runDir string, meta RunMetadata, result *sim.Result) error {
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(runDir, traceFile))
	if err != nil {
		return err
	}
	if err := WriteTrace(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// WriteTrace writes a result as CSV with TraceHeader columns.
func WriteTrace(w io.Writer, result *sim.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TraceHeader); err != nil {
		return err
	}

	for i := range result.Times {
		row := []string{
			strconv.Itoa(i + 1),
			formatFloat(result.Times[i]),
			formatFloat(result.Setpoints[i]),
			formatFloat(result.Measurements[i]),
			formatFloat(result.Controls[i]),
			formatFloat(result.Integrals[i]),
			result.Modes[i],
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns all readable runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			s.log.Debug("skipping run directory", zap.String("dir", entry.Name()), zap.Error(err))
			continue
		}
		runs = append(runs, *meta)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrace reads trace.csv back into a result. Metrics come from the
// metadata file.
func (s *Store) LoadTrace(runID string) (*sim.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(s.TracePath(runID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	result := &sim.Result{
		Times:        table.Column("time"),
		Setpoints:    table.Column("setpoint"),
		Measurements: table.Column("measurement"),
		Controls:     table.Column("control"),
		Integrals:    table.Column("integral"),
		Modes:        table.Text["mode"],
		Metrics:      meta.Metrics,
		StepsTaken:   table.Len(),
	}
	if result.Metrics == nil {
		result.Metrics = make(map[string]float64)
	}
	return result, nil
}

func (s *Store) TracePath(runID string) string {
	return filepath.Join(s.baseDir, runID, traceFile)
}

// ExportCSV copies a run's trace to w.
func (s *Store) ExportCSV(runID string, w io.Writer) error {
	if _, err := s.Load(runID); err != nil {
		return err
	}
	f, err := os.Open(s.TracePath(runID))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
