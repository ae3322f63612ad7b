package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/dynstep/internal/driver"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID               string    `json:"id"`
	Model            string    `json:"model"`
	Timestamp        time.Time `json:"timestamp"`
	Status           string    `json:"status"`
	Steps            int       `json:"steps"`
	NewtonIterations int       `json:"newton_iterations"`
	RejectedAttempts int       `json:"rejected_attempts"`
	MinAcceptedDt    float64   `json:"min_accepted_dt"`
	MaxAcceptedDt    float64   `json:"max_accepted_dt"`
	FinalTime        float64   `json:"final_time"`
}

// Save writes one run as metadata.json plus a states.csv with a time
// column followed by the given quantity columns.
func (s *Store) Save(model string, quantities []string, result *driver.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", model, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:               runID,
		Model:            model,
		Timestamp:        time.Now(),
		Status:           result.Report.Status.String(),
		Steps:            len(result.Report.Steps),
		NewtonIterations: result.Report.Stats.NewtonIterations,
		RejectedAttempts: result.Report.Stats.RejectedAttempts,
		MinAcceptedDt:    result.Report.Stats.MinAcceptedDt,
		MaxAcceptedDt:    result.Report.Stats.MaxAcceptedDt,
	}
	if n := len(result.Times); n > 0 {
		meta.FinalTime = result.Times[n-1]
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	header := append([]string{"time"}, quantities...)
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, state := range result.States {
		row := make([]string, 0, len(header))
		row = append(row, strconv.FormatFloat(result.Times[i], 'g', -1, 64))
		for _, q := range quantities {
			v, _ := state.Quantity(q)
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	runs := make([]RunMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.LoadMetadata(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) LoadMetadata(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries reads states.csv back as one series per column.
func (s *Store) LoadSeries(runID string) (map[string][]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: empty states file for run %s", runID)
	}

	header := records[0]
	series := make(map[string][]float64, len(header))
	for _, row := range records[1:] {
		for i, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: run %s column %s: %w", runID, header[i], err)
			}
			series[header[i]] = append(series[header[i]], v)
		}
	}
	return series, nil
}
