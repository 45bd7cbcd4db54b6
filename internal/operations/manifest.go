package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Experiment statuses
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusNoRuns    = "no_runs"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Field statuses
const (
	FieldWritten     = "written"
	FieldCollision   = "collision"
	FieldUnsupported = "unsupported_format"
	FieldFailed      = "failed"
)

// Manifest records what one invocation exported
type Manifest struct {
	mu sync.RWMutex

	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Status    string    `json:"status"`

	Experiments []*ExperimentRecord `json:"experiments"`
}

// ExperimentRecord tracks one experiment
type ExperimentRecord struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Runs      []string      `json:"runs"`
	Sampled   bool          `json:"sampled,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  string        `json:"duration"`
	Fields    []FieldRecord `json:"fields"`
	Error     string        `json:"error,omitempty"`
}

// FieldRecord tracks one written (or skipped) field matrix
type FieldRecord struct {
	Field     string   `json:"field"`
	Partition []string `json:"partition,omitempty"`
	Status    string   `json:"status"`
	Path      string   `json:"path,omitempty"`
	ObjectKey string   `json:"object_key,omitempty"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Padded    int      `json:"padded"`
	Error     string   `json:"error,omitempty"`
}

// NewManifest creates a running manifest. An empty id is derived from the
// start time.
func NewManifest(id string) *Manifest {
	now := time.Now()
	if id == "" {
		id = fmt.Sprintf("manifest-%d", now.Unix())
	}
	return &Manifest{
		ID:          id,
		StartTime:   now,
		Status:      StatusRunning,
		Experiments: []*ExperimentRecord{},
	}
}

// StartExperiment appends a running record for name
func (m *Manifest) StartExperiment(name string) *ExperimentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &ExperimentRecord{
		Name:      name,
		Status:    StatusRunning,
		Runs:      []string{},
		StartTime: time.Now(),
		Fields:    []FieldRecord{},
	}
	m.Experiments = append(m.Experiments, rec)
	return rec
}

// FinishExperiment closes rec with status. err may be nil.
func (m *Manifest) FinishExperiment(rec *ExperimentRecord, status string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.Status = status
	rec.EndTime = time.Now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime).String()
	if err != nil {
		rec.Error = err.Error()
	}
}

// AddField appends a field outcome to rec
func (m *Manifest) AddField(rec *ExperimentRecord, field FieldRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Fields = append(rec.Fields, field)
}

// Finish closes the manifest
func (m *Manifest) Finish(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Status = status
	m.EndTime = time.Now()
}

// Experiment returns the record of name
func (m *Manifest) Experiment(name string) (*ExperimentRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.Experiments {
		if rec.Name == name {
			return rec, true
		}
	}
	return nil, false
}

// FieldCounts returns the number of field records per status
func (m *Manifest) FieldCounts() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, rec := range m.Experiments {
		for _, f := range rec.Fields {
			counts[f.Status]++
		}
	}
	return counts
}

// Save writes the manifest as indented JSON, creating parent directories
func (m *Manifest) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &manifest, nil
}
