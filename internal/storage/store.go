// Package storage writes run telemetry: a metadata.json summary and a
// frames.csv time series per run. It never stores simulation state.
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

	"github.com/san-kum/broomsim/internal/dynamo"
	"github.com/san-kum/broomsim/internal/sim"
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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Policy    string             `json:"policy"`
	Dt        float64            `json:"dt"`
	Frames    int                `json:"frames"`
	Time      float64            `json:"time"`
	Stats     dynamo.Stats       `json:"stats"`
	Errors    int                `json:"errors"`
	Metrics   map[string]float64 `json:"metrics"`
}

// NewMetadata summarises a finished run.
func NewMetadata(name string, seed int64, policy string, dt float64, result *sim.Result) RunMetadata {
	return RunMetadata{
		Name:    name,
		Seed:    seed,
		Policy:  policy,
		Dt:      dt,
		Frames:  result.Frames,
		Time:    result.Time,
		Stats:   result.Stats,
		Errors:  len(result.Errors),
		Metrics: result.Metrics,
	}
}

var frameHeader = []string{
	"frame", "time", "dt", "substeps",
	"in_scene", "total_spawned", "total_destroyed",
	"spawned", "evicted", "contacts", "max_penetration", "kinetic_energy",
}

// Save writes a new run directory and returns its id.
func (s *Store) Save(meta RunMetadata, frames []sim.FrameSample) (string, error) {
	meta.Timestamp = time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
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

	csvFile, err := os.Create(filepath.Join(runDir, "frames.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(frameHeader); err != nil {
		return "", err
	}
	for _, f := range frames {
		if err := w.Write(frameRow(f)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

func frameRow(f sim.FrameSample) []string {
	ff := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	return []string{
		strconv.Itoa(f.Frame),
		ff(f.Time),
		ff(f.Dt),
		strconv.Itoa(f.SubSteps),
		strconv.Itoa(f.Stats.InScene),
		strconv.Itoa(f.Stats.TotalSpawned),
		strconv.Itoa(f.Stats.TotalDestroyed),
		strconv.Itoa(f.Spawned),
		strconv.Itoa(f.Evicted),
		strconv.Itoa(f.Contacts),
		ff(f.MaxPenetration),
		ff(f.KineticEnergy),
	}
}

func parseFrame(record []string) (sim.FrameSample, error) {
	if len(record) != len(frameHeader) {
		return sim.FrameSample{}, fmt.Errorf("want %d fields, got %d", len(frameHeader), len(record))
	}
	var ints [8]int
	var floats [4]float64
	intCols := []int{0, 3, 4, 5, 6, 7, 8, 9}
	floatCols := []int{1, 2, 10, 11}
	for i, c := range intCols {
		v, err := strconv.Atoi(record[c])
		if err != nil {
			return sim.FrameSample{}, fmt.Errorf("%s: %w", frameHeader[c], err)
		}
		ints[i] = v
	}
	for i, c := range floatCols {
		v, err := strconv.ParseFloat(record[c], 64)
		if err != nil {
			return sim.FrameSample{}, fmt.Errorf("%s: %w", frameHeader[c], err)
		}
		floats[i] = v
	}
	return sim.FrameSample{
		Frame:    ints[0],
		Time:     floats[0],
		Dt:       floats[1],
		SubSteps: ints[1],
		Stats: dynamo.Stats{
			InScene:        ints[2],
			TotalSpawned:   ints[3],
			TotalDestroyed: ints[4],
		},
		Spawned:        ints[5],
		Evicted:        ints[6],
		Contacts:       ints[7],
		MaxPenetration: floats[2],
		KineticEnergy:  floats[3],
	}, nil
}

// List returns every readable run, newest first.
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
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
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

func (s *Store) LoadFrames(runID string) ([]sim.FrameSample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "frames.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.FrameSample{}, nil
	}

	frames := make([]sim.FrameSample, 0, len(records)-1)
	for i, record := range records[1:] {
		f, err := parseFrame(record)
		if err != nil {
			return nil, fmt.Errorf("%s frames.csv line %d: %w", runID, i+2, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}
