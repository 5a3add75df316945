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

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/san-kum/clothsim/internal/config"
	"github.com/san-kum/clothsim/internal/sim"
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
	ID          string             `json:"id"`
	Scenario    string             `json:"scenario"`
	Preset      string             `json:"preset"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        int64              `json:"seed"`
	Dt          float32            `json:"dt"`
	Frames      int                `json:"frames"`
	Iterations  int                `json:"iterations"`
	RecordEvery int                `json:"record_every"`
	Particles   int                `json:"particles"`
	Errors      int                `json:"errors"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes metadata.json, trace.csv (time and kinetic energy per frame)
// and particles.csv (one row per particle per recorded snapshot).
func (s *Store) Save(cfg *config.Config, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d_%s", cfg.Run.Scenario, time.Now().Unix(), uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	particles := 0
	if len(result.Snapshots) > 0 {
		particles = len(result.Snapshots[0])
	}
	meta := RunMetadata{
		ID:          runID,
		Scenario:    cfg.Run.Scenario,
		Preset:      cfg.Preset,
		Timestamp:   time.Now(),
		Seed:        cfg.Run.Seed,
		Dt:          cfg.Solver.Dt,
		Frames:      result.StepsTaken,
		Iterations:  cfg.Solver.Iterations,
		RecordEvery: cfg.Run.RecordEvery,
		Particles:   particles,
		Errors:      len(result.Errors),
		Metrics:     result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, "metadata.json"), meta); err != nil {
		return "", err
	}
	if err := writeTrace(filepath.Join(runDir, "trace.csv"), result); err != nil {
		return "", err
	}
	if err := writeParticles(filepath.Join(runDir, "particles.csv"), result, cfg.Run.RecordEvery); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTrace(path string, result *sim.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "energy"}); err != nil {
		return err
	}
	for i := range result.Times {
		e := 0.0
		if i < len(result.Energy) {
			e = result.Energy[i]
		}
		row := []string{
			strconv.FormatFloat(result.Times[i], 'f', 6, 64),
			strconv.FormatFloat(e, 'g', 8, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeParticles(path string, result *sim.Result, every int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"frame", "time", "particle", "x", "y", "z"}); err != nil {
		return err
	}
	for k, snap := range result.Snapshots {
		frame := k * every
		t := 0.0
		if frame < len(result.Times) {
			t = result.Times[frame]
		}
		for i, p := range snap {
			row := []string{
				strconv.Itoa(frame),
				strconv.FormatFloat(t, 'f', 6, 64),
				strconv.Itoa(i),
				strconv.FormatFloat(float64(p.X()), 'g', -1, 32),
				strconv.FormatFloat(float64(p.Y()), 'g', -1, 32),
				strconv.FormatFloat(float64(p.Z()), 'g', -1, 32),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
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

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, nil
	}
	return records[1:], nil
}

// LoadTrace returns the per-frame times and kinetic energies.
func (s *Store) LoadTrace(runID string) ([]float64, []float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, "trace.csv"))
	if err != nil {
		return nil, nil, err
	}
	times := make([]float64, 0, len(records))
	energy := make([]float64, 0, len(records))
	for _, record := range records {
		if len(record) < 2 {
			continue
		}
		t, err1 := strconv.ParseFloat(record[0], 64)
		e, err2 := strconv.ParseFloat(record[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		times = append(times, t)
		energy = append(energy, e)
	}
	return times, energy, nil
}

// LoadSnapshots returns the recorded snapshots with their times.
func (s *Store) LoadSnapshots(runID string) ([]sim.Snapshot, []float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, "particles.csv"))
	if err != nil {
		return nil, nil, err
	}

	var (
		snaps []sim.Snapshot
		times []float64
		last  = -1
	)
	for _, record := range records {
		if len(record) < 6 {
			continue
		}
		frame, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		if frame != last {
			t, _ := strconv.ParseFloat(record[1], 64)
			snaps = append(snaps, sim.Snapshot{})
			times = append(times, t)
			last = frame
		}
		var p mgl32.Vec3
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(record[3+k], 32)
			if err != nil {
				continue
			}
			p[k] = float32(v)
		}
		snaps[len(snaps)-1] = append(snaps[len(snaps)-1], p)
	}
	return snaps, times, nil
}
