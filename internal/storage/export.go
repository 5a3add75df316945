package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/clothsim/internal/sim"
)

type Frame struct {
	Time      float64      `json:"time"`
	Positions [][3]float32 `json:"positions"`
}

type ExportData struct {
	ID       string             `json:"id"`
	Scenario string             `json:"scenario"`
	Dt       float32            `json:"dt"`
	Steps    int                `json:"steps"`
	Times    []float64          `json:"times"`
	Energy   []float64          `json:"energy,omitempty"`
	Frames   []Frame            `json:"frames"`
	Metrics  map[string]float64 `json:"metrics"`
}

// NewExport assembles the export of a stored run.
func NewExport(meta *RunMetadata, times, energy []float64, snaps []sim.Snapshot, snapTimes []float64) *ExportData {
	data := &ExportData{
		ID:       meta.ID,
		Scenario: meta.Scenario,
		Dt:       meta.Dt,
		Steps:    len(times),
		Times:    times,
		Energy:   energy,
		Frames:   make([]Frame, len(snaps)),
		Metrics:  meta.Metrics,
	}
	for i, snap := range snaps {
		f := Frame{Positions: make([][3]float32, len(snap))}
		if i < len(snapTimes) {
			f.Time = snapTimes[i]
		}
		for k, p := range snap {
			f.Positions[k] = [3]float32(p)
		}
		data.Frames[i] = f
	}
	return data
}

func WriteJSON(w io.Writer, data *ExportData) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func ExportJSON(path string, data *ExportData) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, data)
}

// Export loads run runID and writes it as JSON to w.
func (s *Store) Export(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	times, energy, err := s.LoadTrace(runID)
	if err != nil {
		return err
	}
	snaps, snapTimes, err := s.LoadSnapshots(runID)
	if err != nil {
		return err
	}
	return WriteJSON(w, NewExport(meta, times, energy, snaps, snapTimes))
}
