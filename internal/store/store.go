package store

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/fvsim/internal/scene"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

// Store keeps finished runs under baseDir, one directory per run.
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
	ID        string               `json:"id"`
	Scene     string               `json:"scene"`
	Timestamp time.Time            `json:"timestamp"`
	Particles int                  `json:"particles"`
	Workers   int                  `json:"workers"`
	Ticks     int                  `json:"ticks"`
	Friction  float64              `json:"friction"`
	Viewpoint *[3]float64          `json:"viewpoint,omitempty"`
	Metrics   map[string]float64   `json:"metrics"`
	History   map[string][]float64 `json:"history"`
}

// FrameRow is one particle position of one recorded frame.
type FrameRow struct {
	Tick  int     `csv:"tick"`
	Index int     `csv:"index"`
	X     float64 `csv:"x"`
	Y     float64 `csv:"y"`
	Z     float64 `csv:"z"`
}

// NewMetadata fills the metric summary of meta from a run result.
func NewMetadata(name string, result *scene.Result) RunMetadata {
	meta := RunMetadata{
		Scene:     name,
		Timestamp: time.Now(),
		Ticks:     result.TicksTaken,
		Metrics:   make(map[string]float64, len(result.Metrics)),
		History:   result.Metrics,
	}
	for k, v := range result.Metrics {
		if len(v) > 0 {
			meta.Metrics[k] = v[len(v)-1]
		}
	}
	return meta
}

// Save writes meta and the recorded frames and returns the run id. A run
// that cannot be written completely leaves no directory behind.
func (s *Store) Save(meta RunMetadata, result *scene.Result) (id string, err error) {
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%d", meta.Scene, meta.Timestamp.UnixNano())
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("store: encode %s: %w", meta.ID, err)
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(runDir)
			id = ""
		}
	}()

	if err = os.WriteFile(filepath.Join(runDir, metadataFile), append(data, '\n'), 0644); err != nil {
		return "", err
	}
	if err = ExportCSV(filepath.Join(runDir, framesFile), result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// finite encodes NaN and infinities as JSON null and decodes null as NaN.
type finite float64

func (f finite) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *finite) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = finite(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = finite(v)
	return nil
}

func toFinite(v []float64) []finite {
	out := make([]finite, len(v))
	for i, x := range v {
		out[i] = finite(x)
	}
	return out
}

func fromFinite(v []finite) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

type plainMetadata RunMetadata

type metadataJSON struct {
	*plainMetadata
	Metrics map[string]finite   `json:"metrics"`
	History map[string][]finite `json:"history"`
}

// MarshalJSON writes non-finite metric values as null.
func (m RunMetadata) MarshalJSON() ([]byte, error) {
	aux := metadataJSON{
		plainMetadata: (*plainMetadata)(&m),
		Metrics:       make(map[string]finite, len(m.Metrics)),
		History:       make(map[string][]finite, len(m.History)),
	}
	for k, v := range m.Metrics {
		aux.Metrics[k] = finite(v)
	}
	for k, v := range m.History {
		aux.History[k] = toFinite(v)
	}
	return json.Marshal(aux)
}

// UnmarshalJSON reads null metric values back as NaN.
func (m *RunMetadata) UnmarshalJSON(b []byte) error {
	aux := metadataJSON{plainMetadata: (*plainMetadata)(m)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	m.Metrics = make(map[string]float64, len(aux.Metrics))
	for k, v := range aux.Metrics {
		m.Metrics[k] = float64(v)
	}
	m.History = make(map[string][]float64, len(aux.History))
	for k, v := range aux.History {
		m.History[k] = fromFinite(v)
	}
	return nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadFrames reads the recorded frames of a run back into memory.
func (s *Store) LoadFrames(runID string) ([]scene.Frame, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*FrameRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("store: decode frames of %s: %w", runID, err)
	}

	var frames []scene.Frame
	for _, r := range rows {
		if len(frames) == 0 || frames[len(frames)-1].Tick != r.Tick {
			frames = append(frames, scene.Frame{Tick: r.Tick})
		}
		last := &frames[len(frames)-1]
		last.Positions = append(last.Positions, r3.Vec{X: r.X, Y: r.Y, Z: r.Z})
	}
	return frames, nil
}

// List returns stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func frameRows(result *scene.Result) []*FrameRow {
	var rows []*FrameRow
	for _, f := range result.Frames {
		for i, p := range f.Positions {
			rows = append(rows, &FrameRow{Tick: f.Tick, Index: i, X: p.X, Y: p.Y, Z: p.Z})
		}
	}
	return rows
}

// ExportCSV writes one row per particle per recorded frame.
func ExportCSV(path string, result *scene.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gocsv.MarshalFile(frameRows(result), file)
}

type ExportData struct {
	Meta   RunMetadata   `json:"meta"`
	Frames []scene.Frame `json:"frames"`
}

type frameJSON struct {
	Tick      int         `json:"tick"`
	Positions [][3]finite `json:"positions"`
}

type exportJSON struct {
	Meta   RunMetadata `json:"meta"`
	Frames []frameJSON `json:"frames"`
}

// MarshalJSON writes each position as an [x, y, z] triple with non-finite
// coordinates as null.
func (d ExportData) MarshalJSON() ([]byte, error) {
	aux := exportJSON{Meta: d.Meta, Frames: make([]frameJSON, len(d.Frames))}
	for i, f := range d.Frames {
		pos := make([][3]finite, len(f.Positions))
		for j, p := range f.Positions {
			pos[j] = [3]finite{finite(p.X), finite(p.Y), finite(p.Z)}
		}
		aux.Frames[i] = frameJSON{Tick: f.Tick, Positions: pos}
	}
	return json.Marshal(aux)
}

func (d *ExportData) UnmarshalJSON(b []byte) error {
	var aux exportJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	d.Meta = aux.Meta
	d.Frames = make([]scene.Frame, len(aux.Frames))
	for i, f := range aux.Frames {
		pos := make([]r3.Vec, len(f.Positions))
		for j, p := range f.Positions {
			pos[j] = r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
		}
		d.Frames[i] = scene.Frame{Tick: f.Tick, Positions: pos}
	}
	return nil
}

// ExportJSON writes metadata and frames as indented JSON.
func ExportJSON(w io.Writer, meta RunMetadata, result *scene.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Meta: meta, Frames: result.Frames})
}
