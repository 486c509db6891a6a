// Package export writes recorded history to disk and reads it back.
package export

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
	"strings"
	"time"

	"github.com/san-kum/revkit/internal/metrics"
	"github.com/san-kum/revkit/internal/motor"
)

const (
	filePrefix = "motor_data_"
	timeLayout = "20060102_150405"
)

var csvHeader = []string{"RPM", "Setpoint", "PWM"}

var ErrNoSamples = errors.New("no samples to export")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string {
	return s.baseDir
}

// FileName is the export name for a capture taken at t.
func FileName(t time.Time, ext string) string {
	return filePrefix + t.Format(timeLayout) + ext
}

// Record describes one export on disk.
type Record struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// SaveCSV writes samples to a new timestamped CSV and returns its path.
func (s *Store) SaveCSV(samples []motor.Sample) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if err := s.Init(); err != nil {
		return "", err
	}

	path := filepath.Join(s.baseDir, FileName(s.now(), ".csv"))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := WriteCSV(f, samples); err != nil {
		return "", err
	}
	return path, f.Close()
}

// WriteCSV writes the header and one "%.2f,%.2f,%d" row per sample.
func WriteCSV(w io.Writer, samples []motor.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, smp := range samples {
		row := []string{
			strconv.FormatFloat(smp.Measurement, 'f', 2, 64),
			strconv.FormatFloat(smp.Setpoint, 'f', 2, 64),
			strconv.Itoa(smp.Command),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an export. Rows that do not parse are skipped.
func ReadCSV(r io.Reader) ([]motor.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty export")
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(records[0], ","))
	}

	samples := make([]motor.Sample, 0, len(records)-1)
	for _, record := range records[1:] {
		if len(record) != len(csvHeader) {
			continue
		}
		rpm, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		sp, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			continue
		}
		pwm, err := strconv.Atoi(record[2])
		if err != nil {
			continue
		}
		samples = append(samples, motor.Sample{Measurement: rpm, Setpoint: sp, Command: pwm})
	}
	return samples, nil
}

// Resolve maps a bare export name to its path in the store.
func (s *Store) Resolve(name string) string {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return filepath.Join(s.baseDir, name)
}

func (s *Store) LoadCSV(name string) ([]motor.Sample, error) {
	f, err := os.Open(s.Resolve(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}

// List returns CSV exports, oldest first.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, err
	}

	records := make([]Record, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != ".csv" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, Record{
			Name:    name,
			Path:    filepath.Join(s.baseDir, name),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

type jsonSample struct {
	RPM      float64 `json:"rpm"`
	Setpoint float64 `json:"setpoint"`
	PWM      int     `json:"pwm"`
}

type ExportData struct {
	Captured time.Time       `json:"captured"`
	Samples  []jsonSample    `json:"samples"`
	Metrics  metrics.Summary `json:"metrics"`
}

// ExportJSON writes samples with their summary metrics.
func ExportJSON(w io.Writer, captured time.Time, samples []motor.Sample) error {
	data := ExportData{
		Captured: captured,
		Samples:  make([]jsonSample, len(samples)),
		Metrics:  metrics.Summarize(samples),
	}
	for i, smp := range samples {
		data.Samples[i] = jsonSample{RPM: smp.Measurement, Setpoint: smp.Setpoint, PWM: smp.Command}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// SaveJSON writes a timestamped JSON export and returns its path.
func (s *Store) SaveJSON(samples []motor.Sample) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSamples
	}
	if err := s.Init(); err != nil {
		return "", err
	}

	now := s.now()
	path := filepath.Join(s.baseDir, FileName(now, ".json"))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := ExportJSON(f, now, samples); err != nil {
		return "", err
	}
	return path, f.Close()
}
