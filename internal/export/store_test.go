package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/revkit/internal/motor"
)

var testSamples = []motor.Sample{
	{Measurement: 120.456, Setpoint: 150, Command: 87},
	{Measurement: 131.1, Setpoint: 150, Command: 64},
	{Measurement: -12.25, Setpoint: -20, Command: -255},
}

func fixedStore(t *testing.T, at time.Time) *Store {
	t.Helper()
	st := New(t.TempDir())
	st.now = func() time.Time { return at }
	return st
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local)
	if got := FileName(at, ".csv"); got != "motor_data_20240307_090502.csv" {
		t.Errorf("unexpected name %s", got)
	}
}

func TestSaveCSV(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local)
	st := fixedStore(t, at)

	path, err := st.SaveCSV(testSamples)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if filepath.Base(path) != "motor_data_20240307_090502.csv" {
		t.Errorf("unexpected path %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "RPM,Setpoint,PWM\n120.46,150.00,87\n131.10,150.00,64\n-12.25,-20.00,-255\n"
	if string(data) != want {
		t.Errorf("unexpected contents:\n%s", data)
	}

	samples, err := st.LoadCSV(filepath.Base(path))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(samples) != 3 || samples[2].Command != -255 || samples[1].Measurement != 131.1 {
		t.Errorf("unexpected samples %+v", samples)
	}
}

func TestSaveCSVEmpty(t *testing.T) {
	st := New(t.TempDir())
	if _, err := st.SaveCSV(nil); err != ErrNoSamples {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
}

func TestReadCSVSkipsBadRows(t *testing.T) {
	in := "RPM,Setpoint,PWM\n1.00,2.00,3\nx,2.00,3\n4.00,5.00\n6.00,7.00,8\n"
	samples, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}

	if _, err := ReadCSV(strings.NewReader("time,x0\n0,1\n")); err == nil {
		t.Error("expected header error")
	}
	if _, err := ReadCSV(strings.NewReader("")); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestList(t *testing.T) {
	st := New(t.TempDir())

	runs, err := st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no exports, got %d", len(runs))
	}

	for _, at := range []time.Time{
		time.Date(2024, 5, 2, 10, 0, 0, 0, time.Local),
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local),
	} {
		st.now = func() time.Time { return at }
		if _, err := st.SaveCSV(testSamples); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(st.Dir(), "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	runs, err = st.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 exports, got %d", len(runs))
	}
	if runs[0].Name != "motor_data_20240501_100000.csv" {
		t.Errorf("expected oldest first, got %s", runs[0].Name)
	}
	if runs[0].Size == 0 {
		t.Error("expected non-zero size")
	}
}

func TestListMissingDir(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "missing"))
	runs, err := st.List()
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty list, got %v %v", runs, err)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := ExportJSON(&buf, at, testSamples); err != nil {
		t.Fatal(err)
	}

	var out struct {
		Samples []struct {
			RPM float64 `json:"rpm"`
			PWM int     `json:"pwm"`
		} `json:"samples"`
		Metrics map[string]float64 `json:"metrics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(out.Samples) != 3 || out.Samples[2].PWM != -255 {
		t.Errorf("unexpected samples %+v", out.Samples)
	}
	if out.Metrics["samples"] != 3 {
		t.Errorf("expected summary of 3 samples, got %v", out.Metrics)
	}
	if _, ok := out.Metrics["rms_error"]; !ok {
		t.Error("expected rms_error in metrics")
	}
}

func TestSaveJSON(t *testing.T) {
	st := fixedStore(t, time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local))
	path, err := st.SaveJSON(testSamples)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "motor_data_20240307_090502.json" {
		t.Errorf("unexpected path %s", path)
	}
}

func TestSavePNG(t *testing.T) {
	st := fixedStore(t, time.Date(2024, 3, 7, 9, 5, 2, 0, time.Local))
	path, err := st.SavePNG(testSamples)
	if err != nil {
		t.Fatalf("plot failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("expected a PNG file")
	}

	if _, err := st.SavePNG(nil); err != ErrNoSamples {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
}
