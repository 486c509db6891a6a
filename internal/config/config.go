package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/waveform"
)

const (
	DefaultKp        = 1.0
	DefaultKi        = 1.8
	DefaultKd        = 0.05
	DefaultAmplitude = 50.0
	DefaultOffset    = 150.0
	DefaultPeriod    = 10.0
	DefaultWave      = "sine"

	DirName        = ".revkit"
	FileName       = "revkit_config.yaml"
	LegacyFileName = "revkit_config.json"
)

// Config is the persisted tuning record. The keys match the JSON file the
// desktop tool wrote, which yaml.v3 reads as-is.
type Config struct {
	Kp        float64 `yaml:"Kp"`
	Ki        float64 `yaml:"Ki"`
	Kd        float64 `yaml:"Kd"`
	Amplitude float64 `yaml:"Amplitude"`
	Offset    float64 `yaml:"Offset"`
	Period    float64 `yaml:"Period"`
	Wave      string  `yaml:"Wave"`
}

func DefaultConfig() *Config {
	return &Config{
		Kp:        DefaultKp,
		Ki:        DefaultKi,
		Kd:        DefaultKd,
		Amplitude: DefaultAmplitude,
		Offset:    DefaultOffset,
		Period:    DefaultPeriod,
		Wave:      DefaultWave,
	}
}

// FromState builds a record from live values.
func FromState(g motor.Gains, w waveform.Params) *Config {
	return &Config{
		Kp:        g.Kp,
		Ki:        g.Ki,
		Kd:        g.Kd,
		Amplitude: w.Amplitude,
		Offset:    w.Offset,
		Period:    w.Period,
		Wave:      string(w.Kind),
	}
}

func (c *Config) Gains() motor.Gains {
	return motor.Gains{Kp: c.Kp, Ki: c.Ki, Kd: c.Kd}
}

func (c *Config) Waveform() waveform.Params {
	return waveform.Params{
		Kind:      waveform.Kind(strings.ToLower(strings.TrimSpace(c.Wave))),
		Amplitude: c.Amplitude,
		Offset:    c.Offset,
		Period:    c.Period,
	}
}

func (c *Config) Validate() error {
	if err := c.Gains().Validate(); err != nil {
		return err
	}
	return c.Waveform().Validate()
}

// Dir is ~/.revkit.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DirName), nil
}

// DefaultPath is where the record is saved when no path is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads a record. Missing keys keep their defaults, except Wave: files
// written before the waveform selector existed mean square.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.Wave = ""
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Wave == "" {
		cfg.Wave = string(waveform.Square)
	}
	cfg.Wave = strings.ToLower(strings.TrimSpace(cfg.Wave))
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadDefault resolves the record at startup. With an explicit path any
// failure is returned. Without one, the YAML file is tried, then the legacy
// JSON file beside it; a file that cannot be parsed is logged and defaults
// are used. A record that parses but fails validation is always an error.
// The returned path is where changes should be saved.
func LoadDefault(path string, logger *zap.SugaredLogger) (*Config, string, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	if path != "" {
		cfg, err := Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, path, cfg.Validate()
	}

	path, err := DefaultPath()
	if err != nil {
		return nil, "", err
	}

	for _, candidate := range []string{path, filepath.Join(filepath.Dir(path), LegacyFileName)} {
		cfg, err := Load(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.Warnw("ignoring unreadable config", "path", candidate, "error", err)
			return DefaultConfig(), path, nil
		}
		logger.Debugw("loaded config", "path", candidate)
		return cfg, path, cfg.Validate()
	}
	return DefaultConfig(), path, nil
}
