package config

import "sort"

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"gentle": {
		Kp: 0.6, Ki: 0.8, Kd: 0.02,
		Amplitude: 50, Offset: 150, Period: 10, Wave: "sine",
	},
	"aggressive": {
		Kp: 2.5, Ki: 3.0, Kd: 0.1,
		Amplitude: 50, Offset: 150, Period: 10, Wave: "sine",
	},
	"step": {
		Kp: 1.0, Ki: 1.8, Kd: 0.05,
		Amplitude: 100, Offset: 100, Period: 8, Wave: "square",
	},
	"ramp": {
		Kp: 1.0, Ki: 1.8, Kd: 0.05,
		Amplitude: 80, Offset: 120, Period: 12, Wave: "triangle",
	},
	"reverse": {
		Kp: 1.2, Ki: 1.5, Kd: 0.05,
		Amplitude: 200, Offset: 0, Period: 16, Wave: "sine",
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := *p
	return &cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
