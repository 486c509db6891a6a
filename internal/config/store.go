package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/state"
	"github.com/san-kum/revkit/internal/waveform"
)

// DefaultSaveDelay coalesces bursts of edits, such as a held arrow key,
// into one write.
const DefaultSaveDelay = 500 * time.Millisecond

// Store applies tuning edits to the shared state and keeps the file in
// step: edits are saved after a quiet period and external edits to the
// file are applied back.
type Store struct {
	path   string
	shared *state.Shared
	logger *zap.SugaredLogger
	save   func(func())

	mu          sync.Mutex
	subs        []chan Config
	lastWritten []byte
	edits       uint64 // bumped by every local edit
	saved       uint64 // edits covered by the last write
}

func NewStore(path string, shared *state.Shared, logger *zap.SugaredLogger, delay time.Duration) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if delay <= 0 {
		delay = DefaultSaveDelay
	}
	return &Store{
		path:   path,
		shared: shared,
		logger: logger,
		save:   debounce.New(delay),
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Gains() motor.Gains {
	return s.shared.Gains()
}

func (s *Store) Waveform() waveform.Params {
	return s.shared.Waveform()
}

// Config is the record for the current shared values.
func (s *Store) Config() *Config {
	return FromState(s.shared.Gains(), s.shared.Waveform())
}

// SetGains validates and applies g, then schedules a save.
func (s *Store) SetGains(g motor.Gains) error {
	if err := s.shared.SetGains(g); err != nil {
		return err
	}
	s.changed()
	return nil
}

// SetWaveform validates and applies w, then schedules a save.
func (s *Store) SetWaveform(w waveform.Params) error {
	if err := s.shared.SetWaveform(w); err != nil {
		return err
	}
	s.changed()
	return nil
}

// Apply sets every field of cfg. Nothing changes if cfg is invalid.
func (s *Store) Apply(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.shared.SetGains(cfg.Gains()); err != nil {
		return err
	}
	if err := s.shared.SetWaveform(cfg.Waveform()); err != nil {
		return err
	}
	s.changed()
	return nil
}

// Subscribe returns a channel that receives the record after every change.
// Slow readers only see the latest record.
func (s *Store) Subscribe() <-chan Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Config, 1)
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Store) changed() {
	s.mu.Lock()
	s.edits++
	s.mu.Unlock()

	s.publish(*s.Config())
	s.save(func() {
		if err := s.Sync(); err != nil {
			s.logger.Warnw("failed to save config", "path", s.path, "error", err)
		}
	})
}

func (s *Store) publish(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- cfg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
			}
		}
	}
}

// Dirty reports whether an edit made through the store has not been
// written yet. Values the store was created with never count.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.edits != s.saved
}

// Sync writes the record only if it has unsaved edits.
func (s *Store) Sync() error {
	if !s.Dirty() {
		return nil
	}
	return s.Flush()
}

// Flush writes the current record immediately.
func (s *Store) Flush() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	gen := s.edits
	s.mu.Unlock()

	data, err := yaml.Marshal(s.Config())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return err
	}
	s.lastWritten = data
	if gen > s.saved {
		s.saved = gen
	}
	s.logger.Debugw("saved config", "path", s.path)
	return nil
}

// Watch applies external edits to the file until ctx is done. The parent
// directory is watched so editors that replace the file are seen too.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.reload()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warnw("config watcher error", "error", err)
		}
	}
}

func (s *Store) reload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		s.logger.Debugw("config not readable", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	own := bytes.Equal(data, s.lastWritten)
	s.mu.Unlock()
	if own || len(bytes.TrimSpace(data)) == 0 {
		return
	}

	cfg, err := Load(s.path)
	if err != nil {
		s.logger.Warnw("ignoring unparsable config edit", "path", s.path, "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		s.logger.Warnw("ignoring invalid config edit", "path", s.path, "error", err)
		return
	}
	if err := s.shared.SetGains(cfg.Gains()); err != nil {
		s.logger.Warnw("ignoring invalid config edit", "error", err)
		return
	}
	if err := s.shared.SetWaveform(cfg.Waveform()); err != nil {
		s.logger.Warnw("ignoring invalid config edit", "error", err)
		return
	}
	s.logger.Infow("reloaded config", "path", s.path)
	s.publish(*cfg)
}
