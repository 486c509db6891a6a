package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"github.com/san-kum/revkit/internal/motor"
	"github.com/san-kum/revkit/internal/state"
	"github.com/san-kum/revkit/internal/waveform"
)

func newTestStore(t *testing.T) (*Store, *state.Shared, string) {
	t.Helper()
	cfg := DefaultConfig()
	shared, err := state.New(cfg.Gains(), cfg.Waveform())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), FileName)
	return NewStore(path, shared, nil, 10*time.Millisecond), shared, path
}

func TestStoreSavesAfterEdits(t *testing.T) {
	g := NewWithT(t)
	store, shared, path := newTestStore(t)

	g.Expect(store.SetGains(motor.Gains{Kp: 2, Ki: 1, Kd: 0.2})).To(Succeed())
	g.Expect(store.SetGains(motor.Gains{Kp: 3, Ki: 1, Kd: 0.2})).To(Succeed())
	g.Expect(shared.Gains().Kp).To(Equal(3.0))

	g.Eventually(func() float64 {
		cfg, err := Load(path)
		if err != nil {
			return 0
		}
		return cfg.Kp
	}).Should(Equal(3.0))
}

func TestStoreRejectsInvalidEdits(t *testing.T) {
	g := NewWithT(t)
	store, shared, path := newTestStore(t)

	err := store.SetWaveform(waveform.Params{Kind: waveform.Sine, Amplitude: 10, Period: 0})
	g.Expect(err).To(MatchError(motor.ErrInvalidWaveformParameter))
	g.Expect(shared.Waveform().Period).To(Equal(DefaultPeriod))

	g.Consistently(func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 50*time.Millisecond).Should(BeTrue())
}

func TestStoreNotifiesSubscribers(t *testing.T) {
	g := NewWithT(t)
	store, _, _ := newTestStore(t)
	updates := store.Subscribe()

	g.Expect(store.SetWaveform(waveform.Params{Kind: waveform.Triangle, Amplitude: 20, Offset: 5, Period: 2})).To(Succeed())
	g.Expect(store.SetGains(motor.Gains{Kp: 7})).To(Succeed())

	var got Config
	g.Eventually(updates).Should(Receive(&got))
	g.Expect(got.Kp).To(Equal(7.0))
	g.Expect(got.Wave).To(Equal("triangle"))
}

func TestStoreApply(t *testing.T) {
	g := NewWithT(t)
	store, shared, _ := newTestStore(t)

	g.Expect(store.Apply(GetPreset("step"))).To(Succeed())
	g.Expect(shared.Waveform().Kind).To(Equal(waveform.Square))
	g.Expect(shared.Waveform().Amplitude).To(Equal(100.0))

	bad := GetPreset("ramp")
	bad.Wave = "noise"
	g.Expect(store.Apply(bad)).NotTo(Succeed())
	g.Expect(shared.Waveform().Kind).To(Equal(waveform.Square))
}

func TestStoreWatchAppliesExternalEdits(t *testing.T) {
	g := NewWithT(t)
	store, shared, path := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- store.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	edited := &Config{Kp: 0.5, Ki: 0.25, Kd: 0, Amplitude: 30, Offset: 90, Period: 6, Wave: "triangle"}
	g.Expect(Save(path, edited)).To(Succeed())

	g.Eventually(func() motor.Gains { return shared.Gains() }, 2*time.Second).
		Should(Equal(motor.Gains{Kp: 0.5, Ki: 0.25, Kd: 0}))
	g.Expect(shared.Waveform()).To(Equal(edited.Waveform()))

	g.Expect(os.WriteFile(path, []byte("Period: -3\nWave: sine\n"), 0644)).To(Succeed())
	g.Consistently(func() float64 { return shared.Waveform().Period }, 100*time.Millisecond).Should(Equal(6.0))

	cancel()
	g.Eventually(done).Should(Receive(BeNil()))
}

func TestStoreFlushWithoutPath(t *testing.T) {
	g := NewWithT(t)
	cfg := DefaultConfig()
	shared, err := state.New(cfg.Gains(), cfg.Waveform())
	g.Expect(err).NotTo(HaveOccurred())

	store := NewStore("", shared, nil, 0)
	g.Expect(store.Flush()).To(Succeed())
}

func TestStoreSyncKeepsUneditedOverrides(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), FileName)
	g.Expect(Save(path, DefaultConfig())).To(Succeed())

	// The run starts from a preset the user never edits.
	preset := GetPreset("aggressive")
	shared, err := state.New(preset.Gains(), preset.Waveform())
	g.Expect(err).NotTo(HaveOccurred())
	store := NewStore(path, shared, nil, time.Hour)

	g.Expect(store.Dirty()).To(BeFalse())
	g.Expect(store.Sync()).To(Succeed())
	saved, err := Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(saved.Gains()).To(Equal(DefaultConfig().Gains()))

	// An edit is pending until the debounced save, and Sync writes it early.
	g.Expect(store.SetGains(motor.Gains{Kp: 4, Ki: 1, Kd: 0})).To(Succeed())
	g.Expect(store.Dirty()).To(BeTrue())
	g.Expect(store.Sync()).To(Succeed())
	g.Expect(store.Dirty()).To(BeFalse())
	saved, err = Load(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(saved.Kp).To(Equal(4.0))
	g.Expect(saved.Wave).To(Equal(preset.Wave))
}
