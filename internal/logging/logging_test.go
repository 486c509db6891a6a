package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/gomega"
)

func TestConsoleSink(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer

	logger, closeFn, err := New(Options{Console: &buf})
	g.Expect(err).NotTo(HaveOccurred())

	logger.Debugw("hidden", "k", 1)
	logger.Infow("connected", "port", "/dev/ttyACM0")
	g.Expect(closeFn()).To(Succeed())

	g.Expect(buf.String()).To(ContainSubstring("connected"))
	g.Expect(buf.String()).To(ContainSubstring("/dev/ttyACM0"))
	g.Expect(buf.String()).NotTo(ContainSubstring("hidden"))
}

func TestDebugLevel(t *testing.T) {
	g := NewWithT(t)
	var buf bytes.Buffer

	logger, _, err := New(Options{Console: &buf, Debug: true})
	g.Expect(err).NotTo(HaveOccurred())
	logger.Debugw("skipping cycle")
	g.Expect(buf.String()).To(ContainSubstring("skipping cycle"))
}

func TestFileSink(t *testing.T) {
	g := NewWithT(t)
	path := filepath.Join(t.TempDir(), "logs", DefaultFileName)

	logger, closeFn, err := New(Options{File: path})
	g.Expect(err).NotTo(HaveOccurred())
	logger.Warnw("command write timed out", "command", 120)
	g.Expect(closeFn()).To(Succeed())

	data, err := os.ReadFile(path)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(string(data)).To(ContainSubstring("WARN"))
	g.Expect(string(data)).To(ContainSubstring("command write timed out"))
	g.Expect(string(data)).NotTo(ContainSubstring("\x1b["))
}

func TestNoSinks(t *testing.T) {
	g := NewWithT(t)
	logger, closeFn, err := New(Options{})
	g.Expect(err).NotTo(HaveOccurred())
	logger.Infow("nowhere")
	g.Expect(closeFn()).To(Succeed())
}
