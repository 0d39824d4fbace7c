package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFillsOmittedFieldsWithDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host.toml")
	if err := os.WriteFile(path, []byte("quantum = 512\ntick-ms = 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Quantum != 512 || cfg.TickMS != 10 {
		t.Errorf("loaded %+v", cfg)
	}

	d := Default()
	if cfg.StackLimit != d.StackLimit || cfg.FrameLimit != d.FrameLimit {
		t.Errorf("omitted fields %+v, want defaults %+v", cfg, d)
	}

	mc := cfg.VM()
	if mc.Quantum != 512 || mc.Tick != 10*time.Millisecond {
		t.Errorf("machine config %+v", mc)
	}
}

func TestLoadRejectsMissingAndMalformedFiles(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("missing file did not fail")
	}

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("quantum = [1,"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed file did not fail")
	}
}
