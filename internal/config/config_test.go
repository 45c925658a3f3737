package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBytesPerSec(t *testing.T) {
	cases := map[float64]int64{
		8:      1048576, // remote-host default
		2:      262144,
		0.25:   32768,
		0.001:  131,
		0:      1, // clamped
		-3:     1,
		0.0001: 13,
	}
	for mbps, want := range cases {
		if got := (Bandwidth{Mbps: mbps}).BytesPerSec(); got != want {
			t.Errorf("BytesPerSec(%v) = %d, want %d", mbps, got, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvMbps, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Bandwidth.Mbps != 8 {
		t.Errorf("mbps = %v, want 8", cfg.Bandwidth.Mbps)
	}
	if cfg.Data.Root != "." {
		t.Errorf("root = %q", cfg.Data.Root)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.Observability.LogLevel)
	}
	if cfg.Server.WriteTimeout() != 0 {
		t.Errorf("write timeout = %v, want none for slow streams", cfg.Server.WriteTimeout())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  addr: ":9000"
bandwidth:
  mbps: 2.5
data:
  root: /srv/assets
observability:
  log_level: debug
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Bandwidth.Mbps != 2.5 {
		t.Errorf("mbps = %v", cfg.Bandwidth.Mbps)
	}
	if cfg.Data.Root != "/srv/assets" {
		t.Errorf("root = %q", cfg.Data.Root)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.Observability.LogLevel)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("bandwidth:\n  mbps: 16\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvMbps, "1.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bandwidth.Mbps != 1.5 {
		t.Errorf("mbps = %v, want env override 1.5", cfg.Bandwidth.Mbps)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv(EnvMbps, "fast")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric env rate")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
