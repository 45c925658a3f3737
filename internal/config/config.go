package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvMbps overrides the configured bandwidth cap, matching how the rate is
// set in deployment.
const EnvMbps = "SLOWSERVE_MBPS"

type Server struct {
	Addr           string `yaml:"addr"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms"`
	IdleTimeoutMS  int    `yaml:"idle_timeout_ms"`
}

type Bandwidth struct {
	Mbps float64 `yaml:"mbps"`
}

type Data struct {
	Root string `yaml:"root"`
}

type Observability struct {
	LogLevel       string `yaml:"log_level"`       // "debug","info","warn","error"
	PrometheusPath string `yaml:"prometheus_path"` // e.g. "/metrics"
}

type Root struct {
	Server        Server        `yaml:"server"`
	Bandwidth     Bandwidth     `yaml:"bandwidth"`
	Data          Data          `yaml:"data"`
	Observability Observability `yaml:"observability"`
}

func (s Server) ReadTimeout() time.Duration {
	if s.ReadTimeoutMS == 0 {
		return 5 * time.Second
	}
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// WriteTimeout defaults to no deadline: transfers are deliberately slow and
// a server-side write timeout would cut them mid-stream.
func (s Server) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

func (s Server) IdleTimeout() time.Duration {
	if s.IdleTimeoutMS == 0 {
		return 60 * time.Second
	}
	return time.Duration(s.IdleTimeoutMS) * time.Millisecond
}

// BytesPerSec converts the megabit rate to the bucket's byte cap,
// floor(mbps * 1024 * 1024 / 8), never below one byte per second.
func (b Bandwidth) BytesPerSec() int64 {
	bps := int64(math.Floor(b.Mbps * 1024 * 1024 / 8))
	if bps < 1 {
		bps = 1
	}
	return bps
}

func Load(path string) (*Root, error) {
	var cfg Root
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv(EnvMbps); v != "" {
		mbps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvMbps, err)
		}
		cfg.Bandwidth.Mbps = mbps
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Bandwidth.Mbps <= 0 {
		cfg.Bandwidth.Mbps = 8 // remote-host default the viewer is tuned for
	}
	if cfg.Data.Root == "" {
		cfg.Data.Root = "."
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.PrometheusPath == "" {
		cfg.Observability.PrometheusPath = "/metrics"
	}

	return &cfg, nil
}
