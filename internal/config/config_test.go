package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Sim.HealthEvery != 15*time.Second {
		t.Errorf("health cadence = %v, want 15s", cfg.Sim.HealthEvery)
	}
	if cfg.Sim.FireEvery != 0 {
		t.Errorf("fire cadence = %v, want disabled", cfg.Sim.FireEvery)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("log level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFromEnv(t *testing.T) {
	scenario := filepath.Join(t.TempDir(), "s.yaml")
	if err := os.WriteFile(scenario, []byte("steps: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ALERTSIM_ADDR", ":9999")
	t.Setenv("ALERTSIM_TOKEN", "s3cret")
	t.Setenv("ALERTSIM_HEALTH_EVERY", "30s")
	t.Setenv("ALERTSIM_FIRE_EVERY", "2s")
	t.Setenv("ALERTSIM_SCENARIO", scenario)
	t.Setenv("ALERTSIM_VERSION", "1.4.0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":9999" || cfg.Server.Token != "s3cret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Sim.HealthEvery != 30*time.Second || cfg.Sim.FireEvery != 2*time.Second {
		t.Errorf("cadences = %+v", cfg.Sim)
	}
	if cfg.Sim.Version != "1.4.0" {
		t.Errorf("version = %q", cfg.Sim.Version)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"sub-second health cadence", "ALERTSIM_HEALTH_EVERY", "200ms"},
		{"hyperactive generator", "ALERTSIM_FIRE_EVERY", "5ms"},
		{"missing scenario file", "ALERTSIM_SCENARIO", "/nonexistent/path.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestBadDurationFallsBack(t *testing.T) {
	t.Setenv("ALERTSIM_HEALTH_EVERY", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sim.HealthEvery != 15*time.Second {
		t.Errorf("health cadence = %v, want the 15s default", cfg.Sim.HealthEvery)
	}
}
