package cli

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/monitor"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/reconcile"
	"github.com/cisseniang564/ProvTech-sub001/internal/transport"
)

func TestPushURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws"},
		{"http://localhost:8080/", "ws://localhost:8080/ws"},
		{"https://alerts.provtech.io", "wss://alerts.provtech.io/ws"},
	}

	for _, tt := range tests {
		if got := pushURL(tt.server); got != tt.want {
			t.Errorf("pushURL(%q) = %q, want %q", tt.server, got, tt.want)
		}
	}
}

func TestSummaryLine(t *testing.T) {
	now := time.Date(2025, 11, 3, 14, 30, 0, 0, time.UTC)

	view := monitor.View{
		Counts: reconcile.Counts{
			Total: 7,
			BySeverity: map[alert.Severity]int{
				alert.SeverityCritical: 2,
				alert.SeverityHigh:     1,
				alert.SeverityLow:      4,
			},
			ByState: map[alert.LifecycleState]int{
				alert.StateActive:       4,
				alert.StateAcknowledged: 3,
			},
		},
		Connection: transport.StateOpen,
		LastSync:   now.Add(-12 * time.Second),
	}

	line := summaryLine(view, now)

	for _, want := range []string{"7 open", "2 critical", "1 high", "3 acknowledged", "connected", "synced 12s ago"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary line %q missing %q", line, want)
		}
	}
}

func TestSummaryLineQuietBook(t *testing.T) {
	now := time.Date(2025, 11, 3, 14, 30, 0, 0, time.UTC)

	line := summaryLine(monitor.View{
		Counts:     reconcile.Counts{Total: 0},
		Connection: transport.StateClosedRetrying,
	}, now)

	if !strings.Contains(line, "0 open") || !strings.Contains(line, "reconnecting") {
		t.Errorf("summary line = %q", line)
	}
	if strings.Contains(line, "critical") || strings.Contains(line, "synced") {
		t.Errorf("quiet line should omit empty sections: %q", line)
	}
}

func TestStartDevSimulator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	url, err := startDevSimulator(ctx, "", log)
	if err != nil {
		t.Fatalf("startDevSimulator: %v", err)
	}
	if !strings.HasPrefix(url, "http://127.0.0.1:") {
		t.Fatalf("url = %q", url)
	}

	resp, err := http.Get(url + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestStartDevSimulator_BadScenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	if _, err := startDevSimulator(ctx, "/nonexistent/timeline.yaml", log); err == nil {
		t.Error("expected an error for a missing scenario file")
	}
}

func TestServeDebug(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log := logger.New(logger.Config{Level: "error", Format: "json"})

	addr, err := serveDebug(ctx, "127.0.0.1:0", log)
	if err != nil {
		t.Fatalf("serveDebug: %v", err)
	}

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), "provtech_") {
		t.Error("metrics exposition missing provtech_ series")
	}
}
