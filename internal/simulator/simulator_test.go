package simulator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/domain/alert"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/utils"
)

func newTestSim(t *testing.T, cfg Config) (*Simulator, *httptest.Server) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	s := New(cfg, log)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func doJSON(t *testing.T, method, url, token string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func fire(t *testing.T, srv *httptest.Server, d alert.DTO) alert.DTO {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/sim/alerts", "", d)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("fire returned status %d", resp.StatusCode)
	}
	var out alert.DTO
	decodeInto(t, resp, &out)
	return out
}

func TestSimulator_FireFillsDefaults(t *testing.T) {
	_, srv := newTestSim(t, Config{})

	out := fire(t, srv, alert.DTO{
		RuleName:       "SCR coverage floor",
		Severity:       "critical",
		CurrentValue:   1.12,
		ThresholdValue: 1.5,
	})

	if out.ID == "" {
		t.Error("expected a generated ID")
	}
	if out.RuleID == "" {
		t.Error("expected a generated rule ID")
	}
	if out.TriggeredAt.IsZero() {
		t.Error("expected TriggeredAt to be stamped")
	}
	if out.LifecycleState != string(alert.StateActive) {
		t.Errorf("new alert state = %s, want ACTIVE", out.LifecycleState)
	}
}

func TestSimulator_FireRejectsInvalidPayload(t *testing.T) {
	_, srv := newTestSim(t, Config{})

	resp := doJSON(t, http.MethodPost, srv.URL+"/sim/alerts", "", alert.DTO{
		RuleName: "SCR coverage floor",
		Severity: "catastrophic",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body utils.ErrorBody
	decodeInto(t, resp, &body)
	if body.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %s, want VALIDATION_ERROR", body.Code)
	}
}

func TestSimulator_ListActiveOrdersAndFilters(t *testing.T) {
	_, srv := newTestSim(t, Config{})

	fire(t, srv, alert.DTO{ID: "a-low", RuleName: "Lapse rate deviation", Severity: "low"})
	fire(t, srv, alert.DTO{ID: "a-crit", RuleName: "SCR coverage floor", Severity: "critical"})

	resp := doJSON(t, http.MethodGet, srv.URL+"/alerts/active", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var all []alert.DTO
	decodeInto(t, resp, &all)
	if len(all) != 2 {
		t.Fatalf("got %d alerts, want 2", len(all))
	}
	if all[0].ID != "a-crit" {
		t.Errorf("first alert = %s, want a-crit (severity ordering)", all[0].ID)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/alerts/active?severity=low", "", nil)
	var lows []alert.DTO
	decodeInto(t, resp, &lows)
	if len(lows) != 1 || lows[0].ID != "a-low" {
		t.Errorf("severity filter returned %v, want just a-low", lows)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/alerts/active?severity=bogus", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus severity: status = %d, want 400", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/alerts/active?acknowledged=maybe", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus acknowledged: status = %d, want 400", resp.StatusCode)
	}
}

func TestSimulator_LifecycleFlow(t *testing.T) {
	_, srv := newTestSim(t, Config{})
	fire(t, srv, alert.DTO{ID: "lc-1", RuleName: "MCR coverage floor", Severity: "high"})

	// Acknowledge.
	resp := doJSON(t, http.MethodPost, srv.URL+"/alerts/lc-1/acknowledge", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("acknowledge status = %d, want 200", resp.StatusCode)
	}
	var acked alert.DTO
	decodeInto(t, resp, &acked)
	if acked.LifecycleState != string(alert.StateAcknowledged) {
		t.Errorf("state = %s, want ACKNOWLEDGED", acked.LifecycleState)
	}
	if acked.AcknowledgedBy != simOperator || acked.AcknowledgedAt == nil {
		t.Errorf("acknowledged_by/at not stamped: %+v", acked)
	}

	// A second acknowledge is a lifecycle conflict.
	resp = doJSON(t, http.MethodPost, srv.URL+"/alerts/lc-1/acknowledge", "", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("repeat acknowledge status = %d, want 409", resp.StatusCode)
	}
	var conflict utils.ErrorBody
	decodeInto(t, resp, &conflict)
	if conflict.Code != "CONFLICT" {
		t.Errorf("error code = %s, want CONFLICT", conflict.Code)
	}

	// The acknowledged filter sees it.
	resp = doJSON(t, http.MethodGet, srv.URL+"/alerts/active?acknowledged=true", "", nil)
	var ackedList []alert.DTO
	decodeInto(t, resp, &ackedList)
	if len(ackedList) != 1 {
		t.Fatalf("acknowledged filter returned %d alerts, want 1", len(ackedList))
	}

	// Resolve with notes.
	resp = doJSON(t, http.MethodPost, srv.URL+"/alerts/lc-1/resolve", "",
		map[string]string{"resolution_notes": "threshold recalibrated"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d, want 200", resp.StatusCode)
	}
	var resolved alert.DTO
	decodeInto(t, resp, &resolved)
	if resolved.LifecycleState != string(alert.StateResolved) {
		t.Errorf("state = %s, want RESOLVED", resolved.LifecycleState)
	}
	if resolved.ResolutionNotes != "threshold recalibrated" {
		t.Errorf("notes = %q", resolved.ResolutionNotes)
	}

	// Resolved alerts drop out of the snapshot.
	resp = doJSON(t, http.MethodGet, srv.URL+"/alerts/active", "", nil)
	var remaining []alert.DTO
	decodeInto(t, resp, &remaining)
	if len(remaining) != 0 {
		t.Errorf("active list still has %d alerts after resolve", len(remaining))
	}

	// Resolving twice conflicts; unknown IDs are 404s.
	resp = doJSON(t, http.MethodPost, srv.URL+"/alerts/lc-1/resolve", "", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("repeat resolve status = %d, want 409", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/alerts/nope/acknowledge", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown alert status = %d, want 404", resp.StatusCode)
	}
}

func TestSimulator_ResolveDirectlyFromActive(t *testing.T) {
	_, srv := newTestSim(t, Config{})
	fire(t, srv, alert.DTO{ID: "direct-1", RuleName: "Own funds tier-1 floor", Severity: "medium"})

	resp := doJSON(t, http.MethodPost, srv.URL+"/alerts/direct-1/resolve", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d, want 200", resp.StatusCode)
	}
	var resolved alert.DTO
	decodeInto(t, resp, &resolved)
	if resolved.AcknowledgedAt != nil {
		t.Error("direct resolve should not invent an acknowledgement")
	}
}

func TestSimulator_TokenAuth(t *testing.T) {
	_, srv := newTestSim(t, Config{Token: "s3cret"})

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"valid token", "s3cret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodGet, srv.URL+"/alerts/active", tt.token, nil)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	// Health stays open so probes work without credentials.
	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestSimulator_HealthzShape(t *testing.T) {
	_, srv := newTestSim(t, Config{Version: "1.2.3"})

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	var health struct {
		Status    string            `json:"status"`
		Version   string            `json:"version"`
		Timestamp time.Time         `json:"timestamp"`
		Services  map[string]string `json:"services"`
	}
	decodeInto(t, resp, &health)

	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", health.Version)
	}
	if health.Services["push"] != "ok" {
		t.Errorf("services = %v, want push ok", health.Services)
	}
	if health.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}
