package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAlertService_ListActive(t *testing.T) {
	triggered := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		opts      *ListActiveOptions
		wantQuery string
	}{
		{name: "no filters", opts: nil, wantQuery: ""},
		{
			name:      "severity filter",
			opts:      &ListActiveOptions{Severity: "critical"},
			wantQuery: "severity=critical",
		},
		{
			name: "acknowledged filter",
			opts: &ListActiveOptions{Acknowledged: boolPtr(false)},

			wantQuery: "acknowledged=false",
		},
		{
			name:      "combined filters",
			opts:      &ListActiveOptions{Severity: "high", Acknowledged: boolPtr(true)},
			wantQuery: "acknowledged=true&severity=high",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotQuery string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = r.URL.RawQuery
				json.NewEncoder(w).Encode([]Alert{{
					ID:             "alr-1",
					RuleID:         "rule-1",
					Severity:       "critical",
					TriggeredAt:    triggered,
					LifecycleState: "ACTIVE",
				}})
			}))
			defer srv.Close()

			c := NewClient(Config{BaseURL: srv.URL})
			alerts, err := c.Alerts().ListActive(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("ListActive() error = %v", err)
			}

			if gotPath != "/alerts/active" {
				t.Errorf("path = %q, want /alerts/active", gotPath)
			}
			if gotQuery != tt.wantQuery {
				t.Errorf("query = %q, want %q", gotQuery, tt.wantQuery)
			}
			if len(alerts) != 1 || alerts[0].ID != "alr-1" {
				t.Errorf("alerts = %+v", alerts)
			}
		})
	}
}

func TestAlertService_Resolve(t *testing.T) {
	var gotBody ResolveRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(Alert{ID: "alr-1", LifecycleState: "RESOLVED"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	a, err := c.Alerts().Resolve(context.Background(), "alr-1", "recovered after rerun")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if gotPath != "/alerts/alr-1/resolve" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.ResolutionNotes != "recovered after rerun" {
		t.Errorf("resolution_notes = %q", gotBody.ResolutionNotes)
	}
	if a.LifecycleState != "RESOLVED" {
		t.Errorf("LifecycleState = %q", a.LifecycleState)
	}
}

func TestAlertService_Acknowledge_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"code":    "CONFLICT",
			"message": "alert already resolved",
		})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Alerts().Acknowledge(context.Background(), "alr-1")
	if err == nil {
		t.Fatal("Acknowledge() expected error")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if !apiErr.IsConflict() {
		t.Errorf("IsConflict() = false, StatusCode = %d", apiErr.StatusCode)
	}
	if apiErr.Code != "CONFLICT" {
		t.Errorf("Code = %q", apiErr.Code)
	}
}

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Alert{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tkn-123"})
	if _, err := c.Alerts().ListActive(context.Background(), nil); err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}

	if gotAuth != "Bearer tkn-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func boolPtr(b bool) *bool { return &b }
