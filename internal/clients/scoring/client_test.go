package scoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestScoreEngagement(t *testing.T) {
	learnerID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze/engagement" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("learnerId"); got != learnerID.String() {
			t.Errorf("learnerId = %q, want %q", got, learnerID)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"analysis": {
				"engagement_score": 0.72,
				"emotion": "happy",
				"needs_intervention": false,
				"suggested_intervention": "",
				"is_inactive": false
			}
		}`))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	analysis, err := client.ScoreEngagement(context.Background(), learnerID)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if analysis.EngagementScore != 0.72 || analysis.Emotion != "happy" {
		t.Fatalf("analysis = %+v", analysis)
	}
}

func TestScoreEngagementFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"http error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"unsuccessful envelope", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": false, "message": "model cold"}`))
		}},
		{"missing analysis", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"success": true}`))
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			client, err := New(Options{BaseURL: srv.URL})
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			if _, err := client.ScoreEngagement(context.Background(), uuid.New()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestScoreEngagementTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	start := time.Now()
	if _, err := client.ScoreEngagement(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %v, should be bounded by client timeout", elapsed)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty base URL")
	}
}
