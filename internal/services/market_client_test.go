package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ryantate/typingpool-sub000/internal/shared"
	"golang.org/x/time/rate"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestMarketClient(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Nil Client", func(t *testing.T) {
			m := NewMarketClient("http://example.com", "", 0, nil)
			if m.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})

		t.Run("Non-Positive Rate Disables Limiting", func(t *testing.T) {
			m := NewMarketClient("http://example.com", "", 0, nil)
			if m.limiter.Limit() != rate.Inf {
				t.Errorf("expected unlimited rate, got %v", m.limiter.Limit())
			}
		})

		t.Run("Positive Rate", func(t *testing.T) {
			m := NewMarketClient("http://example.com", "", 2.5, nil)
			if float64(m.limiter.Limit()) != 2.5 {
				t.Errorf("expected limit 2.5, got %v", m.limiter.Limit())
			}
		})
	})

	t.Run("Sends Bearer Token", func(t *testing.T) {
		var auth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(UnitDetail{UnitSummary: UnitSummary{ID: "U1"}})
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "secret", 0, nil)
		if _, err := m.GetUnit(context.Background(), "U1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if auth != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", auth)
		}
	})

	t.Run("CreateUnit", func(t *testing.T) {
		var got createUnitRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/units" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON content type, got %s", r.Header.Get("Content-Type"))
			}
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(UnitDetail{UnitSummary: UnitSummary{ID: "U9", Status: UnitAssignable, AssignmentDuration: 10800}})
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "", 0, nil)
		unit, err := m.CreateUnit(context.Background(),
			Question{URL: "https://h/q.html", Annotation: "audio_url=x"},
			Policy{Title: "t", RewardCents: 75, Lifetime: 72 * time.Hour, Deadline: 3 * time.Hour, MaxAssignments: 1},
		)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if unit.ID != "U9" || unit.Status != UnitAssignable {
			t.Errorf("unexpected unit %+v", unit)
		}
		if got.Question.URL != "https://h/q.html" || got.Policy.RewardCents != 75 {
			t.Errorf("unexpected request body %+v", got)
		}
		if got.LifetimeSeconds != 259200 || got.AssignmentDurationSeconds != 10800 {
			t.Errorf("expected durations in seconds, got %d/%d", got.LifetimeSeconds, got.AssignmentDurationSeconds)
		}
	})

	t.Run("GetUnit Not Found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "", 0, nil)
		_, err := m.GetUnit(context.Background(), "gone")
		if !errors.Is(err, shared.ErrUnitNotFound) {
			t.Errorf("expected ErrUnitNotFound, got %v", err)
		}
	})

	t.Run("Server Error Message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(apiError{Error: "throttled"})
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "", 0, nil)
		err := m.DisableUnit(context.Background(), "U1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "throttled") {
			t.Errorf("expected server message in error, got %v", err)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		})}

		m := NewMarketClient("http://example.com", "", 0, client)
		err := m.DisposeUnit(context.Background(), "U1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Canceled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		m := NewMarketClient("http://example.com", "", 1, nil)
		if _, err := m.GetUnit(ctx, "U1"); err == nil {
			t.Error("expected error for canceled context")
		}
	})

	t.Run("SearchUnits Pagination", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("page_token") {
			case "":
				json.NewEncoder(w).Encode(UnitPage{Units: []UnitSummary{{ID: "A"}}, NextPageToken: "p2"})
			case "p2":
				json.NewEncoder(w).Encode(UnitPage{Units: []UnitSummary{{ID: "B"}}})
			default:
				t.Errorf("unexpected page token %q", r.URL.Query().Get("page_token"))
			}
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "", 0, nil)
		first, err := m.SearchUnits(context.Background(), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		second, err := m.SearchUnits(context.Background(), first.NextPageToken)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if first.Units[0].ID != "A" || second.Units[0].ID != "B" || second.NextPageToken != "" {
			t.Errorf("unexpected pages %+v %+v", first, second)
		}
	})

	t.Run("ListAssignments", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/units/U1/assignments" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"assignments":[{"id":"A1","worker_id":"W","status":"Submitted","answers":{"transcription":"hello"}}]}`))
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "", 0, nil)
		got, err := m.ListAssignments(context.Background(), "U1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].Status != AssignmentSubmitted || got[0].Answers["transcription"] != "hello" {
			t.Errorf("unexpected assignments %+v", got)
		}
	})

	t.Run("Review Endpoints", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
		}))
		defer server.Close()

		m := NewMarketClient(server.URL, "", 0, nil)
		if err := m.ApproveAssignment(context.Background(), "A1", ""); err != nil {
			t.Fatalf("approve: %v", err)
		}
		if err := m.RejectAssignment(context.Background(), "A2", "blank"); err != nil {
			t.Fatalf("reject: %v", err)
		}
		if len(paths) != 2 || paths[0] != "/assignments/A1/approve" || paths[1] != "/assignments/A2/reject" {
			t.Errorf("unexpected paths %v", paths)
		}
	})
}
