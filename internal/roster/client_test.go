package roster

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

const numericRoster = `{"rostros":[{"id":17,"encoding":[0.1,0.2]},{"id":"18","encoding":[0.3,0.4]}]}`

func setupMockAttendanceServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/biometricos/matricula/42", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rostros":[{"id":"student-1","encoding":[0.1,0.2,0.3]},{"id":"student-2","encoding":[0.4,0.5,0.6]}]}`))
	})
	mux.HandleFunc("/api/biometricos/matricula/numeric", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(numericRoster))
	})
	mux.HandleFunc("/api/biometricos/matricula/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rostros":null}`))
	})
	mux.HandleFunc("/api/biometricos/matricula/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database down", http.StatusInternalServerError)
	})
	mux.HandleFunc("/api/biometricos/matricula/garbage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	})

	return httptest.NewServer(mux)
}

func TestClient_Roster(t *testing.T) {
	server := setupMockAttendanceServer(t)
	defer server.Close()

	client, err := NewClient(server.URL+"/", time.Second)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	entries, err := client.Roster(context.Background(), "42")
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1].ID != "student-2" || entries[1].Encoding[2] != 0.6 {
		t.Errorf("unexpected entry %+v", entries[1])
	}
}

func TestClient_Roster_NumericIDs(t *testing.T) {
	server := setupMockAttendanceServer(t)
	defer server.Close()

	client, _ := NewClient(server.URL, time.Second)
	fetched, err := client.Roster(context.Background(), "numeric")
	if err != nil {
		t.Fatalf("Roster failed: %v", err)
	}
	if len(fetched) != 2 || fetched[0].ID != "17" || fetched[1].ID != "18" {
		t.Fatalf("unexpected entries %+v", fetched)
	}

	decoded, err := Decode([]byte(numericRoster))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded) != 2 || decoded[0].ID != fetched[0].ID || decoded[1].ID != fetched[1].ID {
		t.Errorf("Decode and Roster disagree: %+v vs %+v", decoded, fetched)
	}
}

func TestClient_Roster_Empty(t *testing.T) {
	server := setupMockAttendanceServer(t)
	defer server.Close()

	client, _ := NewClient(server.URL, time.Second)
	entries, err := client.Roster(context.Background(), "empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil roster, got %#v", entries)
	}
}

func TestClient_Roster_Errors(t *testing.T) {
	server := setupMockAttendanceServer(t)
	defer server.Close()

	client, _ := NewClient(server.URL, time.Second)

	tests := []struct {
		group    string
		expected error
	}{
		{"unknown", ErrGroupNotFound},
		{"broken", ErrUnavailable},
		{"garbage", ErrUnavailable},
		{"", ErrGroupNotFound},
		{"../admin", ErrGroupNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.group, func(t *testing.T) {
			_, err := client.Roster(context.Background(), tt.group)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestNewClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "://missing-scheme"} {
		if _, err := NewClient(raw, 0); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestClient_CaptureResponse(t *testing.T) {
	server := setupMockAttendanceServer(t)
	defer server.Close()

	dir := t.TempDir()
	client, _ := NewClient(server.URL, time.Second)
	if err := client.SetCaptureDir(dir); err != nil {
		t.Fatalf("SetCaptureDir failed: %v", err)
	}

	if _, err := client.Roster(context.Background(), "42"); err != nil {
		t.Fatalf("Roster failed: %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Errorf("expected 1 captured response, got %d", len(files))
	}
}
