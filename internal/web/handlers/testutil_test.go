package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kozaktomas/facerec/internal/catalog"
	"github.com/kozaktomas/facerec/internal/embedding"
	"github.com/kozaktomas/facerec/internal/facematch"
	"github.com/kozaktomas/facerec/internal/roster"
	"github.com/kozaktomas/facerec/internal/store"
)

// testMaxUpload is the upload cap used by handler tests.
const testMaxUpload = 1 << 20

// stubExtractor answers with the faces registered for the exact image bytes.
// Unknown bytes are reported as undecodable.
type stubExtractor struct {
	mu    sync.Mutex
	faces map[string][][]float32
	err   error
}

func newStubExtractor() *stubExtractor {
	return &stubExtractor{faces: make(map[string][][]float32)}
}

func (s *stubExtractor) register(image []byte, faces ...[]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faces[string(image)] = faces
}

func (s *stubExtractor) Extract(_ context.Context, image []byte) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	faces, ok := s.faces[string(image)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown test image", embedding.ErrDecode)
	}
	return faces, nil
}

// stubRosters serves fixed rosters per group.
type stubRosters struct {
	groups map[string][]facematch.Entry
	err    error
}

func (s *stubRosters) Roster(_ context.Context, group string) ([]facematch.Entry, error) {
	if s.err != nil {
		return nil, s.err
	}
	entries, ok := s.groups[group]
	if !ok {
		return nil, fmt.Errorf("group %q: %w", group, roster.ErrGroupNotFound)
	}
	return entries, nil
}

// testEnv bundles a manager backed by a temporary faces directory.
type testEnv struct {
	dir       string
	extractor *stubExtractor
	manager   *catalog.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	ex := newStubExtractor()
	m := catalog.NewManager(catalog.New(), store.New(dir), ex, facematch.NewEngine(facematch.DefaultTolerance),
		catalog.ManagerOptions{Logger: quietLogger()})
	return &testEnv{dir: dir, extractor: ex, manager: m}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// picture returns a distinct, decodable PNG for every shade.
func picture(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: shade})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test picture: %v", err)
	}
	return buf.Bytes()
}

// uploadRequest builds a multipart request carrying data as the "file" field
// plus any extra form fields.
func uploadRequest(t *testing.T, method, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// assertIDs checks a JSON list of ids.
func assertIDs(t *testing.T, recorder *httptest.ResponseRecorder, expected ...string) {
	t.Helper()
	var ids []string
	parseJSONResponse(t, recorder, &ids)
	if len(ids) != len(expected) {
		t.Fatalf("expected ids %v, got %v", expected, ids)
	}
	for i := range ids {
		if ids[i] != expected[i] {
			t.Errorf("expected ids %v, got %v", expected, ids)
			return
		}
	}
}
