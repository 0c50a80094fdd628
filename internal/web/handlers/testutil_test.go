package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/database/mock"
	"github.com/kozaktomas/facegate/internal/embedding"
	"github.com/kozaktomas/facegate/internal/recognition"
)

// testConfig creates a minimal config for testing. The tiny dimension keeps
// test vectors readable.
func testConfig() *config.Config {
	return &config.Config{
		Recognition: config.RecognitionConfig{
			MatchThreshold:     0.60,
			UncertainThreshold: 0.40,
			OutlierThreshold:   0.30,
			Dimension:          4,
			AggregationMethod:  recognition.MethodMean,
			MaxEnrollImages:    10,
		},
		Attendance: config.AttendanceConfig{
			Location:    "main_gate",
			HistoryDays: 30,
		},
	}
}

// embedResponse is one scripted reply from the fake embedding server.
type embedResponse struct {
	embedding []float32
	noFace    bool
	status    int // non-zero forces a bare HTTP error reply
}

// newEmbeddingServer starts a fake embedding server that replies with the
// scripted responses in order, repeating the last one when the script runs
// out.
func newEmbeddingServer(t *testing.T, script ...embedResponse) *httptest.Server {
	t.Helper()
	if len(script) == 0 {
		t.Fatal("embedding server needs at least one scripted response")
	}

	var mu sync.Mutex
	next := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := next
		if idx >= len(script) {
			idx = len(script) - 1
		}
		resp := script[idx]
		next++
		mu.Unlock()

		if resp.status != 0 {
			w.WriteHeader(resp.status)
			return
		}

		result := embedding.FaceResult{Model: "facenet"}
		if !resp.noFace {
			result.FacesCount = 1
			result.Faces = []embedding.Face{{
				Dim:       len(resp.embedding),
				Embedding: resp.embedding,
				BBox:      []float64{0, 0, 100, 100},
				DetScore:  0.99,
			}}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}))
	t.Cleanup(server.Close)
	return server
}

// newTestEmbedder creates an embedding client talking to the fake server.
func newTestEmbedder(server *httptest.Server) *embedding.Client {
	return embedding.NewClient(server.URL, "facenet", 0)
}

// newStudentsHandler wires a students handler to mocks and the fake
// embedding server, bypassing the database registry.
func newStudentsHandler(server *httptest.Server, students *mock.MockStudentWriter) *StudentsHandler {
	cfg := testConfig()
	return &StudentsHandler{
		config:     cfg,
		aggregator: recognition.NewAggregator(cfg.Recognition.OutlierThreshold),
		embedder:   newTestEmbedder(server),
		students:   students,
	}
}

// newVerifyHandler wires a verify handler to mocks and the fake embedding
// server.
func newVerifyHandler(t *testing.T, server *httptest.Server, students *mock.MockStudentWriter, attendance *mock.MockAttendanceWriter) *VerifyHandler {
	t.Helper()
	cfg := testConfig()
	matcher, err := recognition.NewMatcher(cfg.Recognition.MatchThreshold, cfg.Recognition.UncertainThreshold)
	if err != nil {
		t.Fatalf("failed to create matcher: %v", err)
	}
	return &VerifyHandler{
		config:     cfg,
		matcher:    matcher,
		embedder:   newTestEmbedder(server),
		students:   students,
		attendance: attendance,
	}
}

// testJPEG renders a small JPEG for upload tests.
func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a multipart request with the given form fields
// and one file part per image under fileField.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, fileField string, images ...[]byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	for i, img := range images {
		part, err := writer.CreateFormFile(fileField, fmt.Sprintf("capture%d.jpg", i))
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(img); err != nil {
			t.Fatalf("failed to write image data: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
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
