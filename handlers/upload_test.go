package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aerialworks/dronearchive/archive"
)

// ========================================
// Test Setup Helpers
// ========================================

func newTestRouter(t *testing.T) (*chi.Mux, *archive.Store) {
	t.Helper()

	base := t.TempDir()
	store, err := archive.NewStore(filepath.Join(base, "images"), filepath.Join(base, "metadata"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	index := archive.NewIndex(store)
	t.Cleanup(index.Close)

	writer := archive.NewWriter(store, index.Invalidate)
	ingestor := archive.NewIngestor(archive.NewAllocator(), writer)

	uploadHandler := &UploadHandler{
		Ingestor:         ingestor,
		MaxUploadBytes:   8 << 20,
		BatchConcurrency: 4,
	}
	archiveHandler := &ArchiveHandler{Store: store, Index: index}

	r := chi.NewRouter()
	r.Get("/health", Health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", uploadHandler.Upload)
		r.Post("/upload/batch", uploadHandler.UploadBatch)
		r.Get("/images", archiveHandler.ListImages)
		r.Get("/images/{date}/{flight_folder}/{filename}", archiveHandler.GetImage)
		r.Get("/metadata/{date}/{flight_folder}/{filename}", archiveHandler.GetMetadata)
		r.Get("/flights", archiveHandler.ListFlights)
		r.Get("/stats", archiveHandler.GetStats)
	})
	return r, store
}

type formFile struct {
	field       string
	filename    string
	contentType string
	payload     []byte
}

func buildMultipart(t *testing.T, files []formFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create multipart part: %v", err)
		}
		if _, err := part.Write(f.payload); err != nil {
			t.Fatalf("failed to write multipart payload: %v", err)
		}
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("failed to write form field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

func doRequest(t *testing.T, router *chi.Mux, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func uploadOne(t *testing.T, router *chi.Mux, filename string, payload []byte, fields map[string]string) uploadResponse {
	t.Helper()
	body, ct := buildMultipart(t, []formFile{
		{field: "file", filename: filename, contentType: "image/jpeg", payload: payload},
	}, fields)
	rr := doRequest(t, router, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload failed with status %d: %s", rr.Code, rr.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode upload response: %v", err)
	}
	return resp
}

// ========================================
// Upload
// ========================================

func TestUploadWithTelemetry(t *testing.T) {
	router, _ := newTestRouter(t)

	resp := uploadOne(t, router, "survey.jpg", []byte("fake jpeg bytes"), map[string]string{
		"flight_id":       "FLIGHT_001",
		"gps_latitude":    "37.7749",
		"gps_longitude":   "-122.4194",
		"altitude":        "100.5",
		"camera_settings": `{"iso": 400, "shutter": "1/1000"}`,
		"notes":           "test flight",
	})

	if resp.Status != "success" {
		t.Fatalf("unexpected status: %s", resp.Status)
	}
	if resp.Date != time.Now().Format("2006-01-02") {
		t.Errorf("expected today's date folder, got %s", resp.Date)
	}
	if resp.FlightFolder != "flight_FLIGHT_001" {
		t.Errorf("unexpected flight folder: %s", resp.FlightFolder)
	}

	// metadata is immediately retrievable and echoes the telemetry exactly
	rr := doRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/metadata/%s/%s/%s", resp.Date, resp.FlightFolder, resp.Filename), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metadata fetch failed: %d %s", rr.Code, rr.Body.String())
	}
	var rec archive.Record
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("failed to decode record: %v", err)
	}
	if rec.GPS.Latitude == nil || *rec.GPS.Latitude != 37.7749 {
		t.Errorf("latitude not returned exactly: %v", rec.GPS.Latitude)
	}
	if rec.Altitude == nil || *rec.Altitude != 100.5 {
		t.Errorf("altitude mismatch: %v", rec.Altitude)
	}
	if rec.OriginalFilename != "survey.jpg" || rec.Notes != "test flight" {
		t.Errorf("record fields wrong: %+v", rec)
	}
	if rec.CameraSettings["shutter"] != "1/1000" {
		t.Errorf("camera settings not preserved: %v", rec.CameraSettings)
	}
	if rec.FileSize != int64(len("fake jpeg bytes")) {
		t.Errorf("file size wrong: %d", rec.FileSize)
	}

	// the image bytes round-trip too
	rr = doRequest(t, router, http.MethodGet,
		fmt.Sprintf("/api/images/%s/%s/%s", resp.Date, resp.FlightFolder, resp.Filename), nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("image fetch failed: %d", rr.Code)
	}
	if rr.Body.String() != "fake jpeg bytes" {
		t.Errorf("image bytes mismatch")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("unexpected content type: %s", ct)
	}
}

func TestUploadRejectsOutOfRangeLatitude(t *testing.T) {
	router, _ := newTestRouter(t)
	body, ct := buildMultipart(t, []formFile{
		{field: "file", filename: "a.jpg", contentType: "image/jpeg", payload: []byte("x")},
	}, map[string]string{"gps_latitude": "95.0"})

	rr := doRequest(t, router, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUploadRejectsNonNumericLatitude(t *testing.T) {
	router, _ := newTestRouter(t)
	body, ct := buildMultipart(t, []formFile{
		{field: "file", filename: "a.jpg", contentType: "image/jpeg", payload: []byte("x")},
	}, map[string]string{"gps_latitude": "north"})

	rr := doRequest(t, router, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUploadRejectsUnsupportedContentType(t *testing.T) {
	router, _ := newTestRouter(t)
	body, ct := buildMultipart(t, []formFile{
		{field: "file", filename: "notes.txt", contentType: "text/plain", payload: []byte("hello")},
	}, nil)

	rr := doRequest(t, router, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUploadRejectsEmptyPayload(t *testing.T) {
	router, _ := newTestRouter(t)
	body, ct := buildMultipart(t, []formFile{
		{field: "file", filename: "a.jpg", contentType: "image/jpeg", payload: nil},
	}, nil)

	rr := doRequest(t, router, http.MethodPost, "/api/upload", body, ct)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// ========================================
// Batch upload
// ========================================

func TestBatchUploadPartialFailure(t *testing.T) {
	router, _ := newTestRouter(t)

	body, ct := buildMultipart(t, []formFile{
		{field: "files", filename: "ok1.jpg", contentType: "image/jpeg", payload: []byte("one")},
		{field: "files", filename: "bad.txt", contentType: "text/plain", payload: []byte("nope")},
		{field: "files", filename: "ok2.jpg", contentType: "image/jpeg", payload: []byte("two")},
	}, map[string]string{"flight_id": "BATCH_01"})

	rr := doRequest(t, router, http.MethodPost, "/api/upload/batch", body, ct)
	if rr.Code != http.StatusOK {
		t.Fatalf("batch upload failed: %d %s", rr.Code, rr.Body.String())
	}
	var resp batchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode batch response: %v", err)
	}

	if resp.Total != 3 || resp.Successful != 2 || resp.Failed != 1 {
		t.Fatalf("unexpected batch counts: %+v", resp)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[1].Status != "error" || resp.Results[1].OriginalFilename != "bad.txt" {
		t.Fatalf("item 1 should have failed: %+v", resp.Results[1])
	}

	// succeeded items are independently retrievable
	for _, idx := range []int{0, 2} {
		res := resp.Results[idx]
		if res.Status != "success" {
			t.Fatalf("item %d should have succeeded: %+v", idx, res)
		}
		get := doRequest(t, router, http.MethodGet, "/api/images/"+res.Path, nil, "")
		if get.Code != http.StatusOK {
			t.Fatalf("item %d not retrievable: %d", idx, get.Code)
		}
	}
}

// ========================================
// Queries
// ========================================

func TestListImagesFilterByFlight(t *testing.T) {
	router, _ := newTestRouter(t)
	uploadOne(t, router, "a1.jpg", []byte("a"), map[string]string{"flight_id": "ALPHA"})
	uploadOne(t, router, "a2.jpg", []byte("b"), map[string]string{"flight_id": "ALPHA"})
	uploadOne(t, router, "b1.jpg", []byte("c"), map[string]string{"flight_id": "BRAVO"})

	rr := doRequest(t, router, http.MethodGet, "/api/images?flight_id=ALPHA", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list failed: %d", rr.Code)
	}
	var resp struct {
		Total  int                  `json:"total"`
		Images []archive.ImageEntry `json:"images"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode list response: %v", err)
	}
	if resp.Total != 2 {
		t.Fatalf("expected 2 ALPHA images, got %d", resp.Total)
	}
	for _, img := range resp.Images {
		if img.FlightFolder != "flight_ALPHA" {
			t.Errorf("foreign flight in filtered result: %+v", img.Identity)
		}
	}
}

func TestFlightsAndStats(t *testing.T) {
	router, _ := newTestRouter(t)
	uploadOne(t, router, "a1.jpg", []byte("aaaa"), map[string]string{"flight_id": "ALPHA"})
	uploadOne(t, router, "b1.jpg", []byte("bb"), map[string]string{"flight_id": "BRAVO"})

	rr := doRequest(t, router, http.MethodGet, "/api/flights", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("flights failed: %d", rr.Code)
	}
	var flights struct {
		Total   int                     `json:"total"`
		Flights []archive.FlightSummary `json:"flights"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &flights); err != nil {
		t.Fatalf("failed to decode flights: %v", err)
	}
	if flights.Total != 2 {
		t.Fatalf("expected 2 flights, got %d", flights.Total)
	}

	rr = doRequest(t, router, http.MethodGet, "/api/stats", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("stats failed: %d", rr.Code)
	}
	var stats archive.Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalImages != 2 || stats.TotalSizeBytes != 6 || stats.TotalFlights != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Timestamp == "" {
		t.Fatal("stats response missing timestamp")
	}
}

// ========================================
// Retrieval safety
// ========================================

func TestRetrievalRejectsTraversal(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, target := range []string{
		"/api/images/2026-08-26/flight_F1/a..jpg",
		"/api/metadata/2026-08-26/flight_F1/a..jpg",
	} {
		rr := doRequest(t, router, http.MethodGet, target, nil, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", target, rr.Code)
		}
	}
}

func TestRetrievalNotFound(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := doRequest(t, router, http.MethodGet, "/api/images/2026-08-26/flight_F1/missing.jpg", nil, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

// ========================================
// Health
// ========================================

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := doRequest(t, router, http.MethodGet, "/health", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "healthy" || resp["service"] != "drone-image-server" {
		t.Fatalf("unexpected health payload: %v", resp)
	}
}
