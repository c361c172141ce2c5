package handlers

import (
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/aerialworks/dronearchive/archive"
	"github.com/aerialworks/dronearchive/workers"
)

const multipartMemoryLimit = 32 << 20

// UploadHandler is the HTTP face of the ingestion coordinator.
type UploadHandler struct {
	Ingestor         *archive.Ingestor
	Recorder         *workers.ActivityRecorder
	MaxUploadBytes   int64
	BatchConcurrency int
}

// uploadResponse mirrors the single-upload response contract: the stored
// identity plus the metadata record exactly as persisted.
type uploadResponse struct {
	Status       string         `json:"status"`
	Filename     string         `json:"filename"`
	Path         string         `json:"path"`
	Date         string         `json:"date"`
	FlightFolder string         `json:"flight_folder"`
	FlightID     string         `json:"flight_id"`
	UploadedAt   string         `json:"uploaded_at"`
	Metadata     archive.Record `json:"metadata"`
}

type batchResult struct {
	Index            int    `json:"index"`
	Status           string `json:"status"`
	OriginalFilename string `json:"original_filename"`
	Filename         string `json:"filename,omitempty"`
	Path             string `json:"path,omitempty"`
	Error            string `json:"error,omitempty"`
}

type batchResponse struct {
	Total      int           `json:"total"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Results    []batchResult `json:"results"`
}

// parseTelemetry reads the shared telemetry form fields. Structurally invalid
// values (non-numeric coordinates, camera settings that are not a JSON
// object) are validation errors; range checks happen in the archive.
func parseTelemetry(form url.Values) (archive.UploadInput, error) {
	var in archive.UploadInput
	var err error

	in.FlightID = form.Get("flight_id")
	in.Notes = form.Get("notes")

	if in.Latitude, err = parseOptionalFloat("gps_latitude", form.Get("gps_latitude")); err != nil {
		return in, err
	}
	if in.Longitude, err = parseOptionalFloat("gps_longitude", form.Get("gps_longitude")); err != nil {
		return in, err
	}
	if in.Altitude, err = parseOptionalFloat("altitude", form.Get("altitude")); err != nil {
		return in, err
	}

	if raw := form.Get("camera_settings"); raw != "" {
		settings := make(map[string]interface{})
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			return in, &archive.ValidationError{Field: "camera_settings", Reason: "must be a JSON object"}
		}
		in.CameraSettings = settings
	}
	return in, nil
}

func parseOptionalFloat(field, value string) (*float64, error) {
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, &archive.ValidationError{Field: field, Reason: "must be a number"}
	}
	return &f, nil
}

func (uh *UploadHandler) readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, &archive.ValidationError{Field: "file", Reason: "unreadable multipart payload"}
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, uh.MaxUploadBytes+1))
	if err != nil {
		return nil, &archive.ValidationError{Field: "file", Reason: "failed to read payload"}
	}
	if int64(len(payload)) > uh.MaxUploadBytes {
		return nil, &archive.ValidationError{Field: "file", Reason: "payload exceeds upload size limit"}
	}
	return payload, nil
}

// batchErrorMessage keeps per-item failure reasons human-readable without
// echoing internal paths for storage faults.
func batchErrorMessage(originalFilename string, err error) string {
	if archive.IsValidation(err) {
		return err.Error()
	}
	log.Printf("handlers: batch item '%s' failed: %v", originalFilename, err)
	if archive.IsStorage(err) {
		return "storage failure, this item is safe to retry"
	}
	return "internal error"
}

// Upload handles POST /api/upload: one image plus optional telemetry.
func (uh *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	in, err := parseTelemetry(url.Values(r.MultipartForm.Value))
	if err != nil {
		writeArchiveError(w, "upload", err)
		return
	}

	fileHeaders := r.MultipartForm.File["file"]
	if len(fileHeaders) == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "missing file field")
		return
	}
	header := fileHeaders[0]
	payload, err := uh.readPart(header)
	if err != nil {
		writeArchiveError(w, "upload", err)
		return
	}

	in.OriginalFilename = header.Filename
	in.ContentType = header.Header.Get("Content-Type")

	result, err := uh.Ingestor.Ingest(r.Context(), payload, in)
	if err != nil {
		writeArchiveError(w, "upload", err)
		return
	}
	if uh.Recorder != nil {
		uh.Recorder.Record(result)
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		Status:       "success",
		Filename:     result.Identity.Filename,
		Path:         result.Identity.Path(),
		Date:         result.Identity.Date,
		FlightFolder: result.Identity.FlightFolder,
		FlightID:     result.Record.FlightID,
		UploadedAt:   result.Record.UploadTimestamp,
		Metadata:     result.Record,
	})
}

// UploadBatch handles POST /api/upload/batch: N images sharing one set of
// flight-level telemetry. One bad item never fails the batch; every item
// reports its own outcome, correlated by index.
func (uh *UploadHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	shared, err := parseTelemetry(url.Values(r.MultipartForm.Value))
	if err != nil {
		writeArchiveError(w, "batch upload", err)
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeValidation, "missing files field")
		return
	}

	items := make([]archive.BatchItem, 0, len(fileHeaders))
	results := make([]batchResult, len(fileHeaders))
	for i, header := range fileHeaders {
		results[i] = batchResult{Index: i, OriginalFilename: header.Filename}

		payload, err := uh.readPart(header)
		if err != nil {
			// unreadable parts are settled here; readable ones go to the engine
			results[i].Status = "error"
			results[i].Error = err.Error()
			continue
		}
		items = append(items, archive.BatchItem{
			Index:            i,
			OriginalFilename: header.Filename,
			ContentType:      header.Header.Get("Content-Type"),
			Payload:          payload,
		})
	}

	successful := 0
	for _, outcome := range uh.Ingestor.IngestBatch(r.Context(), items, shared, uh.BatchConcurrency) {
		res := &results[outcome.Index]
		if outcome.Err != nil {
			res.Status = "error"
			res.Error = batchErrorMessage(res.OriginalFilename, outcome.Err)
			continue
		}
		res.Status = "success"
		res.Filename = outcome.Result.Identity.Filename
		res.Path = outcome.Result.Identity.Path()
		successful++
		if uh.Recorder != nil {
			uh.Recorder.Record(outcome.Result)
		}
	}

	writeJSON(w, http.StatusOK, batchResponse{
		Total:      len(fileHeaders),
		Successful: successful,
		Failed:     len(fileHeaders) - successful,
		Results:    results,
	})
}
