package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aerialworks/dronearchive/archive"
	"github.com/aerialworks/dronearchive/utils"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// ArchiveHandler serves the read side of the archive: listings, retrieval,
// flight summaries, and aggregate statistics.
type ArchiveHandler struct {
	Store *archive.Store
	Index *archive.Index
}

// ListImages handles GET /api/images?flight_id&date
func (ah *ArchiveHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	entries, err := ah.Index.ListImages(r.URL.Query().Get("flight_id"), r.URL.Query().Get("date"))
	if err != nil {
		writeArchiveError(w, "list images", err)
		return
	}
	if entries == nil {
		entries = []archive.ImageEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":  len(entries),
		"images": entries,
	})
}

// GetImage handles GET /api/images/{date}/{flight_folder}/{filename} and
// streams the stored bytes.
func (ah *ArchiveHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	flight := chi.URLParam(r, "flight_folder")
	filename := chi.URLParam(r, "filename")

	file, info, err := ah.Store.OpenImage(date, flight, filename)
	if err != nil {
		writeArchiveError(w, "get image", err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", utils.ContentTypeForFilename(filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if _, err := io.Copy(w, file); err != nil {
		log.Printf("handlers: error streaming image %s/%s/%s: %v", date, flight, filename, err)
	}
}

// GetMetadata handles GET /api/metadata/{date}/{flight_folder}/{filename}
func (ah *ArchiveHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	rec, err := ah.Store.ReadRecord(
		chi.URLParam(r, "date"),
		chi.URLParam(r, "flight_folder"),
		chi.URLParam(r, "filename"),
	)
	if err != nil {
		writeArchiveError(w, "get metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListFlights handles GET /api/flights
func (ah *ArchiveHandler) ListFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := ah.Index.ListFlights()
	if err != nil {
		writeArchiveError(w, "list flights", err)
		return
	}
	if flights == nil {
		flights = []archive.FlightSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(flights),
		"flights": flights,
	})
}

// GetStats handles GET /api/stats
func (ah *ArchiveHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := ah.Index.ArchiveStats()
	if err != nil {
		writeArchiveError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
