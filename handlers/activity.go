package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/aerialworks/dronearchive/archive"
	"github.com/aerialworks/dronearchive/models"
	"github.com/aerialworks/dronearchive/repository"
)

// ActivityHandler serves the upload journal. The journal is an audit trail;
// archive listings come from the filesystem-backed query engine instead.
type ActivityHandler struct {
	Repo *repository.UploadLogRepository
}

// ListActivity handles GET /api/activity?flight_id&date&limit
func (ah *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			WriteAPIError(w, http.StatusBadRequest, CodeValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	flightFolder := ""
	if flightID := r.URL.Query().Get("flight_id"); flightID != "" {
		flightFolder = archive.FlightFolderName(flightID)
	}

	entries, err := ah.Repo.ListRecent(flightFolder, r.URL.Query().Get("date"), limit)
	if err != nil {
		log.Printf("handlers: failed to list upload activity: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "failed to read upload journal")
		return
	}
	if entries == nil {
		entries = []models.UploadLog{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(entries),
		"uploads": entries,
	})
}
