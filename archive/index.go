package archive

import (
	"math"
	"strings"
	"time"

	"github.com/facette/natsort"
)

// ImageEntry is one stored image as reported by the query engine: its
// identity, its on-disk size, and its metadata record when readable. A
// missing or unreadable record degrades the entry, never the query.
type ImageEntry struct {
	Identity
	SizeBytes int64   `json:"size_bytes"`
	Record    *Record `json:"metadata,omitempty"`
}

// FlightSummary aggregates one flight session: a (date, flight folder) pair.
type FlightSummary struct {
	FlightID     string `json:"flight_id"`
	FlightFolder string `json:"flight_folder"`
	Date         string `json:"date"`
	ImageCount   int    `json:"image_count"`
	TotalBytes   int64  `json:"total_bytes"`
}

// Stats are the archive-wide aggregate counters, stamped with the time they
// were computed.
type Stats struct {
	TotalImages     int            `json:"total_images"`
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	TotalSizeGB     float64        `json:"total_size_gb"`
	TotalFlights    int            `json:"total_flights"`
	ImagesPerFlight map[string]int `json:"images_per_flight"`
	Timestamp       string         `json:"timestamp"`
}

// ListImages enumerates stored images, optionally filtered by exact flight
// folder and/or exact date folder (logical AND). A bare flight identifier is
// accepted and matched against its folder form.
func (idx *Index) ListImages(flightFilter, dateFilter string) ([]ImageEntry, error) {
	entries, err := idx.entries()
	if err != nil {
		return nil, err
	}

	flightFolder := normalizeFlightFilter(flightFilter)
	var out []ImageEntry
	for _, e := range entries {
		if flightFolder != "" && e.FlightFolder != flightFolder {
			continue
		}
		if dateFilter != "" && e.Date != dateFilter {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ListFlights returns one summary per flight session, naturally ordered so
// that FLIGHT_2 sorts before FLIGHT_10.
func (idx *Index) ListFlights() ([]FlightSummary, error) {
	entries, err := idx.entries()
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*FlightSummary)
	var keys []string
	for _, e := range entries {
		key := e.Date + "/" + e.FlightFolder
		summary, ok := byKey[key]
		if !ok {
			summary = &FlightSummary{
				FlightID:     strings.TrimPrefix(e.FlightFolder, flightFolderPrefix),
				FlightFolder: e.FlightFolder,
				Date:         e.Date,
			}
			byKey[key] = summary
			keys = append(keys, key)
		}
		summary.ImageCount++
		summary.TotalBytes += e.SizeBytes
	}

	natsort.Sort(keys)
	out := make([]FlightSummary, 0, len(keys))
	for _, key := range keys {
		out = append(out, *byKey[key])
	}
	return out, nil
}

// ArchiveStats computes archive-wide counters from the current view.
func (idx *Index) ArchiveStats() (Stats, error) {
	entries, err := idx.entries()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ImagesPerFlight: make(map[string]int)}
	flights := make(map[string]bool)
	for _, e := range entries {
		stats.TotalImages++
		stats.TotalSizeBytes += e.SizeBytes
		flights[e.Date+"/"+e.FlightFolder] = true
		stats.ImagesPerFlight[strings.TrimPrefix(e.FlightFolder, flightFolderPrefix)]++
	}
	stats.TotalFlights = len(flights)
	stats.TotalSizeGB = math.Round(float64(stats.TotalSizeBytes)/(1<<30)*100) / 100
	stats.Timestamp = time.Now().Format(timestampFormat)
	return stats, nil
}

// FlightFolderName maps a bare flight identifier to its folder form; values
// already in folder form pass through unchanged.
func FlightFolderName(id string) string {
	return normalizeFlightFilter(id)
}

// normalizeFlightFilter accepts either a flight folder name or a bare flight
// identifier and returns the folder form, or "" when no filter was given.
func normalizeFlightFilter(filter string) string {
	if filter == "" {
		return ""
	}
	if strings.HasPrefix(filter, flightFolderPrefix) {
		return filter
	}
	return flightFolderPrefix + filter
}
