package archive

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aerialworks/dronearchive/utils"
)

const (
	flightFolderPrefix = "flight_"
	maxFlightIDLen     = 64
)

// Identity is the unique storage address of one archived image: the date
// folder, the flight-session folder inside it, and the stored filename.
type Identity struct {
	Date         string `json:"date"`
	FlightFolder string `json:"flight_folder"`
	Filename     string `json:"filename"`
}

// Path returns the slash-separated relative path of the image inside the
// archive tree.
func (id Identity) Path() string {
	return id.Date + "/" + id.FlightFolder + "/" + id.Filename
}

// Allocator hands out collision-free storage identities. Leaf names combine a
// millisecond timestamp with a strictly increasing counter scoped to the
// flight folder, so concurrent uploads to the same folder never collide and
// uploads to different folders never contend beyond a brief map lookup.
type Allocator struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func NewAllocator() *Allocator {
	return &Allocator{counters: make(map[string]uint64)}
}

func (a *Allocator) next(folderKey string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counters[folderKey]++
	return a.counters[folderKey]
}

// Allocate derives the storage identity for an upload arriving at now. The
// date segment always comes from the service clock, never from the client.
func (a *Allocator) Allocate(now time.Time, flightID, originalName, contentType string) Identity {
	date := now.Format("2006-01-02")
	flight := FlightFolder(flightID, now)

	seq := a.next(date + "/" + flight)
	leaf := fmt.Sprintf("%s_%03d_%04d%s",
		now.Format("20060102_150405"),
		now.Nanosecond()/int(time.Millisecond),
		seq,
		storedExtension(originalName, contentType),
	)

	return Identity{Date: date, FlightFolder: flight, Filename: leaf}
}

// FlightFolder maps a client-supplied flight identifier to its folder name.
// An absent or unsanitizable identifier falls back to a synthesized session
// named after the arrival minute, so unattributed uploads landing within the
// same minute share one session folder instead of getting one folder each.
func FlightFolder(flightID string, now time.Time) string {
	clean := SanitizeFlightID(flightID)
	if clean == "" {
		return flightFolderPrefix + now.Format("20060102_1504")
	}
	return flightFolderPrefix + clean
}

// SanitizeFlightID strips path separators, control characters, and anything
// else that could escape the flight folder. It returns "" when nothing
// usable remains; it never fails.
func SanitizeFlightID(flightID string) string {
	var b strings.Builder
	for _, r := range flightID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		}
	}
	clean := strings.Trim(b.String(), ".")
	if len(clean) > maxFlightIDLen {
		clean = clean[:maxFlightIDLen]
	}
	return clean
}

// storedExtension picks the stored file extension: the original filename's
// extension when it is a known raster type, otherwise the canonical extension
// for the declared content type.
func storedExtension(originalName, contentType string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if utils.IsRasterImage(originalName) {
		return ext
	}
	return utils.ExtensionForContentType(contentType)
}
