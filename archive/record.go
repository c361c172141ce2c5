package archive

import (
	"time"

	"github.com/aerialworks/dronearchive/utils"
)

// timestampFormat serializes times with microsecond precision, matching the
// records already on disk.
const timestampFormat = "2006-01-02T15:04:05.999999Z07:00"

// GPS carries the optional coordinates reported by the drone at capture time.
type GPS struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// UploadInput is the validated client-side portion of an upload: the declared
// file attributes plus optional telemetry shared verbatim into the record.
type UploadInput struct {
	OriginalFilename string
	ContentType      string
	FlightID         string
	Latitude         *float64
	Longitude        *float64
	Altitude         *float64
	CameraSettings   map[string]interface{}
	Notes            string
}

// Record is the persisted metadata for one image. It is written once next to
// the image bytes and never mutated; every field needed to interpret the
// image is self-contained, so a record can be recovered in isolation.
type Record struct {
	OriginalFilename string                 `json:"original_filename"`
	StoredFilename   string                 `json:"stored_filename"`
	UploadTimestamp  string                 `json:"upload_timestamp"`
	FlightID         string                 `json:"flight_id"`
	GPS              GPS                    `json:"gps"`
	Altitude         *float64               `json:"altitude,omitempty"`
	CameraSettings   map[string]interface{} `json:"camera_settings,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	FileSize         int64                  `json:"file_size"`
	ContentType      string                 `json:"content_type"`
	Path             string                 `json:"path"`
	Exif             *utils.ExifSummary     `json:"exif,omitempty"`
}

// ValidateInput rejects structurally or semantically bad telemetry before any
// storage I/O. Out-of-range coordinates are rejected outright; negative
// altitude passes through, since barometric sensors legitimately report it.
func ValidateInput(in UploadInput) error {
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return newValidationError("gps_latitude", "must be between -90 and 90")
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return newValidationError("gps_longitude", "must be between -180 and 180")
	}
	if in.ContentType != "" && !utils.IsSupportedContentType(in.ContentType) {
		return newValidationError("content_type", "unsupported content type: "+in.ContentType)
	}
	if in.ContentType == "" && !utils.IsRasterImage(in.OriginalFilename) {
		return newValidationError("content_type", "content type missing and filename extension unrecognized")
	}
	return nil
}

// BuildRecord assembles the immutable metadata record for an allocated
// identity. Pure function: no I/O, no clock reads, no failure modes beyond
// what ValidateInput already covered.
func BuildRecord(id Identity, in UploadInput, size int64, now time.Time, exifSummary *utils.ExifSummary) Record {
	flightID := SanitizeFlightID(in.FlightID)
	if flightID == "" {
		// unattributed uploads report the synthesized session folder
		flightID = id.FlightFolder
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = utils.ContentTypeForFilename(in.OriginalFilename)
	}

	return Record{
		OriginalFilename: in.OriginalFilename,
		StoredFilename:   id.Filename,
		UploadTimestamp:  now.Format(timestampFormat),
		FlightID:         flightID,
		GPS:              GPS{Latitude: in.Latitude, Longitude: in.Longitude},
		Altitude:         in.Altitude,
		CameraSettings:   in.CameraSettings,
		Notes:            in.Notes,
		FileSize:         size,
		ContentType:      contentType,
		Path:             id.Path(),
		Exif:             exifSummary,
	}
}
