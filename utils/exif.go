package utils

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// ExifSummary holds the camera fields worth keeping from an uploaded image's
// EXIF block. Every field is optional; drones frequently strip or omit tags.
type ExifSummary struct {
	CameraMake   *string  `json:"camera_make,omitempty"`
	CameraModel  *string  `json:"camera_model,omitempty"`
	ISO          *int     `json:"iso,omitempty"`
	FocalLength  *float64 `json:"focal_length,omitempty"`
	Aperture     *float64 `json:"aperture,omitempty"`
	ShutterSpeed *string  `json:"shutter_speed,omitempty"`
	TakenAt      *int64   `json:"taken_at,omitempty"`
}

// helper to safely get and convert a rational tag (like Aperture, FocalLength)
func getRational(exifData *exif.Exif, tagName exif.FieldName) *float64 {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// sometimes stored as Int instead
		valInt, errInt := tag.Int(0)
		if errInt == nil {
			fVal := float64(valInt)
			return &fVal
		}
		return nil
	}
	val := float64(num) / float64(den)
	return &val
}

// helper to safely get and convert an integer tag (like ISO)
func getInt(exifData *exif.Exif, tagName exif.FieldName) *int {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &val
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val := strings.TrimRight(strings.Trim(tag.String(), `"`), "\x00")
	if val == "" {
		return nil
	}
	return &val
}

func getShutterSpeed(exifData *exif.Exif) *string {
	tag, err := exifData.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}
	if num == 1 && den > 1 {
		s := fmt.Sprintf("1/%d", den)
		return &s
	}
	val := float64(num) / float64(den)
	if val >= 1.0 {
		s := fmt.Sprintf("%.1fs", val)
		return &s
	}
	s := fmt.Sprintf("%.4fs", val)
	return &s
}

// CaptureExif extracts a best-effort camera summary from raw image bytes.
// It returns nil when the image carries no parseable EXIF block; it never
// returns an error, since missing EXIF must not fail an upload.
func CaptureExif(data []byte) *ExifSummary {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil || exifData == nil {
		return nil
	}

	summary := &ExifSummary{
		CameraMake:   getString(exifData, exif.Make),
		CameraModel:  getString(exifData, exif.Model),
		ISO:          getInt(exifData, exif.ISOSpeedRatings),
		FocalLength:  getRational(exifData, exif.FocalLength),
		Aperture:     getRational(exifData, exif.FNumber),
		ShutterSpeed: getShutterSpeed(exifData),
	}
	if taken, err := exifData.DateTime(); err == nil {
		ts := taken.Unix()
		summary.TakenAt = &ts
	}

	if summary.CameraMake == nil && summary.CameraModel == nil && summary.ISO == nil &&
		summary.FocalLength == nil && summary.Aperture == nil &&
		summary.ShutterSpeed == nil && summary.TakenAt == nil {
		return nil
	}
	return summary
}
