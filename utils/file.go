package utils

import (
	"path/filepath"
	"strings"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

var contentTypeToExtension = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tiff",
}

var extensionToContentType = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// IsSupportedContentType checks the declared MIME type against the upload
// allow-list. Parameters after a semicolon are ignored.
func IsSupportedContentType(contentType string) bool {
	_, ok := contentTypeToExtension[normalizeContentType(contentType)]
	return ok
}

// ExtensionForContentType returns the canonical stored extension for a
// declared MIME type, defaulting to .jpg for anything unrecognized.
func ExtensionForContentType(contentType string) string {
	if ext, ok := contentTypeToExtension[normalizeContentType(contentType)]; ok {
		return ext
	}
	return ".jpg"
}

// ContentTypeForFilename maps a stored filename back to a response MIME type,
// defaulting to image/jpeg like the extension map does in reverse.
func ContentTypeForFilename(filename string) string {
	if ct, ok := extensionToContentType[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "image/jpeg"
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.IndexByte(ct, ';'); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	return ct
}
