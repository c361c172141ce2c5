package utils

import "testing"

func TestIsRasterImage(t *testing.T) {
	cases := map[string]bool{
		"a.jpg":      true,
		"b.JPEG":     true,
		"c.png":      true,
		"d.tiff":     true,
		"notes.txt":  false,
		"archive":    false,
		"x.jpg.exe":  false,
	}
	for name, want := range cases {
		if got := IsRasterImage(name); got != want {
			t.Errorf("IsRasterImage(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestIsSupportedContentType(t *testing.T) {
	cases := map[string]bool{
		"image/jpeg":                true,
		"IMAGE/PNG":                 true,
		"image/jpeg; charset=binary": true,
		"image/tiff":                true,
		"text/plain":                false,
		"application/octet-stream":  false,
		"":                          false,
	}
	for ct, want := range cases {
		if got := IsSupportedContentType(ct); got != want {
			t.Errorf("IsSupportedContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}

func TestExtensionForContentType(t *testing.T) {
	if ext := ExtensionForContentType("image/png"); ext != ".png" {
		t.Errorf("expected .png, got %s", ext)
	}
	if ext := ExtensionForContentType("unknown/type"); ext != ".jpg" {
		t.Errorf("expected .jpg default, got %s", ext)
	}
}

func TestContentTypeForFilename(t *testing.T) {
	if ct := ContentTypeForFilename("a.tif"); ct != "image/tiff" {
		t.Errorf("expected image/tiff, got %s", ct)
	}
	if ct := ContentTypeForFilename("mystery"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg default, got %s", ct)
	}
}
