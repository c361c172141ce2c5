package archive

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	base := t.TempDir()
	store, err := NewStore(filepath.Join(base, "images"), filepath.Join(base, "metadata"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func TestCommitWritesImageAndRecord(t *testing.T) {
	store := newTestStore(t)
	writer := NewWriter(store, nil)

	id := Identity{Date: "2026-08-26", FlightFolder: "flight_F1", Filename: "20260826_120000_000_0001.jpg"}
	rec := Record{StoredFilename: id.Filename, FlightID: "F1", FileSize: 9, ContentType: "image/jpeg", Path: id.Path()}

	if err := writer.Commit(id, []byte("jpegbytes"), rec); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	imageBytes, err := os.ReadFile(store.imagePath(id))
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if string(imageBytes) != "jpegbytes" {
		t.Fatalf("image content mismatch: %q", imageBytes)
	}

	recordBytes, err := os.ReadFile(store.metadataPath(id))
	if err != nil {
		t.Fatalf("metadata not written: %v", err)
	}
	var stored Record
	if err := json.Unmarshal(recordBytes, &stored); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if stored.StoredFilename != id.Filename {
		t.Fatalf("stored record mismatch: %+v", stored)
	}
}

func TestCommitLeavesNoTemporaryFiles(t *testing.T) {
	store := newTestStore(t)
	writer := NewWriter(store, nil)

	id := Identity{Date: "2026-08-26", FlightFolder: "flight_F1", Filename: "a.jpg"}
	if err := writer.Commit(id, []byte("x"), Record{StoredFilename: "a.jpg"}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	for _, root := range []string{store.imagesRoot, store.metadataRoot} {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(filepath.Base(path), tmpPrefix) {
				t.Errorf("leftover temporary file: %s", path)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("walk failed: %v", err)
		}
	}
}

func TestCommitInvokesOnCommit(t *testing.T) {
	store := newTestStore(t)
	calls := 0
	writer := NewWriter(store, func() { calls++ })

	id := Identity{Date: "d", FlightFolder: "f", Filename: "a.jpg"}
	if err := writer.Commit(id, []byte("x"), Record{}); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one onCommit call, got %d", calls)
	}
}

func TestReadRecordRoundTrip(t *testing.T) {
	store := newTestStore(t)
	writer := NewWriter(store, nil)

	id := Identity{Date: "2026-08-26", FlightFolder: "flight_F1", Filename: "b.png"}
	lat := 37.7749
	rec := Record{StoredFilename: "b.png", FlightID: "F1", GPS: GPS{Latitude: &lat}, ContentType: "image/png"}
	if err := writer.Commit(id, []byte("pngbytes"), rec); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	got, err := store.ReadRecord("2026-08-26", "flight_F1", "b.png")
	if err != nil {
		t.Fatalf("read record failed: %v", err)
	}
	if got.GPS.Latitude == nil || *got.GPS.Latitude != 37.7749 {
		t.Fatalf("latitude did not round-trip: %v", got.GPS.Latitude)
	}
}

func TestOpenImageNotFound(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.OpenImage("2026-08-26", "flight_F1", "missing.jpg")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTraversalRejectedBeforeFilesystem(t *testing.T) {
	store := newTestStore(t)

	cases := [][3]string{
		{"..", "flight_F1", "a.jpg"},
		{"2026-08-26", "../flight_F1", "a.jpg"},
		{"2026-08-26", "flight_F1", "../../etc/passwd"},
		{"2026-08-26", "flight_F1", "a..jpg"},
		{"2026-08-26", "flight_F1", ""},
		{"2026-08-26", "flight\x00F1", "a.jpg"},
	}
	for _, tc := range cases {
		_, _, err := store.OpenImage(tc[0], tc[1], tc[2])
		if !IsValidation(err) {
			t.Errorf("OpenImage(%q, %q, %q): expected validation error, got %v", tc[0], tc[1], tc[2], err)
		}
		_, err = store.ReadRecord(tc[0], tc[1], tc[2])
		if !IsValidation(err) {
			t.Errorf("ReadRecord(%q, %q, %q): expected validation error, got %v", tc[0], tc[1], tc[2], err)
		}
	}
}
