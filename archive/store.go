package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const tmpPrefix = ".tmp-"

// Store resolves stored identities to paths under the two parallel archive
// trees (image bytes and metadata records) and serves reads. It owns the
// traversal checks for caller-supplied path components.
type Store struct {
	imagesRoot   string
	metadataRoot string
}

// NewStore creates both archive roots if needed and returns a store bound to
// their absolute paths.
func NewStore(imagesPath, metadataPath string) (*Store, error) {
	absImages, err := filepath.Abs(imagesPath)
	if err != nil {
		return nil, fmt.Errorf("invalid images path '%s': %w", imagesPath, err)
	}
	absMetadata, err := filepath.Abs(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata path '%s': %w", metadataPath, err)
	}
	for _, root := range []string{absImages, absMetadata} {
		if err := os.MkdirAll(root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory '%s': %w", root, err)
		}
	}
	log.Printf("archive.store: initialized (images=%s, metadata=%s)", absImages, absMetadata)
	return &Store{imagesRoot: absImages, metadataRoot: absMetadata}, nil
}

// ImagesRoot returns the absolute path of the image tree. The query engine
// walks it as the source of truth.
func (s *Store) ImagesRoot() string { return s.imagesRoot }

// ValidatePathComponent rejects a caller-supplied identity component before
// it gets anywhere near the filesystem.
func ValidatePathComponent(name string) error {
	if name == "" {
		return newValidationError("path", "empty path component")
	}
	if name == "." || name == ".." {
		return newValidationError("path", "path traversal is not allowed")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return newValidationError("path", "path component contains forbidden characters")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return newValidationError("path", "path component contains control characters")
		}
	}
	return nil
}

// resolve joins validated components under root and double-checks containment
// the way any caller-facing path must be.
func resolve(root, date, flight, filename string) (string, error) {
	for _, component := range []string{date, flight, filename} {
		if err := ValidatePathComponent(component); err != nil {
			return "", err
		}
	}
	full := filepath.Join(root, filepath.Clean(filepath.Join(date, flight, filename)))
	if !strings.HasPrefix(full, root+string(os.PathSeparator)) {
		return "", newValidationError("path", "path escapes the archive root")
	}
	return full, nil
}

func (s *Store) imagePath(id Identity) string {
	return filepath.Join(s.imagesRoot, id.Date, id.FlightFolder, id.Filename)
}

func (s *Store) metadataPath(id Identity) string {
	return filepath.Join(s.metadataRoot, id.Date, id.FlightFolder, metadataLeaf(id.Filename))
}

// metadataLeaf swaps the image extension for .json; the stem (timestamp plus
// sequence) is unique per folder, so the mapping stays one-to-one.
func metadataLeaf(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".json"
}

// OpenImage resolves an identity to the stored image bytes. The caller owns
// closing the reader.
func (s *Store) OpenImage(date, flight, filename string) (io.ReadCloser, os.FileInfo, error) {
	full, err := resolve(s.imagesRoot, date, flight, filename)
	if err != nil {
		return nil, nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, &StorageError{Op: "open image", Err: err}
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, &StorageError{Op: "stat image", Err: err}
	}
	return file, info, nil
}

// ReadRecord resolves an identity to its metadata record.
func (s *Store) ReadRecord(date, flight, filename string) (Record, error) {
	// validate the image filename itself, not just its metadata leaf form
	if err := ValidatePathComponent(filename); err != nil {
		return Record{}, err
	}
	full, err := resolve(s.metadataRoot, date, flight, metadataLeaf(filename))
	if err != nil {
		return Record{}, err
	}
	return readRecordFile(full)
}

// readRecordByIdentity is the trusted-path variant used by the index, which
// only ever feeds identities it discovered on disk itself.
func (s *Store) readRecordByIdentity(id Identity) (Record, error) {
	return readRecordFile(s.metadataPath(id))
}

func readRecordFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, &StorageError{Op: "read metadata", Err: err}
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("corrupt metadata record at '%s': %w", filepath.Base(path), err)
	}
	return rec, nil
}

// writeFileAtomic writes data under a temporary name in the destination
// directory and renames it into place, so concurrent readers never observe a
// partially written file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tmp := filepath.Join(dir, tmpPrefix+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize '%s': %w", filepath.Base(path), err)
	}
	return nil
}
