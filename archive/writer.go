package archive

import (
	"encoding/json"
	"fmt"
	"log"
)

// Writer is the sole component that mutates archive state. It persists image
// bytes and the metadata record as one logical unit: bytes first, record
// second, each through an atomic rename.
//
// If the record write fails after the image landed, the orphaned image is
// deliberately left in place for out-of-band reconciliation; synchronously
// deleting a just-written file would only add another failure point. The
// resulting guarantee is "metadata implies image", not the reverse, and a
// success response always implies both writes completed.
type Writer struct {
	store    *Store
	onCommit func()
}

// NewWriter returns a writer over the store. onCommit, when non-nil, runs
// after every successful commit; the index registers its cache invalidation
// there.
func NewWriter(store *Store, onCommit func()) *Writer {
	return &Writer{store: store, onCommit: onCommit}
}

// Commit durably persists the image bytes and their record under id.
func (w *Writer) Commit(id Identity, image []byte, rec Record) error {
	if err := writeFileAtomic(w.store.imagePath(id), image); err != nil {
		return &StorageError{Op: "write image", Err: err}
	}

	encoded, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		// never expected for a Record; treated like a failed metadata write
		log.Printf("archive.writer: orphaned image %s (record marshal failed: %v)", id.Path(), err)
		return fmt.Errorf("failed to encode metadata record: %w", err)
	}
	if err := writeFileAtomic(w.store.metadataPath(id), encoded); err != nil {
		log.Printf("archive.writer: orphaned image %s (metadata write failed: %v)", id.Path(), err)
		return &StorageError{Op: "write metadata", Err: err}
	}

	if w.onCommit != nil {
		w.onCommit()
	}
	return nil
}
