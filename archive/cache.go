package archive

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Index answers queries by walking the image tree: date folders, flight
// folders, files. The filesystem is the source of truth; the walk result is
// only cached between changes. The cache is invalidated by the Writer after
// every commit and, for changes made behind the service's back, by an
// fsnotify watcher over the archive directories. A stale cache window is a
// latency artifact, never an error.
type Index struct {
	store *Store

	mu   sync.RWMutex
	snap []ImageEntry // nil means invalid
	gen  uint64       // bumped on every invalidation

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewIndex builds an index over the store's image tree. Failure to set up the
// filesystem watcher degrades to uncached-on-external-change behavior rather
// than failing startup: the Writer's invalidation hook still covers every
// change the service makes itself.
func NewIndex(store *Store) *Index {
	idx := &Index{store: store, done: make(chan struct{})}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("archive.index: filesystem watcher unavailable, cache relies on writer invalidation only: %v", err)
		return idx
	}
	if err := watcher.Add(store.ImagesRoot()); err != nil {
		log.Printf("archive.index: failed to watch archive root: %v", err)
		watcher.Close()
		return idx
	}
	idx.watcher = watcher
	go idx.watch()
	return idx
}

// Close stops the filesystem watcher.
func (idx *Index) Close() {
	close(idx.done)
	if idx.watcher != nil {
		idx.watcher.Close()
	}
}

// Invalidate drops the cached view. The next query rebuilds from disk. The
// generation bump makes an invalidation that lands during a rebuild stick:
// that rebuild's result is discarded instead of cached.
func (idx *Index) Invalidate() {
	idx.mu.Lock()
	idx.snap = nil
	idx.gen++
	idx.mu.Unlock()
}

func (idx *Index) watch() {
	for {
		select {
		case <-idx.done:
			return
		case event, ok := <-idx.watcher.Events:
			if !ok {
				return
			}
			if strings.Contains(event.Name, tmpPrefix) {
				continue // in-flight atomic writes are invisible to readers
			}
			idx.Invalidate()
		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("archive.index: watcher error: %v", err)
			idx.Invalidate()
		}
	}
}

// entries returns the current view, rebuilding it from disk when invalid.
func (idx *Index) entries() ([]ImageEntry, error) {
	idx.mu.RLock()
	snap := idx.snap
	gen := idx.gen
	idx.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	rebuilt, err := idx.rebuild()
	if err != nil {
		return nil, err
	}

	// Cache the result only if nothing invalidated the view while the walk
	// ran. A commit that raced the walk may be missing from rebuilt; the
	// caller still gets a view that was true at some point during the call,
	// but it must not outlive the commit's invalidation.
	idx.mu.Lock()
	if idx.gen == gen {
		idx.snap = rebuilt
	}
	idx.mu.Unlock()
	return rebuilt, nil
}

// rebuild walks the fixed date/flight/file layout. Directory reads come back
// name-sorted from os.ReadDir, so the result is deterministic. Every
// directory seen gets (re-)registered with the watcher so later changes
// inside it invalidate the cache.
func (idx *Index) rebuild() ([]ImageEntry, error) {
	root := idx.store.ImagesRoot()
	entries := make([]ImageEntry, 0)

	dateDirs, err := os.ReadDir(root)
	if err != nil {
		return nil, &StorageError{Op: "scan archive", Err: err}
	}
	for _, dateDir := range dateDirs {
		if !dateDir.IsDir() {
			continue
		}
		datePath := filepath.Join(root, dateDir.Name())
		idx.watchDir(datePath)

		flightDirs, err := os.ReadDir(datePath)
		if err != nil {
			log.Printf("archive.index: skipping unreadable date folder %s: %v", dateDir.Name(), err)
			continue
		}
		for _, flightDir := range flightDirs {
			if !flightDir.IsDir() {
				continue
			}
			flightPath := filepath.Join(datePath, flightDir.Name())
			idx.watchDir(flightPath)

			files, err := os.ReadDir(flightPath)
			if err != nil {
				log.Printf("archive.index: skipping unreadable flight folder %s: %v", flightDir.Name(), err)
				continue
			}
			for _, file := range files {
				if file.IsDir() || strings.HasPrefix(file.Name(), tmpPrefix) {
					continue
				}
				info, err := file.Info()
				if err != nil {
					continue
				}
				id := Identity{
					Date:         dateDir.Name(),
					FlightFolder: flightDir.Name(),
					Filename:     file.Name(),
				}
				entry := ImageEntry{Identity: id, SizeBytes: info.Size()}
				if rec, err := idx.store.readRecordByIdentity(id); err == nil {
					entry.Record = &rec
				}
				entries = append(entries, entry)
			}
		}
	}
	return entries, nil
}

func (idx *Index) watchDir(path string) {
	if idx.watcher == nil {
		return
	}
	if err := idx.watcher.Add(path); err != nil {
		log.Printf("archive.index: failed to watch %s: %v", path, err)
	}
}
