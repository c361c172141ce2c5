package archive

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aerialworks/dronearchive/utils"
)

// Ingestor drives the upload path: validate, allocate, build, commit. It is
// the only entry point through which new images reach the archive.
type Ingestor struct {
	alloc  *Allocator
	writer *Writer
	clock  func() time.Time
}

// UploadResult is what a successful single upload yields: the final identity
// plus the record exactly as persisted.
type UploadResult struct {
	Identity Identity
	Record   Record
}

// BatchItem is one payload inside a batch upload. Index ties the outcome back
// to the caller's input ordering.
type BatchItem struct {
	Index            int
	OriginalFilename string
	ContentType      string
	Payload          []byte
}

// BatchOutcome reports one item's fate. A batch never aborts because an item
// failed; callers retry only the items whose Err is set.
type BatchOutcome struct {
	Index  int
	Result UploadResult
	Err    error
}

func NewIngestor(alloc *Allocator, writer *Writer) *Ingestor {
	return &Ingestor{alloc: alloc, writer: writer, clock: time.Now}
}

// WithClock overrides the service clock, for tests.
func (ing *Ingestor) WithClock(clock func() time.Time) *Ingestor {
	ing.clock = clock
	return ing
}

// Ingest performs one upload. All validation happens before any storage I/O;
// a returned ValidationError therefore guarantees nothing was written.
func (ing *Ingestor) Ingest(ctx context.Context, payload []byte, in UploadInput) (UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return UploadResult{}, err
	}
	if len(payload) == 0 {
		return UploadResult{}, newValidationError("file", "empty payload")
	}
	if err := ValidateInput(in); err != nil {
		return UploadResult{}, err
	}

	now := ing.clock()
	id := ing.alloc.Allocate(now, in.FlightID, in.OriginalFilename, in.ContentType)
	rec := BuildRecord(id, in, int64(len(payload)), now, utils.CaptureExif(payload))

	if err := ing.writer.Commit(id, payload, rec); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{Identity: id, Record: rec}, nil
}

// IngestBatch runs the items through the single-upload path with bounded
// concurrency, sharing one set of flight-level telemetry. Outcomes come back
// indexed to the input ordering regardless of completion order. Per-folder
// leaf allocation stays collision-free because the Allocator, not the batch,
// owns that exclusion.
func (ing *Ingestor) IngestBatch(ctx context.Context, items []BatchItem, shared UploadInput, concurrency int) []BatchOutcome {
	if concurrency <= 0 {
		concurrency = 1
	}

	outcomes := make([]BatchOutcome, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			in := shared
			in.OriginalFilename = item.OriginalFilename
			in.ContentType = item.ContentType

			result, err := ing.Ingest(ctx, item.Payload, in)
			outcomes[i] = BatchOutcome{Index: item.Index, Result: result, Err: err}
			return nil
		})
	}
	// workers never return errors; failures live in the outcomes
	_ = g.Wait()
	return outcomes
}
