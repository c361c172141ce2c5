package workers

import (
	"log"
	"sync"
	"time"

	"github.com/aerialworks/dronearchive/archive"
	"github.com/aerialworks/dronearchive/models"
	"github.com/aerialworks/dronearchive/realtime"
	"github.com/aerialworks/dronearchive/repository"
)

// ActivityJob carries one completed upload to the recorder pool.
type ActivityJob struct {
	Result archive.UploadResult
}

// ActivityRecorder journals successful uploads and announces them to
// websocket clients, off the request path. Jobs are fire-and-forget: a full
// queue drops the job with a log line rather than stalling an upload, since
// the archive itself is already durable by the time a job is enqueued.
type ActivityRecorder struct {
	JobQueue chan ActivityJob
	Repo     *repository.UploadLogRepository
	Hub      *realtime.Hub
	Wg       sync.WaitGroup
	StopChan chan struct{}
}

func NewActivityRecorder(repo *repository.UploadLogRepository, hub *realtime.Hub, queueSize, numWorkers int) *ActivityRecorder {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}

	ar := &ActivityRecorder{
		JobQueue: make(chan ActivityJob, queueSize),
		Repo:     repo,
		Hub:      hub,
		StopChan: make(chan struct{}),
	}

	ar.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go ar.worker(i)
	}
	log.Printf("started %d activity worker(s) with queue size %d", numWorkers, queueSize)

	return ar
}

// Record enqueues a completed upload. Never blocks.
func (ar *ActivityRecorder) Record(result archive.UploadResult) {
	select {
	case ar.JobQueue <- ActivityJob{Result: result}:
	default:
		log.Printf("activity queue full, dropping journal entry for %s", result.Identity.Path())
	}
}

func (ar *ActivityRecorder) worker(id int) {
	defer ar.Wg.Done()
	for {
		select {
		case job, ok := <-ar.JobQueue:
			if !ok {
				log.Printf("activity worker %d stopping: job queue closed", id)
				return
			}
			ar.processJob(job)
		case <-ar.StopChan:
			log.Printf("activity worker %d stopping: stop signal received", id)
			return
		}
	}
}

func (ar *ActivityRecorder) processJob(job ActivityJob) {
	id := job.Result.Identity
	rec := job.Result.Record

	if ar.Repo != nil {
		entry := &models.UploadLog{
			Date:             id.Date,
			FlightFolder:     id.FlightFolder,
			StoredFilename:   id.Filename,
			OriginalFilename: rec.OriginalFilename,
			SizeBytes:        rec.FileSize,
			ContentType:      rec.ContentType,
		}
		if err := ar.Repo.Create(entry); err != nil {
			log.Printf("failed to journal upload %s: %v", id.Path(), err)
		}
	}

	if ar.Hub != nil {
		ar.Hub.Broadcast(realtime.Event{
			Type:         "upload",
			Date:         id.Date,
			FlightFolder: id.FlightFolder,
			Filename:     id.Filename,
			Path:         id.Path(),
			SizeBytes:    rec.FileSize,
			Timestamp:    time.Now().Unix(),
		})
	}
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (ar *ActivityRecorder) Stop() {
	close(ar.StopChan)
	ar.Wg.Wait()
}
