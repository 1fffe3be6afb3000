package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/retry"
	"e621dl/pkg/storage"
)

// Status is the lifecycle state of a download job
type Status int

const (
	StatusPending Status = iota
	StatusFetching
	StatusWriting
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusFetching:
		return "fetching"
	case StatusWriting:
		return "writing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Job is one post to materialize at Destination
type Job struct {
	Entry       string
	Post        e621.Post
	Destination string
}

// Result is the terminal state of a job. Jobs that never started because the
// run was cancelled come back Pending with Err set.
type Result struct {
	Job      Job
	Status   Status
	Skipped  bool // destination already existed
	Attempts int
	Bytes    int64
	Err      error
	Duration time.Duration
}

// Fetcher streams a remote file into w
type Fetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// Storage checks for and atomically creates destination files
type Storage interface {
	Exists(path string) bool
	Create(path string) (*storage.PendingFile, error)
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	closeOnce   sync.Once
	client      Fetcher
	store       Storage
	retry       *retry.Config
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(numWorkers int, client Fetcher, store Storage, retryCfg *retry.Config, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		client:      client,
		store:       store,
		retry:       retryCfg,
		logger:      log.WithField("component", "downloader"),
	}
}

// Start launches the workers. Once ctx is done no new job is started; a job
// already fetching or writing finishes its current attempt.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Close stops accepting jobs, waits for the workers and closes Results.
// Results must be drained concurrently.
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
		wp.wg.Wait()
		close(wp.resultQueue)
		wp.logger.Debug("Worker pool stopped")
	})
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result Result
		if err := ctx.Err(); err != nil {
			result = Result{Job: job, Status: StatusPending, Err: err}
		} else {
			result = wp.processJob(ctx, job, id)
		}
		wp.resultQueue <- result
	}
}

// processJob moves a job from Pending to Completed or Failed
func (wp *WorkerPool) processJob(ctx context.Context, job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job, Status: StatusPending}

	if wp.store.Exists(job.Destination) {
		result.Status = StatusCompleted
		result.Skipped = true
		result.Duration = time.Since(start)
		logger.LogDownload(wp.logger, job.Entry, job.Post.ID, "skipped_existing", nil)
		return result
	}

	detached := context.WithoutCancel(ctx)
	attempts, err := retry.Do(ctx, func(context.Context) error {
		return wp.attempt(detached, job, &result)
	}, wp.retry)

	result.Attempts = attempts
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusFailed
		result.Err = &errs.DownloadError{PostID: job.Post.ID, Attempts: attempts, Err: err}
		wp.logger.WithError(err).WithFields(map[string]interface{}{
			"worker_id": workerID,
			"entry":     job.Entry,
			"post_id":   job.Post.ID,
			"attempts":  attempts,
		}).Error("Download failed")
		return result
	}

	result.Status = StatusCompleted
	wp.logger.DebugWithFields("Worker completed job successfully", map[string]interface{}{
		"worker_id": workerID,
		"post_id":   job.Post.ID,
		"size":      result.Bytes,
		"attempts":  attempts,
		"duration":  result.Duration,
	})
	return result
}

// attempt runs one fetch and write cycle
func (wp *WorkerPool) attempt(ctx context.Context, job Job, result *Result) error {
	result.Status = StatusFetching
	pf, err := wp.store.Create(job.Destination)
	if err != nil {
		return err
	}

	n, err := wp.client.Download(ctx, job.Post.FileURL(), pf)
	if err != nil {
		pf.Abort()
		return err
	}

	result.Status = StatusWriting
	if err := pf.Commit(); err != nil {
		return err
	}
	result.Bytes = n
	return nil
}
