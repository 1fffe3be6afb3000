package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/retry"
	"e621dl/pkg/storage"
)

// MockClient fails the first failuresPerURL attempts for every URL
type MockClient struct {
	failuresPerURL int
	failure        error
	delay          time.Duration
	calls          int32

	mu       sync.Mutex
	attempts map[string]int
}

func (m *MockClient) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	if m.attempts == nil {
		m.attempts = map[string]int{}
	}
	m.attempts[url]++
	n := m.attempts[url]
	m.mu.Unlock()

	if m.failuresPerURL < 0 || n <= m.failuresPerURL {
		// write a little first so a partial file has to be discarded
		w.Write([]byte("partial"))
		return 0, m.failure
	}
	written, err := io.WriteString(w, "data for "+url)
	return int64(written), err
}

func (m *MockClient) GetCallCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

func testRetry(attempts int) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.Backoff = retry.ConstantBackoff{Delay: time.Millisecond}
	return cfg
}

func newStore(t *testing.T) *storage.Manager {
	t.Helper()
	store, err := storage.NewManager(t.TempDir(), "id")
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	return store
}

func makeJob(store *storage.Manager, id int) Job {
	url := fmt.Sprintf("https://static1.e621.net/data/%d.png", id)
	post := e621.Post{ID: id, File: e621.File{Ext: "png", URL: &url}}
	dir := store.EntryDir(storage.DirGeneral, "wolf")
	return Job{Entry: "wolf", Post: post, Destination: store.PathFor(dir, post)}
}

func runJobs(ctx context.Context, wp *WorkerPool, jobs []Job) []Result {
	wp.Start(ctx)

	var results []Result
	done := make(chan struct{})
	go func() {
		for r := range wp.Results() {
			results = append(results, r)
		}
		close(done)
	}()

	for _, j := range jobs {
		if err := wp.Submit(ctx, j); err != nil {
			break
		}
	}
	wp.Close()
	<-done
	return results
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	client := &MockClient{delay: 5 * time.Millisecond}
	store := newStore(t)
	wp := NewWorkerPool(3, client, store, testRetry(3), logger.NewNopLogger())

	var jobs []Job
	for i := 1; i <= 10; i++ {
		jobs = append(jobs, makeJob(store, i))
	}
	results := runJobs(context.Background(), wp, jobs)

	if len(results) != 10 {
		t.Fatalf("Expected 10 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != StatusCompleted || r.Err != nil {
			t.Errorf("Job %d: expected completed, got %s (%v)", r.Job.Post.ID, r.Status, r.Err)
		}
		if r.Attempts != 1 {
			t.Errorf("Job %d: expected 1 attempt, got %d", r.Job.Post.ID, r.Attempts)
		}
		data, err := os.ReadFile(r.Job.Destination)
		if err != nil {
			t.Fatalf("Expected file at %s: %v", r.Job.Destination, err)
		}
		if r.Bytes != int64(len(data)) {
			t.Errorf("Job %d: reported %d bytes, file has %d", r.Job.Post.ID, r.Bytes, len(data))
		}
	}
	if store.FilesWritten() != 10 {
		t.Errorf("Expected 10 files written, got %d", store.FilesWritten())
	}
}

func TestTransientFailuresThenSuccess(t *testing.T) {
	client := &MockClient{failuresPerURL: 2, failure: &errs.Error{Type: errs.ErrorTypeNetwork, Message: "connection reset"}}
	store := newStore(t)
	wp := NewWorkerPool(1, client, store, testRetry(3), logger.NewNopLogger())

	results := runJobs(context.Background(), wp, []Job{makeJob(store, 7)})
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %s: %v", r.Status, r.Err)
	}
	if r.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", r.Attempts)
	}

	data, _ := os.ReadFile(r.Job.Destination)
	if string(data) != "data for "+r.Job.Post.FileURL() {
		t.Errorf("Unexpected file content %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(r.Job.Destination))
	if len(entries) != 1 {
		t.Errorf("Expected failed attempts to leave no temporary files, found %d entries", len(entries))
	}
}

func TestFailureOnEveryAttempt(t *testing.T) {
	client := &MockClient{failuresPerURL: -1, failure: &errs.Error{Type: errs.ErrorTypeServerError, Code: 503}}
	store := newStore(t)
	wp := NewWorkerPool(2, client, store, testRetry(3), logger.NewNopLogger())

	results := runJobs(context.Background(), wp, []Job{makeJob(store, 1), makeJob(store, 2)})
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != StatusFailed {
			t.Errorf("Expected failed, got %s", r.Status)
		}
		var de *errs.DownloadError
		if !errors.As(r.Err, &de) {
			t.Fatalf("Expected DownloadError, got %T", r.Err)
		}
		if de.Attempts != 3 || de.PostID != r.Job.Post.ID {
			t.Errorf("Unexpected download error %+v", de)
		}
		if _, err := os.Stat(r.Job.Destination); !os.IsNotExist(err) {
			t.Error("Failed job must not leave a file at its destination")
		}
	}
	if client.GetCallCount() != 6 {
		t.Errorf("Expected 6 download calls, got %d", client.GetCallCount())
	}
}

func TestNonTransientFailureIsNotRetried(t *testing.T) {
	client := &MockClient{failuresPerURL: -1, failure: &errs.Error{Type: errs.ErrorTypeNotFound, Code: 404}}
	store := newStore(t)
	wp := NewWorkerPool(1, client, store, testRetry(3), logger.NewNopLogger())

	results := runJobs(context.Background(), wp, []Job{makeJob(store, 1)})
	if results[0].Status != StatusFailed || results[0].Attempts != 1 {
		t.Errorf("Expected a single failed attempt, got %s after %d", results[0].Status, results[0].Attempts)
	}
}

func TestExistingFileIsSkipped(t *testing.T) {
	client := &MockClient{}
	store := newStore(t)
	job := makeJob(store, 9)

	if err := os.MkdirAll(filepath.Dir(job.Destination), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(job.Destination, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	wp := NewWorkerPool(1, client, store, testRetry(3), logger.NewNopLogger())
	results := runJobs(context.Background(), wp, []Job{job})

	if !results[0].Skipped || results[0].Status != StatusCompleted {
		t.Errorf("Expected skipped completed job, got %+v", results[0])
	}
	if client.GetCallCount() != 0 {
		t.Errorf("Expected no download for an existing file, got %d", client.GetCallCount())
	}
	data, _ := os.ReadFile(job.Destination)
	if string(data) != "old" {
		t.Error("Existing file must not be overwritten")
	}
}

func TestCancelledPoolStartsNoNewJobs(t *testing.T) {
	client := &MockClient{}
	store := newStore(t)
	wp := NewWorkerPool(2, client, store, testRetry(3), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)
	cancel()

	if err := wp.Submit(ctx, makeJob(store, 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected Submit to fail after cancellation, got %v", err)
	}

	var results []Result
	done := make(chan struct{})
	go func() {
		for r := range wp.Results() {
			results = append(results, r)
		}
		close(done)
	}()
	wp.Close()
	<-done

	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
	if client.GetCallCount() != 0 {
		t.Errorf("Expected no downloads, got %d", client.GetCallCount())
	}
}

func TestInFlightJobFinishesAfterCancel(t *testing.T) {
	store := newStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	client := &blockingClient{started: started, release: release}
	wp := NewWorkerPool(1, client, store, testRetry(3), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	wp.Start(ctx)

	var results []Result
	done := make(chan struct{})
	go func() {
		for r := range wp.Results() {
			results = append(results, r)
		}
		close(done)
	}()

	if err := wp.Submit(ctx, makeJob(store, 1)); err != nil {
		t.Fatal(err)
	}
	if err := wp.Submit(ctx, makeJob(store, 2)); err != nil {
		t.Fatal(err)
	}
	<-started
	cancel()
	close(release)
	wp.Close()
	<-done

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusCompleted {
		t.Errorf("In-flight job should complete, got %s: %v", results[0].Status, results[0].Err)
	}
	if results[1].Status != StatusPending || !errors.Is(results[1].Err, context.Canceled) {
		t.Errorf("Queued job should not start, got %s: %v", results[1].Status, results[1].Err)
	}
}

type blockingClient struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := io.WriteString(w, "payload")
	return int64(n), err
}

func TestStatusString(t *testing.T) {
	want := map[Status]string{
		StatusPending:   "pending",
		StatusFetching:  "fetching",
		StatusWriting:   "writing",
		StatusCompleted: "completed",
		StatusFailed:    "failed",
		Status(42):      "status(42)",
	}
	for s, w := range want {
		if s.String() != w {
			t.Errorf("Status(%d).String() = %q, want %q", int(s), s.String(), w)
		}
	}
}
