// Package pipeline runs parsed tag file entries through categorization,
// retrieval and download, and reports what happened to each of them.
//
// Up to NetworkConcurrency entries are categorized and retrieved at once;
// the pages of one entry are fetched in order. Every screened page is handed
// to a shared download pool straight away, so files start arriving while
// later pages are still being requested.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"e621dl/internal/downloader"
	"e621dl/pkg/catalog"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/grabber"
	"e621dl/pkg/logger"
	"e621dl/pkg/plan"
	"e621dl/pkg/retry"
	"e621dl/pkg/storage"
	"e621dl/pkg/tagfile"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Observer is told about progress. Methods may be called from several
// goroutines at once.
type Observer interface {
	EntryRetrieved(entry EntryReport)
	DownloadFinished(result downloader.Result)
}

// Options tunes a pipeline
type Options struct {
	NetworkConcurrency int
	DownloadWorkers    int
	// Favorites, when set, appends the favorites of that account after the
	// parsed entries
	Favorites     string
	DownloadRetry *retry.Config
	Observer      Observer
	Logger        logger.Logger
}

// Pipeline wires the stages of a run together
type Pipeline struct {
	categorizer *catalog.Categorizer
	retriever   *grabber.Retriever
	store       *storage.Manager
	fetcher     downloader.Fetcher
	opts        Options
	logger      logger.Logger
}

type work struct {
	index     int
	label     string
	entry     tagfile.QueryEntry
	favorites string
}

// New creates a pipeline
func New(categorizer *catalog.Categorizer, retriever *grabber.Retriever, store *storage.Manager, fetcher downloader.Fetcher, opts Options) *Pipeline {
	if opts.NetworkConcurrency < 1 {
		opts.NetworkConcurrency = 1
	}
	if opts.DownloadWorkers < 1 {
		opts.DownloadWorkers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &Pipeline{
		categorizer: categorizer,
		retriever:   retriever,
		store:       store,
		fetcher:     fetcher,
		opts:        opts,
		logger:      opts.Logger.WithField("component", "pipeline"),
	}
}

// Run processes entries and returns the report. Per-entry and per-post
// failures are recorded in the report. An authentication or challenge error
// stops the run and is returned once in-flight work has drained; so is the
// context error when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, entries []tagfile.QueryEntry) (*Report, error) {
	items := p.workItems(entries)
	rep := newReport(uuid.NewString(), items)
	log := p.logger.WithField("run_id", rep.RunID)

	logger.LogComponentStart(log, "pipeline", map[string]interface{}{
		"entries":             len(items),
		"network_concurrency": p.opts.NetworkConcurrency,
		"download_workers":    p.opts.DownloadWorkers,
		"output":              p.store.BaseDir(),
	})

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	pool := downloader.NewWorkerPool(p.opts.DownloadWorkers, p.fetcher, p.store, p.opts.DownloadRetry, log)
	pool.Start(runCtx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.collect(pool.Results(), rep, cancel)
	}()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.opts.NetworkConcurrency)
	for _, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := p.process(gctx, it, rep, pool, log); err != nil {
				cancel(err)
				return err
			}
			return nil
		})
	}
	_ = g.Wait()
	pool.Close()
	wg.Wait()
	rep.finish()

	totals := rep.Totals()
	fields := map[string]interface{}{
		"entries":   totals.Entries,
		"ok":        totals.OK,
		"completed": totals.Completed,
		"failed":    totals.Failed,
		"bytes":     totals.Bytes,
		"duration":  rep.Duration(),
	}

	if cause := context.Cause(runCtx); cause != nil {
		if errs.IsFatal(cause) {
			log.WithError(cause).ErrorWithFields("Run aborted", fields)
			return rep, cause
		}
		rep.Cancelled = true
		log.WarnWithFields("Run cancelled", fields)
		return rep, ctx.Err()
	}
	log.InfoWithFields("Run finished", fields)
	return rep, nil
}

func (p *Pipeline) workItems(entries []tagfile.QueryEntry) []work {
	items := make([]work, 0, len(entries)+1)
	for i, e := range entries {
		items = append(items, work{index: i, label: e.String(), entry: e})
	}
	if p.opts.Favorites != "" {
		name := "fav:" + p.opts.Favorites
		items = append(items, work{
			index:     len(items),
			label:     name,
			entry:     tagfile.QueryEntry{Name: name, Kind: tagfile.KindTag, Tags: []string{name}},
			favorites: p.opts.Favorites,
		})
	}
	return items
}

// process runs one entry through categorization and retrieval, queueing
// downloads page by page. Only fatal errors are returned.
func (p *Pipeline) process(ctx context.Context, it work, rep *Report, pool *downloader.WorkerPool, log logger.Logger) error {
	start := time.Now()
	log = log.WithField("entry", it.label)

	var res grabber.Result
	target, err := p.target(ctx, it, rep)
	if err == nil {
		dir := p.store.EntryDir(storage.CategoryDir(it.entry.Kind), target.Dir)
		rep.update(it.index, func(e *EntryReport) { e.Dir = dir })

		onPage := func(ctx context.Context, batch grabber.Batch) error {
			for _, post := range batch.Posts {
				job := downloader.Job{Entry: it.label, Post: post, Destination: p.store.PathFor(dir, post)}
				if err := pool.Submit(ctx, job); err != nil {
					return err
				}
				rep.update(it.index, func(e *EntryReport) { e.Queued++ })
			}
			return nil
		}

		if it.entry.Kind == tagfile.KindSinglePost {
			res, err = p.retriever.RetrievePost(ctx, it.label, it.entry.ID, onPage)
		} else {
			res, err = p.retriever.Retrieve(ctx, target, onPage)
		}
	}
	rep.retrieved(it.index, res)

	status, fatal := classify(ctx, err)
	rep.update(it.index, func(e *EntryReport) {
		e.Status = status
		e.Err = err
	})

	switch status {
	case EntryUnknownTag:
		log.WithError(err).Warn("Skipping entry")
	case EntryRetrievalFailed:
		log.WithError(err).Error("Skipping entry after failed retrieval")
	case EntryAborted:
		log.WithError(err).Error("Fatal error, stopping run")
	default:
		log.DebugWithFields("Entry retrieval finished", map[string]interface{}{
			"status":   status.String(),
			"duration": time.Since(start),
		})
	}

	if p.opts.Observer != nil {
		p.opts.Observer.EntryRetrieved(rep.snapshot(it.index))
	}
	return fatal
}

func (p *Pipeline) target(ctx context.Context, it work, rep *Report) (grabber.Target, error) {
	if it.favorites != "" {
		t, err := p.retriever.FavoritesTarget(ctx, it.favorites)
		if err == nil {
			rep.update(it.index, func(e *EntryReport) { e.Class = plan.ClassSpecial.String() })
		}
		return t, err
	}

	switch it.entry.Kind {
	case tagfile.KindTag:
		res, err := p.categorizer.Resolve(ctx, it.entry)
		if err != nil {
			return grabber.Target{}, err
		}
		rep.update(it.index, func(e *EntryReport) { e.Class = res.Class.String() })
		return grabber.Target{
			Entry: it.label,
			Dir:   it.entry.Name,
			Query: res.Query(),
			Plan:  res.Plan(),
		}, nil
	case tagfile.KindPool:
		return p.retriever.PoolTarget(ctx, it.label, it.entry.ID)
	case tagfile.KindSet:
		return p.retriever.SetTarget(ctx, it.label, it.entry.ID)
	case tagfile.KindSinglePost:
		return grabber.Target{Entry: it.label, Dir: it.entry.Name, Plan: plan.Single()}, nil
	default:
		return grabber.Target{}, fmt.Errorf("unsupported entry kind %s", it.entry.Kind)
	}
}

// classify maps a retrieval outcome to an entry status. The error is
// returned as fatal only when it must stop the run.
func classify(ctx context.Context, err error) (EntryStatus, error) {
	if err == nil {
		return EntryOK, nil
	}
	if errs.IsFatal(err) {
		return EntryAborted, err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return EntryCancelled, nil
	}
	var unknown *errs.UnknownTagError
	if errors.As(err, &unknown) {
		return EntryUnknownTag, nil
	}
	return EntryRetrievalFailed, nil
}

// collect drains download results into the report. A fatal download error
// cancels the run.
func (p *Pipeline) collect(results <-chan downloader.Result, rep *Report, cancel context.CancelCauseFunc) {
	for r := range results {
		rep.record(r)
		if p.opts.Observer != nil {
			p.opts.Observer.DownloadFinished(r)
		}
		if r.Status == downloader.StatusFailed && errs.IsFatal(r.Err) {
			cancel(r.Err)
		}
	}
}
