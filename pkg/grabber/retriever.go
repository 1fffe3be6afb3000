// Package grabber executes page plans against the catalog API and hands the
// screened posts to a callback page by page.
package grabber

import (
	"context"
	"sort"
	"strconv"

	"e621dl/pkg/blacklist"
	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/plan"
	"e621dl/pkg/retry"
)

// Target is one retrieval: a tag query and the pages to fetch for it
type Target struct {
	// Entry labels the target in logs, errors and reports
	Entry string
	// Dir is the name the target's files are collected under
	Dir   string
	Query string
	Plan  plan.PagePlan
	// Order, when set, holds post ids in collection order. Posts are then
	// delivered once, after the last page, sorted by it.
	Order []int
}

// Batch is a screened page of posts ready for download
type Batch struct {
	Entry string
	Page  int
	Posts []e621.Post
}

// PageHandler receives each non-empty batch as soon as it is screened
type PageHandler func(ctx context.Context, batch Batch) error

// Result counts what happened to one target
type Result struct {
	Entry       string
	Planned     int
	Pages       int
	Retrieved   int
	Invalid     int
	Blacklisted int
	Kept        int
}

// Retriever fetches pages for targets. Blacklist rules are fixed for its lifetime.
type Retriever struct {
	source PostSource
	rules  blacklist.Rules
	retry  *retry.Config
	logger logger.Logger
}

// NewRetriever creates a retriever
func NewRetriever(source PostSource, rules blacklist.Rules, retryCfg *retry.Config, log logger.Logger) *Retriever {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Retriever{source: source, rules: rules, retry: retryCfg, logger: log.WithField("component", "retriever")}
}

// Retrieve requests the target's pages in order. The request limit is always
// the full page size so page boundaries line up; the final page is truncated
// to the planned size. A page shorter than the limit ends the results.
func (r *Retriever) Retrieve(ctx context.Context, t Target, onPage PageHandler) (Result, error) {
	res := Result{Entry: t.Entry, Planned: t.Plan.CappedCount}
	var collected []e621.Post

	for _, page := range t.Plan.Pages {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		number := page.Number
		posts, err := call(ctx, r, t.Entry, number, func(ctx context.Context) ([]e621.Post, error) {
			return r.source.SearchPosts(ctx, t.Query, number, plan.PageLimit)
		})
		if err != nil {
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"entry": t.Entry,
				"page":  number,
			}).Error("Page retrieval failed")
			return res, err
		}

		res.Pages++
		last := len(posts) < plan.PageLimit
		if len(posts) > page.Size {
			posts = posts[:page.Size]
		}
		kept := r.screen(&res, posts)

		r.logger.DebugWithFields("Page retrieved", map[string]interface{}{
			"entry":    t.Entry,
			"page":     number,
			"returned": len(posts),
			"kept":     len(kept),
		})

		if t.Order != nil {
			collected = append(collected, kept...)
		} else if err := deliver(ctx, onPage, Batch{Entry: t.Entry, Page: number, Posts: kept}); err != nil {
			return res, err
		}
		if last {
			break
		}
	}

	if t.Order != nil {
		sortByOrder(collected, t.Order)
		if err := deliver(ctx, onPage, Batch{Entry: t.Entry, Page: 1, Posts: collected}); err != nil {
			return res, err
		}
	}

	r.logger.InfoWithFields("Entry retrieved", map[string]interface{}{
		"entry":       t.Entry,
		"planned":     res.Planned,
		"retrieved":   res.Retrieved,
		"invalid":     res.Invalid,
		"blacklisted": res.Blacklisted,
	})
	return res, nil
}

// RetrievePost fetches a single post and delivers it if it survives screening
func (r *Retriever) RetrievePost(ctx context.Context, entry string, id int, onPage PageHandler) (Result, error) {
	res := Result{Entry: entry, Planned: plan.Single().CappedCount}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	post, err := call(ctx, r, entry, 1, func(ctx context.Context) (*e621.Post, error) {
		return r.source.GetPost(ctx, id)
	})
	if err != nil {
		return res, err
	}
	res.Pages = 1

	kept := r.screen(&res, []e621.Post{*post})
	return res, deliver(ctx, onPage, Batch{Entry: entry, Page: 1, Posts: kept})
}

// PoolTarget builds the target for a pool. Posts are delivered in pool order.
func (r *Retriever) PoolTarget(ctx context.Context, entry string, id int) (Target, error) {
	pool, err := call(ctx, r, entry, 0, func(ctx context.Context) (*e621.Pool, error) {
		return r.source.GetPool(ctx, id)
	})
	if err != nil {
		return Target{}, err
	}

	size := len(pool.PostIDs)
	if size == 0 {
		size = pool.PostCount
	}
	order := pool.PostIDs
	if order == nil {
		order = []int{}
	}
	return Target{
		Entry: entry,
		Dir:   nameOr(pool.Name, entry),
		Query: "pool:" + strconv.Itoa(id),
		Plan:  plan.ForCollection(size),
		Order: order,
	}, nil
}

// SetTarget builds the target for a post set, searched by its short name
func (r *Retriever) SetTarget(ctx context.Context, entry string, id int) (Target, error) {
	set, err := call(ctx, r, entry, 0, func(ctx context.Context) (*e621.PostSet, error) {
		return r.source.GetSet(ctx, id)
	})
	if err != nil {
		return Target{}, err
	}

	size := len(set.PostIDs)
	if size == 0 {
		size = set.PostCount
	}
	query := "set:" + set.ShortName
	if set.ShortName == "" {
		query = "set:" + strconv.Itoa(id)
	}
	return Target{
		Entry: entry,
		Dir:   nameOr(set.Name, entry),
		Query: query,
		Plan:  plan.ForCollection(size),
	}, nil
}

// FavoritesTarget builds the target for a user's favorites, which are always
// retrieved in full
func (r *Retriever) FavoritesTarget(ctx context.Context, username string) (Target, error) {
	entry := "fav:" + username
	user, err := call(ctx, r, entry, 0, func(ctx context.Context) (*e621.User, error) {
		return r.source.GetUser(ctx, username)
	})
	if err != nil {
		return Target{}, err
	}
	return Target{
		Entry: entry,
		Dir:   entry,
		Query: entry,
		Plan:  plan.ForCollection(user.FavoriteCount),
	}, nil
}

// screen drops posts without a downloadable file, then blacklisted ones
func (r *Retriever) screen(res *Result, posts []e621.Post) []e621.Post {
	res.Retrieved += len(posts)

	valid := make([]e621.Post, 0, len(posts))
	for _, p := range posts {
		if !p.Downloadable() {
			res.Invalid++
			continue
		}
		valid = append(valid, p)
	}

	kept, removed := blacklist.Filter(valid, r.rules)
	res.Blacklisted += len(removed)
	res.Kept += len(kept)
	return kept
}

// call retries fn on transient failures. Each attempt runs on a context that
// outlives cancellation so a request in flight completes; the pause between
// attempts still honours ctx. Non-fatal failures become a RetrievalError.
func call[T any](ctx context.Context, r *Retriever, entry string, page int, fn func(context.Context) (T, error)) (T, error) {
	detached := context.WithoutCancel(ctx)
	result, _, err := retry.DoWithResult(ctx, func(context.Context) (T, error) {
		return fn(detached)
	}, r.retry)
	if err == nil {
		return result, nil
	}

	var zero T
	if errs.IsFatal(err) || ctx.Err() != nil {
		return zero, err
	}
	return zero, &errs.RetrievalError{Entry: entry, Page: page, Err: err}
}

func deliver(ctx context.Context, onPage PageHandler, b Batch) error {
	if onPage == nil || len(b.Posts) == 0 {
		return nil
	}
	return onPage(ctx, b)
}

func sortByOrder(posts []e621.Post, order []int) {
	index := make(map[int]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	rank := func(id int) int {
		if i, ok := index[id]; ok {
			return i
		}
		return len(order)
	}
	sort.SliceStable(posts, func(i, j int) bool {
		return rank(posts[i].ID) < rank(posts[j].ID)
	})
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
