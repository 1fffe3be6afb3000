package catalog

import (
	"context"
	"fmt"
	"strings"

	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
	"e621dl/pkg/plan"
	"e621dl/pkg/retry"
	"e621dl/pkg/tagfile"
)

// TagSource looks up tag records and aliases
type TagSource interface {
	LookupTag(ctx context.Context, name string) (*e621.Tag, error)
	LookupAliases(ctx context.Context, name string) ([]e621.Alias, error)
}

// Resolution is the outcome of categorizing one entry. The plan is always
// derived from the same lookup that produced Deciding.
type Resolution struct {
	// Entry carries canonical tag names with aliases substituted
	Entry    tagfile.QueryEntry
	Deciding TagMetadata
	Class    plan.TagClass
	// Aliases maps a written tag to the name it resolved to
	Aliases map[string]string
}

// Query is the API search string for the entry
func (r *Resolution) Query() string { return r.Entry.Query() }

// Plan returns the page plan for this resolution
func (r *Resolution) Plan() plan.PagePlan { return plan.For(r.Class, r.Deciding.PostCount) }

// Categorizer resolves tag entries against the catalog
type Categorizer struct {
	source TagSource
	retry  *retry.Config
	logger logger.Logger
}

// NewCategorizer creates a categorizer. Lookups are retried per retryCfg.
func NewCategorizer(source TagSource, retryCfg *retry.Config, log logger.Logger) *Categorizer {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Categorizer{source: source, retry: retryCfg, logger: log.WithField("component", "categorizer")}
}

// IsMetatag reports whether token is a search operator like rating:s or fav:name
func IsMetatag(token string) bool { return strings.Contains(token, ":") }

// Resolve looks up every included tag of entry and picks the tag that decides
// the entry's class: the first special tag, otherwise the last one resolved.
// Entries made only of metatags are planned as general searches at the cap.
func (c *Categorizer) Resolve(ctx context.Context, entry tagfile.QueryEntry) (*Resolution, error) {
	if entry.Kind != tagfile.KindTag {
		return nil, fmt.Errorf("cannot categorize %s entry %q", entry.Kind, entry.Name)
	}

	res := &Resolution{Aliases: map[string]string{}}
	canonical := make([]string, 0, len(entry.Tags))
	var decided, last *TagMetadata

	for _, tag := range entry.Tags {
		if IsMetatag(tag) {
			canonical = append(canonical, tag)
			continue
		}

		meta, err := c.lookup(ctx, tag)
		if err != nil {
			return nil, err
		}
		if meta.Name != tag {
			res.Aliases[tag] = meta.Name
		}
		canonical = append(canonical, meta.Name)

		m := meta
		last = &m
		if decided == nil && Classify(meta) == plan.ClassSpecial {
			decided = &m
		}
	}

	switch {
	case decided != nil:
		res.Deciding = *decided
	case last != nil:
		res.Deciding = *last
	default:
		res.Deciding = TagMetadata{Name: entry.Name, Category: CategoryGeneral, PostCount: plan.GeneralPostCap}
	}
	res.Class = Classify(res.Deciding)
	res.Entry = entry.WithTags(canonical)

	c.logger.DebugWithFields("entry categorized", map[string]interface{}{
		"entry":      entry.Name,
		"deciding":   res.Deciding.Name,
		"category":   res.Deciding.Category.String(),
		"post_count": res.Deciding.PostCount,
		"class":      res.Class.String(),
	})
	return res, nil
}

// lookup fetches a tag record, following an alias when the name has none
func (c *Categorizer) lookup(ctx context.Context, name string) (TagMetadata, error) {
	tag, err := c.findTag(ctx, name)
	if err != nil {
		return TagMetadata{}, fmt.Errorf("tag lookup %q: %w", name, err)
	}
	if tag != nil {
		return toMetadata(tag)
	}

	aliases, _, err := retry.DoWithResult(ctx, func(ctx context.Context) ([]e621.Alias, error) {
		return c.source.LookupAliases(ctx, name)
	}, c.retry)
	if err != nil {
		return TagMetadata{}, fmt.Errorf("alias lookup %q: %w", name, err)
	}
	alias, ok := pickAlias(aliases)
	if !ok {
		return TagMetadata{}, &errs.UnknownTagError{Tag: name}
	}

	tag, err = c.findTag(ctx, alias.ConsequentName)
	if err != nil {
		return TagMetadata{}, fmt.Errorf("tag lookup %q: %w", alias.ConsequentName, err)
	}
	if tag == nil {
		return TagMetadata{}, &errs.UnknownTagError{Tag: name}
	}
	c.logger.InfoWithFields("tag resolved through alias", map[string]interface{}{
		"tag":   name,
		"alias": tag.Name,
	})
	return toMetadata(tag)
}

func (c *Categorizer) findTag(ctx context.Context, name string) (*e621.Tag, error) {
	tag, _, err := retry.DoWithResult(ctx, func(ctx context.Context) (*e621.Tag, error) {
		return c.source.LookupTag(ctx, name)
	}, c.retry)
	return tag, err
}

// pickAlias prefers an active alias and falls back to the first listed
func pickAlias(aliases []e621.Alias) (e621.Alias, bool) {
	for _, a := range aliases {
		if a.Status == "active" && a.ConsequentName != "" {
			return a, true
		}
	}
	for _, a := range aliases {
		if a.ConsequentName != "" {
			return a, true
		}
	}
	return e621.Alias{}, false
}

func toMetadata(tag *e621.Tag) (TagMetadata, error) {
	category, err := CategoryFromCode(tag.Category)
	if err != nil {
		return TagMetadata{}, &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("tag %q: %v", tag.Name, err),
		}
	}
	count := tag.PostCount
	if count < 0 {
		count = 0
	}
	return TagMetadata{Name: strings.ToLower(tag.Name), Category: category, PostCount: count}, nil
}
