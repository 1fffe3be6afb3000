package blacklist

import (
	"context"
	"errors"
	"fmt"

	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"
)

// UserResolver looks up accounts for user: tokens
type UserResolver interface {
	GetUser(ctx context.Context, name string) (*e621.User, error)
}

// ResolveUsers binds every user: token to its uploader id. Unknown users are
// left unresolved; other lookup failures are returned.
func ResolveUsers(ctx context.Context, rules Rules, resolver UserResolver) (Rules, error) {
	names := rules.Users()
	if len(names) == 0 {
		return rules, nil
	}
	ids := make(map[string]int, len(names))
	for _, name := range names {
		user, err := resolver.GetUser(ctx, name)
		if err != nil {
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeNotFound {
				continue
			}
			return rules, fmt.Errorf("resolve blacklisted user %q: %w", name, err)
		}
		ids[name] = user.ID
	}
	return rules.WithUserIDs(ids), nil
}

// Filter splits posts into those kept and those removed by rules. It does
// not modify posts and preserves their order.
func Filter(posts []e621.Post, rules Rules) (kept, removed []e621.Post) {
	kept = make([]e621.Post, 0, len(posts))
	for _, p := range posts {
		if rules.Matches(p) {
			removed = append(removed, p)
		} else {
			kept = append(kept, p)
		}
	}
	return kept, removed
}

// Matches reports whether any group matches post
func (r Rules) Matches(post e621.Post) bool {
	if r.Empty() {
		return false
	}
	tags := make(map[string]struct{}, 32)
	for _, t := range post.Tags.All() {
		tags[t] = struct{}{}
	}
	for _, g := range r.Groups {
		if g.matches(post, tags) {
			return true
		}
	}
	return false
}

// matches requires every positive token to hold and no negated token to hold.
// Groups without a positive token never match.
func (g Group) matches(post e621.Post, tags map[string]struct{}) bool {
	positives := 0
	for _, t := range g.Tokens {
		if t.Negated {
			// negated score tokens are not supported by the site and are ignored
			if t.kind == kindScore {
				continue
			}
			if t.holds(post, tags) {
				return false
			}
			continue
		}
		positives++
		if !t.holds(post, tags) {
			return false
		}
	}
	return positives > 0
}

func (t Token) holds(post e621.Post, tags map[string]struct{}) bool {
	switch t.kind {
	case kindTag:
		_, ok := tags[t.text]
		return ok
	case kindRating:
		return t.text != "" && t.text == post.Rating
	case kindID:
		return post.ID == t.number
	case kindUser:
		return t.userID != 0 && post.UploaderID == t.userID
	case kindScore:
		s := post.Score.Total
		switch t.op {
		case opLess:
			return s < t.number
		case opLessEqual:
			return s <= t.number
		case opGreater:
			return s > t.number
		case opGreaterEqual:
			return s >= t.number
		default:
			return s == t.number
		}
	default:
		return false
	}
}
