package pipeline

import (
	"context"
	"errors"
	"fmt"

	"e621dl/pkg/blacklist"
	errs "e621dl/pkg/errors"
	"e621dl/pkg/logger"
)

// LoadBlacklist merges the blacklist stored on account (when set) with the
// local rule text and binds user: tokens to uploader ids.
func LoadBlacklist(ctx context.Context, resolver blacklist.UserResolver, account, local string, log logger.Logger) (blacklist.Rules, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	sets := []blacklist.Rules{blacklist.Parse(local)}

	if account != "" {
		user, err := resolver.GetUser(ctx, account)
		switch {
		case err == nil:
			sets = append([]blacklist.Rules{blacklist.Parse(user.BlacklistedTags)}, sets...)
		case isNotFound(err):
			log.WarnWithFields("Account not found, using local blacklist only", map[string]interface{}{
				"account": account,
			})
		default:
			return blacklist.Rules{}, fmt.Errorf("load account blacklist: %w", err)
		}
	}

	rules, err := blacklist.ResolveUsers(ctx, blacklist.Merge(sets...), resolver)
	if err != nil {
		return blacklist.Rules{}, err
	}
	log.InfoWithFields("Blacklist loaded", map[string]interface{}{
		"groups":  len(rules.Groups),
		"account": account != "",
	})
	return rules, nil
}

func isNotFound(err error) bool {
	var apiErr *errs.Error
	return errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeNotFound
}
