// Package e621 provides a client for the e621 and e926 JSON API.
//
// The client paces API calls through a shared ratelimit.Limiter, signs
// requests with HTTP Basic auth when a Session carries credentials, and maps
// responses onto the error taxonomy in pkg/errors. Anti-bot interstitials are
// recognised by parsing the HTML body and reported as *errors.ChallengeError.
//
// Example usage:
//
//	client := e621.NewClient(e621.Options{
//		Session: e621.NewSession("name", "key"),
//		Limiter: ratelimit.NewPacer(500 * time.Millisecond),
//	})
//
//	posts, err := client.SearchPosts(ctx, "wolf -comic", 1, e621.MaxPageSize)
//	if errors.IsFatal(err) {
//		// credentials rejected or challenge page
//	}
package e621
