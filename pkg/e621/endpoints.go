package e621

import (
	"net/url"
	"strconv"
)

const (
	// BaseURL is the main catalog
	BaseURL = "https://e621.net"
	// SafeBaseURL serves only safe-rated posts
	SafeBaseURL = "https://e926.net"

	// MaxPageSize is the largest page the API will return
	MaxPageSize = 320
)

const (
	postsPath   = "/posts.json"
	tagsPath    = "/tags.json"
	aliasesPath = "/tag_aliases.json"
)

func postPath(id int) string      { return "/posts/" + strconv.Itoa(id) + ".json" }
func poolPath(id int) string      { return "/pools/" + strconv.Itoa(id) + ".json" }
func setPath(id int) string       { return "/post_sets/" + strconv.Itoa(id) + ".json" }
func userPath(name string) string { return "/users/" + url.PathEscape(name) + ".json" }

func searchQuery(tags string, page, limit int) url.Values {
	q := url.Values{}
	q.Set("tags", tags)
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func tagQuery(name string) url.Values {
	q := url.Values{}
	q.Set("search[name]", name)
	return q
}

func aliasQuery(name string) url.Values {
	q := url.Values{}
	q.Set("commit", "Search")
	q.Set("search[name_matches]", name)
	q.Set("search[order]", "status")
	return q
}
