package blacklist

import (
	"context"
	"errors"
	"testing"

	"e621dl/pkg/e621"
	errs "e621dl/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func post(id int, rating string, score, uploader int, general ...string) e621.Post {
	return e621.Post{
		ID:         id,
		Rating:     rating,
		Score:      e621.Score{Total: score},
		UploaderID: uploader,
		Tags:       e621.Tags{General: general, Species: []string{"canine"}},
	}
}

func ids(posts []e621.Post) []int {
	out := []int{}
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func samplePosts() []e621.Post {
	return []e621.Post{
		post(1, "s", 10, 100, "solo", "gore"),
		post(2, "e", 50, 200, "duo"),
		post(3, "q", -5, 100, "solo", "comic"),
		post(4, "s", 0, 300, "solo"),
		post(5, "e", 200, 300, "gore", "comic"),
	}
}

func TestParse(t *testing.T) {
	rules := Parse("gore\r\n\nComic solo, rating:e -duo\n  \n-only -negated\n")
	require.Len(t, rules.Groups, 4)
	assert.Equal(t, "gore", rules.Groups[0].Source)
	assert.Equal(t, "comic solo", rules.Groups[1].Source)
	assert.Equal(t, "rating:e -duo", rules.Groups[2].Source)
	assert.True(t, rules.Groups[3].Tokens[0].Negated)

	assert.True(t, Parse("").Empty())
	assert.True(t, Parse(" \n , \n").Empty())
}

func TestFilterTagGroups(t *testing.T) {
	kept, removed := Filter(samplePosts(), Parse("gore\ncomic solo"))
	assert.Equal(t, []int{2, 4}, ids(kept))
	assert.Equal(t, []int{1, 3, 5}, ids(removed))
}

func TestFilterNegation(t *testing.T) {
	// gore posts are removed unless they are comics
	kept, _ := Filter(samplePosts(), Parse("gore -comic"))
	assert.Equal(t, []int{2, 3, 4, 5}, ids(kept))

	// a group of only negated tokens never matches
	kept, _ = Filter(samplePosts(), Parse("-solo"))
	assert.Len(t, kept, 5)
}

func TestFilterMetatags(t *testing.T) {
	tests := []struct {
		rule string
		kept []int
	}{
		{"rating:e", []int{1, 3, 4}},
		{"rating:explicit", []int{1, 3, 4}},
		{"rating:safe solo", []int{2, 3, 5}},
		{"rating:bogus", []int{1, 2, 3, 4, 5}},
		{"id:3", []int{1, 2, 4, 5}},
		{"score:<0", []int{1, 2, 4, 5}},
		{"score:>=50", []int{1, 3, 4}},
		{"score:>50", []int{1, 2, 3, 4}},
		{"score:<=0", []int{1, 2, 5}},
		{"score:0", []int{1, 2, 3, 5}},
		{"canine -score:<0", []int{}},
		{"score:abc", []int{1, 2, 3, 4, 5}},
		{"artist:someone", []int{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			kept, _ := Filter(samplePosts(), Parse(tt.rule))
			assert.Equal(t, tt.kept, ids(kept))
		})
	}
}

type fakeResolver map[string]int

func (f fakeResolver) GetUser(_ context.Context, name string) (*e621.User, error) {
	if name == "broken" {
		return nil, errors.New("connection reset")
	}
	id, ok := f[name]
	if !ok {
		return nil, &errs.Error{Type: errs.ErrorTypeNotFound, Code: 404}
	}
	return &e621.User{ID: id, Name: name}, nil
}

func TestResolveUsers(t *testing.T) {
	rules := Parse("user:uploader_a\nuser:ghost\nuser:uploader_a rating:e")
	assert.Equal(t, []string{"uploader_a", "ghost"}, rules.Users())

	// unresolved rules never match user tokens
	kept, _ := Filter(samplePosts(), rules)
	assert.Len(t, kept, 5)

	resolved, err := ResolveUsers(context.Background(), rules, fakeResolver{"uploader_a": 100})
	require.NoError(t, err)
	kept, removed := Filter(samplePosts(), resolved)
	assert.Equal(t, []int{2, 4, 5}, ids(kept))
	assert.Equal(t, []int{1, 3}, ids(removed))

	// the original rules are untouched
	kept, _ = Filter(samplePosts(), rules)
	assert.Len(t, kept, 5)

	_, err = ResolveUsers(context.Background(), Parse("user:broken"), fakeResolver{})
	assert.Error(t, err)
}

func TestFilterIdempotent(t *testing.T) {
	rules := Merge(Parse("gore -comic"), Parse("rating:q, score:>=100"))
	once, removedOnce := Filter(samplePosts(), rules)
	twice, removedTwice := Filter(once, rules)

	assert.Equal(t, once, twice)
	assert.NotEmpty(t, removedOnce)
	assert.Empty(t, removedTwice)
}

func TestFilterOrderIndependent(t *testing.T) {
	rules := Parse("gore\nrating:q")
	posts := samplePosts()
	reversed := make([]e621.Post, len(posts))
	for i, p := range posts {
		reversed[len(posts)-1-i] = p
	}

	kept, _ := Filter(posts, rules)
	keptRev, _ := Filter(reversed, rules)
	assert.ElementsMatch(t, ids(kept), ids(keptRev))
}

func TestFilterEmptyRules(t *testing.T) {
	kept, removed := Filter(samplePosts(), Rules{})
	assert.Len(t, kept, 5)
	assert.Empty(t, removed)
}
