package grabber

import (
	"context"

	"e621dl/pkg/e621"
)

// PostSource defines the catalog operations the retriever needs
type PostSource interface {
	SearchPosts(ctx context.Context, query string, page, limit int) ([]e621.Post, error)
	GetPool(ctx context.Context, id int) (*e621.Pool, error)
	GetSet(ctx context.Context, id int) (*e621.PostSet, error)
	GetPost(ctx context.Context, id int) (*e621.Post, error)
	GetUser(ctx context.Context, name string) (*e621.User, error)
}
