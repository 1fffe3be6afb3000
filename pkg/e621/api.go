package e621

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	errs "e621dl/pkg/errors"
)

// SearchPosts fetches one page of posts matching a tag query
func (c *Client) SearchPosts(ctx context.Context, query string, page, limit int) ([]Post, error) {
	var resp PostsResponse
	if err := c.GetJSON(ctx, postsPath, searchQuery(query, page, limit), &resp); err != nil {
		return nil, err
	}
	c.logger.DebugWithFields("fetched posts page", map[string]interface{}{
		"query": query,
		"page":  page,
		"count": len(resp.Posts),
	})
	return resp.Posts, nil
}

// LookupTag returns the catalog record for name, or nil when the tag does not exist.
// The endpoint answers with an object instead of an array when nothing matched.
func (c *Client) LookupTag(ctx context.Context, name string) (*Tag, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, tagsPath, tagQuery(name), &raw); err != nil {
		return nil, err
	}
	if !isArray(raw) {
		return nil, nil
	}

	var tags []Tag
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, &errs.Error{Type: errs.ErrorTypeParsing, Message: fmt.Sprintf("failed to parse tag list: %v", err)}
	}
	for i := range tags {
		if strings.EqualFold(tags[i].Name, name) {
			return &tags[i], nil
		}
	}
	return nil, nil
}

// LookupAliases returns alias records whose antecedent matches name.
// A body that is not an alias list means there is no alias.
func (c *Client) LookupAliases(ctx context.Context, name string) ([]Alias, error) {
	var raw json.RawMessage
	if err := c.GetJSON(ctx, aliasesPath, aliasQuery(name), &raw); err != nil {
		return nil, err
	}
	if !isArray(raw) {
		return nil, nil
	}
	var aliases []Alias
	if err := json.Unmarshal(raw, &aliases); err != nil {
		c.logger.DebugWithFields("ignoring undecodable alias response", map[string]interface{}{
			"tag":   name,
			"error": err.Error(),
		})
		return nil, nil
	}
	return aliases, nil
}

func (c *Client) GetPool(ctx context.Context, id int) (*Pool, error) {
	var pool Pool
	if err := c.GetJSON(ctx, poolPath(id), nil, &pool); err != nil {
		return nil, err
	}
	return &pool, nil
}

func (c *Client) GetSet(ctx context.Context, id int) (*PostSet, error) {
	var set PostSet
	if err := c.GetJSON(ctx, setPath(id), nil, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

func (c *Client) GetPost(ctx context.Context, id int) (*Post, error) {
	var resp PostResponse
	if err := c.GetJSON(ctx, postPath(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Post, nil
}

// GetUser fetches an account by name. The blacklist is only populated for
// the authenticated user.
func (c *Client) GetUser(ctx context.Context, name string) (*User, error) {
	var user User
	if err := c.GetJSON(ctx, userPath(name), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Download streams the file at fileURL into w and returns the byte count.
// Static file hosts are not subject to the API pacer.
func (c *Client) Download(ctx context.Context, fileURL string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, fileURL)
	if err != nil {
		return 0, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkFileResponse(resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read file body: %v", err),
			Code:    resp.StatusCode,
		}
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("short body: got %d of %d bytes", n, resp.ContentLength),
			Code:    resp.StatusCode,
		}
	}
	return n, nil
}

// checkFileResponse is checkResponse for the static file host. A refused
// file only concerns its post, so 401 and 403 do not count as a session
// failure there.
func (c *Client) checkFileResponse(resp *http.Response) error {
	err := c.checkResponse(resp)
	var authErr *errs.AuthError
	if errors.As(err, &authErr) {
		return &errs.Error{Type: errs.ErrorTypeForbidden, Message: "file access refused", Code: authErr.Code}
	}
	return err
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
