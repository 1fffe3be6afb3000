package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"auth", &AuthError{Code: 401, Message: "bad key"}, true},
		{"wrapped challenge", fmt.Errorf("page 1: %w", &ChallengeError{URL: "https://e621.net", Marker: "title"}), true},
		{"parse", &ParseError{Line: 3, Column: 1, Msg: "unknown directive"}, true},
		{"unknown tag", &UnknownTagError{Tag: "nope"}, false},
		{"retrieval", &RetrievalError{Entry: "fur", Page: 2, Err: stderrors.New("timeout")}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&Error{Type: ErrorTypeServerError, Code: 502}))
	assert.True(t, IsTransient(&Error{Type: ErrorTypeRateLimit, Code: 429}))
	assert.True(t, IsTransient(stderrors.New("connection reset by peer")))
	assert.False(t, IsTransient(&Error{Type: ErrorTypeNotFound, Code: 404}))
	assert.False(t, IsTransient(&AuthError{Code: 401}))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(&UnknownTagError{Tag: "x"}))
	assert.False(t, IsTransient(nil))
}

func TestErrorMessages(t *testing.T) {
	pe := &ParseError{Line: 4, Column: 7, Token: "[bogus]", Msg: "unknown directive"}
	assert.Equal(t, `line 4, column 7: unknown directive (near "[bogus]")`, pe.Error())

	inner := stderrors.New("boom")
	de := &DownloadError{PostID: 12, Attempts: 3, Err: inner}
	assert.ErrorIs(t, de, inner)
	assert.Contains(t, de.Error(), "post 12")

	re := &RetrievalError{Entry: "fur", Page: 3, Err: inner}
	assert.ErrorIs(t, re, inner)
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(503))
	assert.True(t, IsRetryableStatusCode(520))
	assert.False(t, IsRetryableStatusCode(401))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(422))
}
