package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"lumen/internal/store"

	"github.com/stretchr/testify/assert"
)

func TestPostFilter_Terms(t *testing.T) {
	t.Parallel()

	assert.Empty(t, PostFilter{}.Terms())

	terms := PostFilter{ID: "p1", UID: "u1"}.Terms()
	assert.Len(t, terms, 2)
	assert.Equal(t, FieldID, terms[0].Field)
	assert.Equal(t, "p1", terms[0].Value)
	assert.Equal(t, FieldUID, terms[1].Field)
}

func TestUserFilter_Terms(t *testing.T) {
	t.Parallel()

	terms := UserFilter{Email: "a@b.c", Username: "ann"}.Terms()
	assert.Len(t, terms, 2)
	assert.Equal(t, FieldEmail, terms[0].Field)
	assert.Equal(t, FieldUsername, terms[1].Field)
}

func TestNewDisplayPost(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	post := &Post{
		ID:        "p1",
		UID:       "u1",
		Content:   "hello",
		Files:     []Media{{URL: "https://cdn/x.png", Type: "image"}},
		Likes:     []string{"u2"},
		Comments:  []Comment{{ID: "c1"}, {ID: "c2"}},
		CreatedAt: created,
	}
	author := &User{ID: "u1", Username: "ann", Avatar: &Avatar{URL: "https://cdn/a.png"}}

	dp := NewDisplayPost(post, author)
	assert.Equal(t, "ann", dp.Username)
	assert.Equal(t, "https://cdn/a.png", dp.Avatar.URL)
	assert.Equal(t, 2, dp.Comments)
	assert.Equal(t, created, dp.CreatedAt)
	assert.Equal(t, []string{"u2"}, dp.Likes)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "not found", err: NewNotFoundError("Post", "p1"), want: CodeNotFound},
		{name: "wrapped validation", err: fmt.Errorf("outer: %w", NewValidationError("bad")), want: CodeValidation},
		{name: "invalid argument", err: NewInvalidArgumentError("mode"), want: CodeInvalidArgument},
		{name: "inconsistency", err: NewInconsistencyError("dangling"), want: CodeInconsistency},
		{name: "store", err: &store.Error{Op: "find", Collection: "posts", Err: errors.New("boom")}, want: CodeStore},
		{name: "plain", err: errors.New("x"), want: CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestNewNotFoundByError(t *testing.T) {
	t.Parallel()

	err := NewNotFoundByError("User", "username", "bob")
	assert.Equal(t, "User with username bob not found", err.Error())
	assert.True(t, IsNotFound(err))
}
