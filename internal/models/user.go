// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"lumen/internal/query"
)

// Document field names shared by predicates, patches and array operations.
const (
	FieldID          = "_id"
	FieldUID         = "uid"
	FieldEmail       = "email"
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldFollowers   = "followers"
	FieldFollowings  = "followings"
	FieldAvatar      = "avatar"
	FieldDescription = "description"
	FieldContent     = "content"
	FieldFiles       = "files"
	FieldLikes       = "likes"
	FieldComments    = "comments"
	FieldCreatedAt   = "created_at"
)

// Avatar is a user's profile picture.
type Avatar struct {
	URL         string `bson:"url" json:"url"`
	Orientation string `bson:"orientation" json:"orientation"`
}

// User represents an account and its follow graph edges.
type User struct {
	ID          string    `bson:"_id" json:"id"`
	Email       string    `bson:"email" json:"email"`
	Username    string    `bson:"username" json:"username"`
	Password    string    `bson:"password" json:"-"`
	Followers   []string  `bson:"followers" json:"followers"`
	Followings  []string  `bson:"followings" json:"followings"`
	Avatar      *Avatar   `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// Profile is a user as shown on their profile page.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	Followers   []string  `json:"followers"`
	Followings  []string  `json:"followings"`
	Avatar      *Avatar   `json:"avatar,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	TotalPosts  int64     `json:"total_posts"`
}

// NewProfile projects u with its post count.
func NewProfile(u *User, totalPosts int64) *Profile {
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		Followers:   u.Followers,
		Followings:  u.Followings,
		Avatar:      u.Avatar,
		Description: u.Description,
		CreatedAt:   u.CreatedAt,
		TotalPosts:  totalPosts,
	}
}

// SearchProfile is a user as listed in search results.
type SearchProfile struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   *Avatar `json:"avatar"`
}

// UserFilter selects users by the fields that are set.
type UserFilter struct {
	ID       string
	Email    string
	Username string
}

// Terms implements query.Filter.
func (f UserFilter) Terms() []query.Term {
	var terms []query.Term
	terms = query.AppendString(terms, FieldID, f.ID)
	terms = query.AppendString(terms, FieldEmail, f.Email)
	terms = query.AppendString(terms, FieldUsername, f.Username)
	return terms
}
