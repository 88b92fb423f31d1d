package models

import (
	"time"

	"lumen/internal/query"
)

// Media is an uploaded file attached to a post.
type Media struct {
	URL         string `bson:"url" json:"url"`
	Type        string `bson:"type" json:"type"`
	Orientation string `bson:"orientation" json:"orientation"`
}

// Comment is embedded in its post and only changes through the post.
type Comment struct {
	ID        string    `bson:"_id" json:"id"`
	UID       string    `bson:"uid" json:"uid"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Post represents a post with its likes and comments embedded.
type Post struct {
	ID        string    `bson:"_id" json:"id"`
	UID       string    `bson:"uid" json:"uid"`
	Content   string    `bson:"content" json:"content"`
	Files     []Media   `bson:"files" json:"files"`
	Likes     []string  `bson:"likes" json:"likes"`
	Comments  []Comment `bson:"comments" json:"comments"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// PostFilter selects posts by the fields that are set.
type PostFilter struct {
	ID      string
	UID     string
	Content string
}

// Terms implements query.Filter.
func (f PostFilter) Terms() []query.Term {
	var terms []query.Term
	terms = query.AppendString(terms, FieldID, f.ID)
	terms = query.AppendString(terms, FieldUID, f.UID)
	terms = query.AppendString(terms, FieldContent, f.Content)
	return terms
}

// DisplayPost is a post joined with its author, as rendered in a feed.
// Comments carries the comment count, not the comment bodies.
type DisplayPost struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Avatar    *Avatar   `json:"avatar,omitempty"`
	Content   string    `json:"content"`
	Files     []Media   `json:"files"`
	Likes     []string  `json:"likes"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDisplayPost joins p with its author.
func NewDisplayPost(p *Post, author *User) *DisplayPost {
	return &DisplayPost{
		ID:        p.ID,
		UID:       p.UID,
		Username:  author.Username,
		Avatar:    author.Avatar,
		Content:   p.Content,
		Files:     p.Files,
		Likes:     p.Likes,
		Comments:  len(p.Comments),
		CreatedAt: p.CreatedAt,
	}
}

// DisplayComment is a comment joined with its author.
type DisplayComment struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Username  string    `json:"username"`
	Avatar    *Avatar   `json:"avatar,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDisplayComment joins c with its author.
func NewDisplayComment(c Comment, author *User) *DisplayComment {
	return &DisplayComment{
		ID:        c.ID,
		UID:       c.UID,
		Username:  author.Username,
		Avatar:    author.Avatar,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}
