package models

import "breederhub/api/internal/utils"

// Post is an article written by the site admins.
type Post struct {
	Base       `bson:",inline"`
	Timestamps `bson:",inline"`
	Title      string      `bson:"title" json:"title"`
	Slug       string      `bson:"slug" json:"slug"`
	Content    string      `bson:"content" json:"content"` // sanitised HTML
	Tags       []string    `bson:"tags" json:"tags"`
	AuthorID   utils.SixID `bson:"author_id" json:"author_id"`
	Published  bool        `bson:"published" json:"published"`
}

// PostInput carries the editable fields of a post. Nil fields are left unchanged on update.
type PostInput struct {
	Title     *string   `json:"title"`
	Slug      *string   `json:"slug"`
	Content   *string   `json:"content"`
	Tags      *[]string `json:"tags"`
	Published *bool     `json:"published"`
}

// PostFilter narrows a post listing. Query matches title, content and tags.
type PostFilter struct {
	Tag   string
	Query string
	Page  int
	Limit int
}

// PostPage is one page of posts.
type PostPage struct {
	Items []Post `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Pages int64  `json:"pages"`
}
