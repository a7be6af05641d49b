package entity

import "time"

type PostStatus string

const (
	PostStatusCreated PostStatus = "created"
	PostStatusDeleted PostStatus = "deleted"
	PostStatusOnline  PostStatus = "online"
	PostStatusOffline PostStatus = "offline"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusCreated, PostStatusDeleted, PostStatusOnline, PostStatusOffline:
		return true
	}
	return false
}

// Post is a row in the `posts` table. Slug and Locale together address a
// post publicly; UserUUID points at the author without being checked.
type Post struct {
	ID              int64      `db:"id" json:"id"`
	UUID            string     `db:"uuid" json:"uuid"`
	Slug            string     `db:"slug" json:"slug"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	Content         string     `db:"content" json:"content"`
	CoverURL        string     `db:"cover_url" json:"cover_url"`
	AuthorName      string     `db:"author_name" json:"author_name"`
	AuthorAvatarURL string     `db:"author_avatar_url" json:"author_avatar_url"`
	Locale          string     `db:"locale" json:"locale"`
	Status          PostStatus `db:"status" json:"status"`
	UserUUID        string     `db:"user_uuid" json:"user_uuid"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PostUpdate is a partial update; nil fields are left untouched.
type PostUpdate struct {
	Slug            *string     `json:"slug"`
	Title           *string     `json:"title"`
	Description     *string     `json:"description"`
	Content         *string     `json:"content"`
	CoverURL        *string     `json:"cover_url"`
	AuthorName      *string     `json:"author_name"`
	AuthorAvatarURL *string     `json:"author_avatar_url"`
	Locale          *string     `json:"locale"`
	Status          *PostStatus `json:"status"`
	UpdatedAt       *time.Time  `json:"-"`
}
