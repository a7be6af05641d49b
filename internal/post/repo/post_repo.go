package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

// NOTE: expected table schema (owned outside this service):
// CREATE TABLE posts (
//   id BIGSERIAL PRIMARY KEY,
//   uuid TEXT NOT NULL UNIQUE,
//   slug TEXT NOT NULL DEFAULT '',
//   title TEXT NOT NULL DEFAULT '',
//   description TEXT NOT NULL DEFAULT '',
//   content TEXT NOT NULL DEFAULT '',
//   cover_url TEXT NOT NULL DEFAULT '',
//   author_name TEXT NOT NULL DEFAULT '',
//   author_avatar_url TEXT NOT NULL DEFAULT '',
//   locale TEXT NOT NULL DEFAULT '',
//   status TEXT NOT NULL DEFAULT 'created',
//   user_uuid TEXT NOT NULL DEFAULT '',
//   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
// );
// CREATE UNIQUE INDEX ON posts (slug, locale);

const postColumns = `id, uuid, slug, title, description, content, cover_url, author_name,
	author_avatar_url, locale, status, user_uuid, created_at, updated_at`

// PostRepo provides data access for the posts table.
type PostRepo struct {
	db     database.Provider
	logger *zap.SugaredLogger
}

func NewPostRepo(db database.Provider, logger *zap.SugaredLogger) *PostRepo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PostRepo{db: db, logger: logger}
}

func scanOne(ctx context.Context, db *sqlx.DB, q string, args ...any) (*entity.Post, error) {
	var p entity.Post
	if err := db.GetContext(ctx, &p, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Insert stores p and returns the stored row.
func (r *PostRepo) Insert(ctx context.Context, p *entity.Post) (*entity.Post, error) {
	if p.UUID == "" {
		p.UUID = utilities.NewUUID()
	}
	if p.Status == "" {
		p.Status = entity.PostStatusCreated
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	const q = `INSERT INTO posts (uuid, slug, title, description, content, cover_url, author_name,
		author_avatar_url, locale, status, user_uuid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + postColumns
	out, err := database.DoWithReconnect(ctx, r.db, r.logger, "insert post", func(ctx context.Context, db *sqlx.DB) (*entity.Post, error) {
		return scanOne(ctx, db, q, p.UUID, p.Slug, p.Title, p.Description, p.Content, p.CoverURL,
			p.AuthorName, p.AuthorAvatarURL, p.Locale, string(p.Status), p.UserUUID, p.CreatedAt, p.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return out, nil
}

// Update applies the non-nil fields of in and returns the updated row, or
// nil when no post has uuid. Last write wins.
func (r *PostRepo) Update(ctx context.Context, uuid string, in entity.PostUpdate) (*entity.Post, error) {
	var set database.Assignments
	for _, f := range []struct {
		col string
		v   *string
	}{
		{"slug", in.Slug},
		{"title", in.Title},
		{"description", in.Description},
		{"content", in.Content},
		{"cover_url", in.CoverURL},
		{"author_name", in.AuthorName},
		{"author_avatar_url", in.AuthorAvatarURL},
		{"locale", in.Locale},
	} {
		if f.v != nil {
			set.Set(f.col, *f.v)
		}
	}
	if in.Status != nil {
		set.Set("status", string(*in.Status))
	}
	if in.UpdatedAt != nil {
		set.Set("updated_at", *in.UpdatedAt)
	}
	if set.Len() == 0 {
		// plain lookup: a fault here must not read as a missing post
		const q = `SELECT ` + postColumns + ` FROM posts WHERE uuid = $1 LIMIT 1`
		out, err := database.Do(ctx, r.db, r.logger, "update post", func(ctx context.Context, db *sqlx.DB) (*entity.Post, error) {
			return scanOne(ctx, db, q, uuid)
		})
		if err != nil {
			return nil, fmt.Errorf("update post: %w", err)
		}
		return out, nil
	}
	clause, args := set.Clause()
	q := `UPDATE posts SET ` + clause + ` WHERE uuid = $` + strconv.Itoa(len(args)+1) + ` RETURNING ` + postColumns
	args = append(args, uuid)

	out, err := database.DoWithReconnect(ctx, r.db, r.logger, "update post", func(ctx context.Context, db *sqlx.DB) (*entity.Post, error) {
		return scanOne(ctx, db, q, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return out, nil
}

// FindByUUID returns the post or nil. Store failures also yield nil.
func (r *PostRepo) FindByUUID(ctx context.Context, uuid string) (*entity.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE uuid = $1 LIMIT 1`
	p, err := database.DoWithReconnect(ctx, r.db, r.logger, "find post by uuid", func(ctx context.Context, db *sqlx.DB) (*entity.Post, error) {
		return scanOne(ctx, db, q, uuid)
	})
	return database.Degrade(p, err)
}

func (r *PostRepo) FindBySlugAndLocale(ctx context.Context, slug, locale string) (*entity.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE slug = $1 AND locale = $2 LIMIT 1`
	return database.Do(ctx, r.db, r.logger, "find post by slug", func(ctx context.Context, db *sqlx.DB) (*entity.Post, error) {
		return scanOne(ctx, db, q, slug, locale)
	})
}

// List returns one page of all posts regardless of status, newest first.
func (r *PostRepo) List(ctx context.Context, page, limit int) ([]entity.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, "list posts", q, limit, database.Offset(page, limit))
}

// ListByLocale returns one page of online posts in locale, newest first.
func (r *PostRepo) ListByLocale(ctx context.Context, locale string, page, limit int) ([]entity.Post, error) {
	const q = `SELECT ` + postColumns + ` FROM posts WHERE locale = $1 AND status = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	return r.list(ctx, "list posts by locale", q, locale, string(entity.PostStatusOnline), limit, database.Offset(page, limit))
}

func (r *PostRepo) list(ctx context.Context, op, q string, args ...any) ([]entity.Post, error) {
	return database.Do(ctx, r.db, r.logger, op, func(ctx context.Context, db *sqlx.DB) ([]entity.Post, error) {
		posts := []entity.Post{}
		if err := db.SelectContext(ctx, &posts, q, args...); err != nil {
			return nil, err
		}
		return posts, nil
	})
}

// Count returns the number of posts, or 0 when the store cannot answer.
func (r *PostRepo) Count(ctx context.Context) (int64, error) {
	n, err := database.DoWithReconnect(ctx, r.db, r.logger, "count posts", func(ctx context.Context, db *sqlx.DB) (int64, error) {
		var n int64
		err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts`)
		return n, err
	})
	return database.Degrade(n, err)
}
