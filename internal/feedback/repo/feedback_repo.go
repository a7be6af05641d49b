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

	"github.com/ovaphlow/pitchfork/service-content-go/internal/feedback/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
)

// NOTE: expected table schema (owned outside this service):
// CREATE TABLE feedbacks (
//   id BIGSERIAL PRIMARY KEY,
//   user_uuid TEXT NOT NULL DEFAULT '',
//   content TEXT NOT NULL DEFAULT '',
//   rating INT NOT NULL DEFAULT 0,
//   status TEXT NOT NULL DEFAULT '',
//   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
// );

const feedbackColumns = `id, user_uuid, content, rating, status, created_at`

type FeedbackRepo struct {
	db     database.Provider
	logger *zap.SugaredLogger
}

func NewFeedbackRepo(db database.Provider, logger *zap.SugaredLogger) *FeedbackRepo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FeedbackRepo{db: db, logger: logger}
}

func getFeedback(ctx context.Context, db *sqlx.DB, q string, args ...any) (*entity.Feedback, error) {
	var f entity.Feedback
	if err := db.GetContext(ctx, &f, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *FeedbackRepo) Insert(ctx context.Context, f *entity.Feedback) (*entity.Feedback, error) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO feedbacks (user_uuid, content, rating, status, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING ` + feedbackColumns
	out, err := database.DoWithReconnect(ctx, r.db, r.logger, "insert feedback", func(ctx context.Context, db *sqlx.DB) (*entity.Feedback, error) {
		return getFeedback(ctx, db, q, f.UserUUID, f.Content, f.Rating, f.Status, f.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	return out, nil
}

func (r *FeedbackRepo) FindByID(ctx context.Context, id int64) (*entity.Feedback, error) {
	const q = `SELECT ` + feedbackColumns + ` FROM feedbacks WHERE id = $1 LIMIT 1`
	return database.Do(ctx, r.db, r.logger, "find feedback by id", func(ctx context.Context, db *sqlx.DB) (*entity.Feedback, error) {
		return getFeedback(ctx, db, q, id)
	})
}

// Update applies the non-nil fields of in; nil result means no such row.
func (r *FeedbackRepo) Update(ctx context.Context, id int64, in entity.FeedbackUpdate) (*entity.Feedback, error) {
	var set database.Assignments
	if in.Content != nil {
		set.Set("content", *in.Content)
	}
	if in.Rating != nil {
		set.Set("rating", *in.Rating)
	}
	if in.Status != nil {
		set.Set("status", *in.Status)
	}
	if set.Len() == 0 {
		return r.FindByID(ctx, id)
	}
	clause, args := set.Clause()
	q := `UPDATE feedbacks SET ` + clause + ` WHERE id = $` + strconv.Itoa(len(args)+1) + ` RETURNING ` + feedbackColumns
	args = append(args, id)

	out, err := database.DoWithReconnect(ctx, r.db, r.logger, "update feedback", func(ctx context.Context, db *sqlx.DB) (*entity.Feedback, error) {
		return getFeedback(ctx, db, q, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("update feedback: %w", err)
	}
	return out, nil
}

// List returns one page of feedback, newest first.
func (r *FeedbackRepo) List(ctx context.Context, page, limit int) ([]entity.Feedback, error) {
	const q = `SELECT ` + feedbackColumns + ` FROM feedbacks ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return database.Do(ctx, r.db, r.logger, "list feedbacks", func(ctx context.Context, db *sqlx.DB) ([]entity.Feedback, error) {
		out := []entity.Feedback{}
		if err := db.SelectContext(ctx, &out, q, limit, database.Offset(page, limit)); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Count returns the number of feedback rows, or 0 when the store cannot
// answer.
func (r *FeedbackRepo) Count(ctx context.Context) (int64, error) {
	n, err := database.DoWithReconnect(ctx, r.db, r.logger, "count feedbacks", func(ctx context.Context, db *sqlx.DB) (int64, error) {
		var n int64
		err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM feedbacks`)
		return n, err
	})
	return database.Degrade(n, err)
}
