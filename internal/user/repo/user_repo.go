package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

// NOTE: expected table schema (owned outside this service):
// CREATE TABLE users (
//   id BIGSERIAL PRIMARY KEY,
//   uuid TEXT NOT NULL UNIQUE,
//   email TEXT NOT NULL,
//   nickname TEXT NOT NULL DEFAULT '',
//   avatar_url TEXT NOT NULL DEFAULT '',
//   locale TEXT NOT NULL DEFAULT '',
//   signin_type TEXT NOT NULL DEFAULT '',
//   signin_ip TEXT NOT NULL DEFAULT '',
//   signin_provider TEXT NOT NULL DEFAULT '',
//   signin_openid TEXT NOT NULL DEFAULT '',
//   invite_code TEXT NOT NULL DEFAULT '',
//   invited_by TEXT NOT NULL DEFAULT '',
//   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//   updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
// );

const userColumns = `id, uuid, email, nickname, avatar_url, locale, signin_type, signin_ip,
	signin_provider, signin_openid, invite_code, invited_by, created_at, updated_at`

// UserRepo provides data access for the users table.
type UserRepo struct {
	db     database.Provider
	logger *zap.SugaredLogger
}

func NewUserRepo(db database.Provider, logger *zap.SugaredLogger) *UserRepo {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &UserRepo{db: db, logger: logger}
}

// Insert stores u and returns the stored row. UUID and timestamps are
// generated when empty.
func (r *UserRepo) Insert(ctx context.Context, u *entity.User) (*entity.User, error) {
	if u.UUID == "" {
		u.UUID = utilities.NewUUID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	const q = `INSERT INTO users (uuid, email, nickname, avatar_url, locale, signin_type, signin_ip,
		signin_provider, signin_openid, invite_code, invited_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + userColumns
	row, err := database.DoWithReconnect(ctx, r.db, r.logger, "insert user", func(ctx context.Context, db *sqlx.DB) (*entity.User, error) {
		var row entity.User
		err := db.GetContext(ctx, &row, q, u.UUID, u.Email, u.Nickname, u.AvatarURL, u.Locale,
			u.SigninType, u.SigninIP, u.SigninProvider, u.SigninOpenID, u.InviteCode, u.InvitedBy,
			u.CreatedAt, u.UpdatedAt)
		return &row, err
	})
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return row, nil
}

func (r *UserRepo) findOne(ctx context.Context, op, column string, arg any) (*entity.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1 LIMIT 1`
	return database.Do(ctx, r.db, r.logger, op, func(ctx context.Context, db *sqlx.DB) (*entity.User, error) {
		var u entity.User
		if err := db.GetContext(ctx, &u, q, arg); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return &u, nil
	})
}

// FindByUUID returns the user or nil when absent.
func (r *UserRepo) FindByUUID(ctx context.Context, uuid string) (*entity.User, error) {
	return r.findOne(ctx, "find user by uuid", "uuid", uuid)
}

// FindByEmail returns the first user with the email or nil. Emails are not
// unique at this layer.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.findOne(ctx, "find user by email", "email", email)
}

// FindByInviteCode returns the owner of code or nil. The empty code never
// matches.
func (r *UserRepo) FindByInviteCode(ctx context.Context, code string) (*entity.User, error) {
	if code == "" {
		return nil, nil
	}
	return r.findOne(ctx, "find user by invite code", "invite_code", code)
}

// FindByUUIDs returns the users matching any of uuids, in no particular
// order. Unknown uuids are skipped.
func (r *UserRepo) FindByUUIDs(ctx context.Context, uuids []string) ([]entity.User, error) {
	if len(uuids) == 0 {
		return []entity.User{}, nil
	}
	return database.Do(ctx, r.db, r.logger, "find users by uuids", func(ctx context.Context, db *sqlx.DB) ([]entity.User, error) {
		q, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE uuid IN (?)`, uuids)
		if err != nil {
			return nil, err
		}
		users := []entity.User{}
		if err := db.SelectContext(ctx, &users, db.Rebind(q), args...); err != nil {
			return nil, err
		}
		return users, nil
	})
}

// UUIDsByEmail lists the uuids of every account registered with email.
func (r *UserRepo) UUIDsByEmail(ctx context.Context, email string) ([]string, error) {
	const q = `SELECT uuid FROM users WHERE email = $1`
	return database.Do(ctx, r.db, r.logger, "user uuids by email", func(ctx context.Context, db *sqlx.DB) ([]string, error) {
		out := []string{}
		if err := db.SelectContext(ctx, &out, q, email); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Update applies the non-nil fields of in to the user with uuid and returns
// the updated row, or nil when no such user exists. updated_at is only
// written when in.UpdatedAt is set.
func (r *UserRepo) Update(ctx context.Context, uuid string, in entity.UserUpdate) (*entity.User, error) {
	var set database.Assignments
	if in.Email != nil {
		set.Set("email", *in.Email)
	}
	if in.Nickname != nil {
		set.Set("nickname", *in.Nickname)
	}
	if in.AvatarURL != nil {
		set.Set("avatar_url", *in.AvatarURL)
	}
	if in.Locale != nil {
		set.Set("locale", *in.Locale)
	}
	if in.InviteCode != nil {
		set.Set("invite_code", *in.InviteCode)
	}
	if in.InvitedBy != nil {
		set.Set("invited_by", *in.InvitedBy)
	}
	if in.UpdatedAt != nil {
		set.Set("updated_at", *in.UpdatedAt)
	}
	if set.Len() == 0 {
		return r.FindByUUID(ctx, uuid)
	}
	clause, args := set.Clause()
	q := `UPDATE users SET ` + clause + ` WHERE uuid = $` + strconv.Itoa(len(args)+1) + ` RETURNING ` + userColumns
	args = append(args, uuid)

	u, err := database.DoWithReconnect(ctx, r.db, r.logger, "update user", func(ctx context.Context, db *sqlx.DB) (*entity.User, error) {
		var u entity.User
		if err := db.GetContext(ctx, &u, q, args...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// UpdateInviteCode sets the invite code and touches updated_at.
func (r *UserRepo) UpdateInviteCode(ctx context.Context, uuid, code string) (*entity.User, error) {
	now := time.Now().UTC()
	return r.Update(ctx, uuid, entity.UserUpdate{InviteCode: &code, UpdatedAt: &now})
}

// UpdateInvitedBy records the inviter's uuid and touches updated_at.
func (r *UserRepo) UpdateInvitedBy(ctx context.Context, uuid, invitedBy string) (*entity.User, error) {
	now := time.Now().UTC()
	return r.Update(ctx, uuid, entity.UserUpdate{InvitedBy: &invitedBy, UpdatedAt: &now})
}

// List returns one page of users, newest first.
func (r *UserRepo) List(ctx context.Context, page, limit int) ([]entity.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	return database.Do(ctx, r.db, r.logger, "list users", func(ctx context.Context, db *sqlx.DB) ([]entity.User, error) {
		users := []entity.User{}
		if err := db.SelectContext(ctx, &users, q, limit, database.Offset(page, limit)); err != nil {
			return nil, err
		}
		return users, nil
	})
}

// Count returns the number of users, or 0 when the store cannot answer.
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	n, err := database.DoWithReconnect(ctx, r.db, r.logger, "count users", func(ctx context.Context, db *sqlx.DB) (int64, error) {
		var n int64
		err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`)
		return n, err
	})
	return database.Degrade(n, err)
}

// CountByDateSince buckets users created at or after since by UTC calendar
// date (YYYY-MM-DD).
func (r *UserRepo) CountByDateSince(ctx context.Context, since time.Time) (map[string]int, error) {
	const q = `SELECT created_at FROM users WHERE created_at >= $1`
	stamps, err := database.Do(ctx, r.db, r.logger, "count users by date", func(ctx context.Context, db *sqlx.DB) ([]time.Time, error) {
		var out []time.Time
		err := db.SelectContext(ctx, &out, q, since)
		return out, err
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(stamps, func(a, b time.Time) int { return a.Compare(b) })
	counts := make(map[string]int)
	for _, ts := range stamps {
		counts[ts.UTC().Format(time.DateOnly)]++
	}
	return counts, nil
}
