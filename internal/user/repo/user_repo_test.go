package repo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database/databasetest"
)

var columns = []string{"id", "uuid", "email", "nickname", "avatar_url", "locale", "signin_type", "signin_ip",
	"signin_provider", "signin_openid", "invite_code", "invited_by", "created_at", "updated_at"}

func newTestRepo(t *testing.T) (*repo.UserRepo, sqlmock.Sqlmock, *databasetest.Provider) {
	t.Helper()
	p, mock := databasetest.New(t)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return repo.NewUserRepo(p, nil), mock, p
}

func userRow(rows *sqlmock.Rows, id int64, uuid, email string, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, uuid, email, "nick", "", "en", "oauth", "", "google", "", "", "", created, created)
}

func TestUserRepo_InsertThenFind(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "nick", "", "en", "oauth", "", "google", "", "", "",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(userRow(sqlmock.NewRows(columns), 1, "u-1", "alice@example.com", created))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE uuid = $1 LIMIT 1`)).
		WithArgs("u-1").
		WillReturnRows(userRow(sqlmock.NewRows(columns), 1, "u-1", "alice@example.com", created))

	in := &entity.User{Email: "alice@example.com", Nickname: "nick", Locale: "en", SigninType: "oauth", SigninProvider: "google"}
	u, err := r.Insert(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, in.UUID, "uuid generated before insert")
	require.False(t, in.CreatedAt.IsZero())
	require.EqualValues(t, 1, u.ID)

	found, err := r.FindByUUID(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, u, found)
}

func TestUserRepo_Insert_FailureSurfaces(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("duplicate key value"))

	_, err := r.Insert(context.Background(), &entity.User{Email: "a@b.c"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert user")
	require.Contains(t, err.Error(), "duplicate key value")
}

func TestUserRepo_Insert_RetryExhausted(t *testing.T) {
	r, mock, p := newTestRepo(t)
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("CONNECTION_CLOSED"))
	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(errors.New("CONNECTION_CLOSED"))

	_, err := r.Insert(context.Background(), &entity.User{Email: "a@b.c"})
	require.ErrorIs(t, err, database.ErrRetryExhausted)
	require.Equal(t, 1, p.Invalidations())
}

func TestUserRepo_FindByEmail_NotFound(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE email = $1`)).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(columns))

	u, err := r.FindByEmail(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestUserRepo_FindByUUID_PropagatesFault(t *testing.T) {
	r, mock, p := newTestRepo(t)
	boom := errors.New("CONNECTION_CLOSED")
	mock.ExpectQuery(`FROM users WHERE uuid`).WillReturnError(boom)

	_, err := r.FindByUUID(context.Background(), "u-1")
	require.ErrorIs(t, err, boom)
	require.Zero(t, p.Invalidations(), "plain lookups are not retried")
}

func TestUserRepo_FindByInviteCode(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	u, err := r.FindByInviteCode(context.Background(), "")
	require.NoError(t, err)
	require.Nil(t, u)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE invite_code = $1`)).
		WithArgs("ABCD1234").
		WillReturnRows(userRow(sqlmock.NewRows(columns), 3, "u-3", "c@example.com", time.Now()))
	u, err = r.FindByInviteCode(context.Background(), "ABCD1234")
	require.NoError(t, err)
	require.Equal(t, "u-3", u.UUID)
}

func TestUserRepo_FindByUUIDs(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	ctx := context.Background()

	users, err := r.FindByUUIDs(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, users)

	now := time.Now()
	rows := sqlmock.NewRows(columns)
	userRow(rows, 2, "u-2", "b@example.com", now)
	userRow(rows, 1, "u-1", "a@example.com", now)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE uuid IN ($1, $2, $3)`)).
		WithArgs("u-1", "u-2", "u-9").
		WillReturnRows(rows)

	users, err = r.FindByUUIDs(ctx, []string{"u-1", "u-2", "u-9"})
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestUserRepo_UUIDsByEmail(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT uuid FROM users WHERE email = $1`)).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("u-1").AddRow("u-7"))

	ids, err := r.UUIDsByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"u-1", "u-7"}, ids)
}

func TestUserRepo_UpdateInviteCode_TouchesUpdatedAt(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET invite_code = $1, updated_at = $2 WHERE uuid = $3`)).
		WithArgs("CODE0001", sqlmock.AnyArg(), "u-1").
		WillReturnRows(userRow(sqlmock.NewRows(columns), 1, "u-1", "a@example.com", time.Now()))

	u, err := r.UpdateInviteCode(context.Background(), "u-1", "CODE0001")
	require.NoError(t, err)
	require.NotNil(t, u)
}

func TestUserRepo_Update_PartialDoesNotTouchTimestamp(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	nick := "new"
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE users SET nickname = $1 WHERE uuid = $2`)).
		WithArgs("new", "u-1").
		WillReturnRows(sqlmock.NewRows(columns))

	u, err := r.Update(context.Background(), "u-1", entity.UserUpdate{Nickname: &nick})
	require.NoError(t, err)
	require.Nil(t, u, "missing row is absence")
}

func TestUserRepo_Update_NoFields(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	mock.ExpectQuery(`FROM users WHERE uuid`).
		WithArgs("u-1").
		WillReturnRows(userRow(sqlmock.NewRows(columns), 1, "u-1", "a@example.com", time.Now()))

	u, err := r.Update(context.Background(), "u-1", entity.UserUpdate{})
	require.NoError(t, err)
	require.Equal(t, "u-1", u.UUID)
}

func TestUserRepo_List_Pagination(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT $1 OFFSET $2`)).
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows(columns))
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT $1 OFFSET $2`)).
		WithArgs(10, 10).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := r.List(context.Background(), 1, 10)
	require.NoError(t, err)
	_, err = r.List(context.Background(), 2, 10)
	require.NoError(t, err)
}

func TestUserRepo_Count(t *testing.T) {
	cases := []struct {
		name          string
		first, second error
		want          int64
		invalidations int
	}{
		{name: "ok", want: 42},
		{name: "reconnect then ok", first: errors.New("CONNECTION_CLOSED"), want: 42, invalidations: 1},
		{name: "both fail", first: errors.New("conn closed"), second: errors.New("CONNECTION_CLOSED"), want: 0, invalidations: 1},
		{name: "other fault", first: errors.New("statement timeout"), want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, mock, p := newTestRepo(t)
			q := regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)
			if tc.first != nil {
				mock.ExpectQuery(q).WillReturnError(tc.first)
			}
			if tc.first == nil || tc.invalidations > 0 {
				if tc.second != nil {
					mock.ExpectQuery(q).WillReturnError(tc.second)
				} else {
					mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
				}
			}

			n, err := r.Count(context.Background())
			require.NoError(t, err)
			require.Equal(t, tc.want, n)
			require.Equal(t, tc.invalidations, p.Invalidations())
		})
	}
}

func TestUserRepo_Count_MissingDSN(t *testing.T) {
	r, _, p := newTestRepo(t)
	p.Err = database.ErrMissingDSN
	_, err := r.Count(context.Background())
	require.ErrorIs(t, err, database.ErrMissingDSN)
}

func TestUserRepo_CountByDateSince(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	shanghai := time.FixedZone("CST", 8*3600)
	rows := sqlmock.NewRows([]string{"created_at"}).
		AddRow(time.Date(2026, 10, 3, 12, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, 10, 1, 1, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, 10, 3, 1, 0, 0, 0, time.UTC)).
		// 2026-10-02 07:30 in Shanghai is still 2026-10-01 in UTC
		AddRow(time.Date(2026, 10, 2, 7, 30, 0, 0, shanghai))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT created_at FROM users WHERE created_at >= $1`)).
		WithArgs(since).
		WillReturnRows(rows)

	counts, err := r.CountByDateSince(context.Background(), since)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"2026-10-01": 2, "2026-10-03": 2}, counts)

	total := 0
	for day, n := range counts {
		_, err := time.Parse(time.DateOnly, day)
		require.NoError(t, err)
		total += n
	}
	require.Equal(t, 4, total)
}
