package repo_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/post/repo"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database/databasetest"
)

var columns = []string{"id", "uuid", "slug", "title", "description", "content", "cover_url", "author_name",
	"author_avatar_url", "locale", "status", "user_uuid", "created_at", "updated_at"}

func newTestRepo(t *testing.T) (*repo.PostRepo, sqlmock.Sqlmock, *databasetest.Provider) {
	t.Helper()
	p, mock := databasetest.New(t)
	t.Cleanup(func() { require.NoError(t, mock.ExpectationsWereMet()) })
	return repo.NewPostRepo(p, nil), mock, p
}

func postRow(rows *sqlmock.Rows, id int64, uuid, locale string, status entity.PostStatus, created time.Time) *sqlmock.Rows {
	return rows.AddRow(id, uuid, "hello-world", "Hello", "", "body", "", "ann", "", locale, string(status), "u-1", created, created)
}

func TestPostRepo_InsertThenFind(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	ctx := context.Background()
	created := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO posts`).
		WithArgs(sqlmock.AnyArg(), "hello-world", "Hello", "", "body", "", "ann", "", "en", "created", "u-1",
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(postRow(sqlmock.NewRows(columns), 1, "p-1", "en", entity.PostStatusCreated, created))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE slug = $1 AND locale = $2`)).
		WithArgs("hello-world", "en").
		WillReturnRows(postRow(sqlmock.NewRows(columns), 1, "p-1", "en", entity.PostStatusCreated, created))

	p, err := r.Insert(ctx, &entity.Post{Slug: "hello-world", Title: "Hello", Content: "body", AuthorName: "ann", Locale: "en", UserUUID: "u-1"})
	require.NoError(t, err)
	require.Equal(t, entity.PostStatusCreated, p.Status)

	found, err := r.FindBySlugAndLocale(ctx, "hello-world", "en")
	require.NoError(t, err)
	require.Equal(t, p, found)
}

func TestPostRepo_Insert_RetriesAfterClosedConnection(t *testing.T) {
	r, mock, p := newTestRepo(t)
	mock.ExpectQuery(`INSERT INTO posts`).WillReturnError(errors.New("write CONNECTION_CLOSED"))
	mock.ExpectQuery(`INSERT INTO posts`).
		WillReturnRows(postRow(sqlmock.NewRows(columns), 2, "p-2", "en", entity.PostStatusCreated, time.Now()))

	out, err := r.Insert(context.Background(), &entity.Post{Slug: "x", Locale: "en"})
	require.NoError(t, err)
	require.Equal(t, "p-2", out.UUID)
	require.Equal(t, 1, p.Invalidations())
}

func TestPostRepo_Update_Failure(t *testing.T) {
	t.Run("plain fault", func(t *testing.T) {
		r, mock, p := newTestRepo(t)
		boom := errors.New("value too long")
		mock.ExpectQuery(`UPDATE posts SET`).WillReturnError(boom)

		title := "t"
		_, err := r.Update(context.Background(), "p-1", entity.PostUpdate{Title: &title})
		require.ErrorIs(t, err, boom)
		require.Contains(t, err.Error(), "update post")
		require.Zero(t, p.Invalidations())
	})
	t.Run("retry exhausted", func(t *testing.T) {
		r, mock, p := newTestRepo(t)
		mock.ExpectQuery(`UPDATE posts SET`).WillReturnError(errors.New("CONNECTION_CLOSED"))
		mock.ExpectQuery(`UPDATE posts SET`).WillReturnError(errors.New("CONNECTION_CLOSED"))

		title := "t"
		_, err := r.Update(context.Background(), "p-1", entity.PostUpdate{Title: &title})
		require.ErrorIs(t, err, database.ErrRetryExhausted)
		require.Equal(t, 1, p.Invalidations())
	})
}

func TestPostRepo_Update_Partial(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	status := entity.PostStatusOnline
	title := "New"
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE posts SET title = $1, status = $2 WHERE uuid = $3`)).
		WithArgs("New", "online", "p-1").
		WillReturnRows(postRow(sqlmock.NewRows(columns), 1, "p-1", "en", entity.PostStatusOnline, time.Now()))

	p, err := r.Update(context.Background(), "p-1", entity.PostUpdate{Title: &title, Status: &status})
	require.NoError(t, err)
	require.Equal(t, entity.PostStatusOnline, p.Status)
}

func TestPostRepo_Update_NoFields(t *testing.T) {
	t.Run("returns current row", func(t *testing.T) {
		r, mock, _ := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM posts WHERE uuid = $1 LIMIT 1`)).
			WithArgs("p-1").
			WillReturnRows(postRow(sqlmock.NewRows(columns), 1, "p-1", "en", entity.PostStatusCreated, time.Now()))

		p, err := r.Update(context.Background(), "p-1", entity.PostUpdate{})
		require.NoError(t, err)
		require.Equal(t, "p-1", p.UUID)
	})
	t.Run("store fault surfaces", func(t *testing.T) {
		r, mock, _ := newTestRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`FROM posts WHERE uuid = $1 LIMIT 1`)).
			WillReturnError(errors.New("statement timeout"))

		p, err := r.Update(context.Background(), "p-1", entity.PostUpdate{})
		require.ErrorContains(t, err, "update post: statement timeout")
		require.Nil(t, p)
	})
}

func TestPostRepo_FindByUUID_Degrades(t *testing.T) {
	r, mock, p := newTestRepo(t)
	mock.ExpectQuery(`FROM posts WHERE uuid`).WillReturnError(errors.New("CONNECTION_CLOSED"))
	mock.ExpectQuery(`FROM posts WHERE uuid`).WillReturnError(errors.New("CONNECTION_CLOSED"))

	post, err := r.FindByUUID(context.Background(), "p-1")
	require.NoError(t, err)
	require.Nil(t, post)
	require.Equal(t, 1, p.Invalidations())
}

func TestPostRepo_FindByUUID_MissingDSN(t *testing.T) {
	r, _, p := newTestRepo(t)
	p.Err = database.ErrMissingDSN
	_, err := r.FindByUUID(context.Background(), "p-1")
	require.ErrorIs(t, err, database.ErrMissingDSN)
}

func TestPostRepo_ListByLocale_OnlyOnline(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	now := time.Now()
	rows := sqlmock.NewRows(columns)
	postRow(rows, 3, "p-3", "en", entity.PostStatusOnline, now)
	postRow(rows, 1, "p-1", "en", entity.PostStatusOnline, now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE locale = $1 AND status = $2`)).
		WithArgs("en", "online", 20, 20).
		WillReturnRows(rows)

	posts, err := r.ListByLocale(context.Background(), "en", 2, 20)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	for i, p := range posts {
		require.Equal(t, "en", p.Locale)
		require.Equal(t, entity.PostStatusOnline, p.Status)
		if i > 0 {
			require.False(t, p.CreatedAt.After(posts[i-1].CreatedAt))
		}
	}
}

func TestPostRepo_List_Unfiltered(t *testing.T) {
	r, mock, _ := newTestRepo(t)
	rows := sqlmock.NewRows(columns)
	postRow(rows, 2, "p-2", "zh", entity.PostStatusOffline, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta(`FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2`)).
		WithArgs(50, 0).
		WillReturnRows(rows)

	posts, err := r.List(context.Background(), 1, 50)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, entity.PostStatusOffline, posts[0].Status)
}

func TestPostRepo_List_PropagatesFault(t *testing.T) {
	r, mock, p := newTestRepo(t)
	boom := errors.New("CONNECTION_CLOSED")
	mock.ExpectQuery(`FROM posts ORDER BY`).WillReturnError(boom)

	_, err := r.List(context.Background(), 1, 50)
	require.ErrorIs(t, err, boom)
	require.Zero(t, p.Invalidations())
}

func TestPostRepo_Count_ReconnectOnce(t *testing.T) {
	r, mock, p := newTestRepo(t)
	q := regexp.QuoteMeta(`SELECT COUNT(*) FROM posts`)
	mock.ExpectQuery(q).WillReturnError(errors.New("CONNECTION_CLOSED"))
	mock.ExpectQuery(q).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(17))

	n, err := r.Count(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 17, n)
	require.Equal(t, 1, p.Invalidations())
}

func TestPostRepo_Count_ZeroWhenBothFail(t *testing.T) {
	r, mock, p := newTestRepo(t)
	q := regexp.QuoteMeta(`SELECT COUNT(*) FROM posts`)
	mock.ExpectQuery(q).WillReturnError(errors.New("CONNECTION_CLOSED"))
	mock.ExpectQuery(q).WillReturnError(errors.New("CONNECTION_CLOSED"))

	n, err := r.Count(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Equal(t, 1, p.Invalidations())
}
