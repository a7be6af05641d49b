package feedback

import (
	"context"
	"errors"
	"strings"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/feedback/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/feedback/repo"
	userentity "github.com/ovaphlow/pitchfork/service-content-go/internal/user/entity"
)

var (
	ErrNotFound        = errors.New("feedback not found")
	ErrContentRequired = errors.New("content required")
)

// AuthorLookup resolves many users in one round trip. *userrepo.UserRepo
// satisfies it.
type AuthorLookup interface {
	FindByUUIDs(ctx context.Context, uuids []string) ([]userentity.User, error)
}

type Service struct {
	repo    *repo.FeedbackRepo
	authors AuthorLookup
}

func NewService(r *repo.FeedbackRepo, authors AuthorLookup) *Service {
	return &Service{repo: r, authors: authors}
}

func (s *Service) Submit(ctx context.Context, in *entity.Feedback) (*entity.Feedback, error) {
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return nil, ErrContentRequired
	}
	return s.repo.Insert(ctx, in)
}

func (s *Service) Get(ctx context.Context, id int64) (*entity.Feedback, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *Service) Update(ctx context.Context, id int64, in entity.FeedbackUpdate) (*entity.Feedback, error) {
	f, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, ErrNotFound
	}
	return f, nil
}

func (s *Service) Total(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// ListWithAuthors loads one page of feedback and attaches each author with a
// single batch lookup. Entries whose author no longer exists keep a nil User.
func (s *Service) ListWithAuthors(ctx context.Context, page, limit int) ([]entity.WithAuthor, error) {
	items, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	out := make([]entity.WithAuthor, len(items))
	if len(items) == 0 {
		return out, nil
	}

	seen := make(map[string]struct{}, len(items))
	uuids := make([]string, 0, len(items))
	for _, f := range items {
		if f.UserUUID == "" {
			continue
		}
		if _, ok := seen[f.UserUUID]; ok {
			continue
		}
		seen[f.UserUUID] = struct{}{}
		uuids = append(uuids, f.UserUUID)
	}

	byUUID := map[string]*userentity.User{}
	if len(uuids) > 0 {
		users, err := s.authors.FindByUUIDs(ctx, uuids)
		if err != nil {
			return nil, err
		}
		for i := range users {
			byUUID[users[i].UUID] = &users[i]
		}
	}

	for i, f := range items {
		out[i] = entity.WithAuthor{Feedback: f, User: byUUID[f.UserUUID]}
	}
	return out, nil
}
