package post

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/internal/post/repo"
)

// sentinel errors for common failure modes
var (
	ErrNotFound      = errors.New("post not found")
	ErrInvalidStatus = errors.New("invalid post status")
	ErrSlugRequired  = errors.New("slug and locale required")
)

// Service encapsulates post rules and depends on a repo.
type Service struct {
	repo *repo.PostRepo
}

func NewService(r *repo.PostRepo) *Service {
	return &Service{repo: r}
}

// Create stores a new post. Status defaults to created.
func (s *Service) Create(ctx context.Context, in *entity.Post) (*entity.Post, error) {
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" || in.Locale == "" {
		return nil, ErrSlugRequired
	}
	if in.Status == "" {
		in.Status = entity.PostStatusCreated
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.Insert(ctx, in)
}

// Update applies a partial update and refreshes updated_at.
func (s *Service) Update(ctx context.Context, uuid string, in entity.PostUpdate) (*entity.Post, error) {
	if in.Status != nil && !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	now := time.Now().UTC()
	in.UpdatedAt = &now
	p, err := s.repo.Update(ctx, uuid, in)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, uuid string) (*entity.Post, error) {
	p, err := s.repo.FindByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	return p, nil
}

// GetPublished returns the post at slug/locale only while it is online.
func (s *Service) GetPublished(ctx context.Context, slug, locale string) (*entity.Post, error) {
	p, err := s.repo.FindBySlugAndLocale(ctx, slug, locale)
	if err != nil {
		return nil, err
	}
	if p == nil || p.Status != entity.PostStatusOnline {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListPublic(ctx context.Context, locale string, page, limit int) ([]entity.Post, error) {
	return s.repo.ListByLocale(ctx, locale, page, limit)
}

func (s *Service) ListAll(ctx context.Context, page, limit int) ([]entity.Post, error) {
	return s.repo.List(ctx, page, limit)
}

func (s *Service) Total(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
