package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-content-go/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

var (
	ErrNotFound          = errors.New("user not found")
	ErrEmailRequired     = errors.New("email required")
	ErrInvalidInviteCode = errors.New("invalid invite code")
	ErrInviteCodeTaken   = errors.New("could not allocate a free invite code")
	ErrAlreadyInvited    = errors.New("user already has an inviter")
	ErrSelfInvite        = errors.New("user cannot invite themselves")
)

const inviteCodeAttempts = 5

// Service wraps UserRepo with the account flows used by handlers.
type Service struct {
	repo   *userrepo.UserRepo
	logger *zap.SugaredLogger
}

func NewService(r *userrepo.UserRepo, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{repo: r, logger: logger}
}

// RegisterInput carries the sign-in details of a new account. InviteCode
// is the code of the inviting user, if any.
type RegisterInput struct {
	Email          string `json:"email"`
	Nickname       string `json:"nickname"`
	AvatarURL      string `json:"avatar_url"`
	Locale         string `json:"locale"`
	SigninType     string `json:"signin_type"`
	SigninIP       string `json:"-"`
	SigninProvider string `json:"signin_provider"`
	SigninOpenID   string `json:"signin_openid"`
	InviteCode     string `json:"invite_code"`
}

// Register creates a user, linking it to the owner of in.InviteCode.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	u := &entity.User{
		Email:          email,
		Nickname:       strings.TrimSpace(in.Nickname),
		AvatarURL:      in.AvatarURL,
		Locale:         in.Locale,
		SigninType:     in.SigninType,
		SigninIP:       in.SigninIP,
		SigninProvider: in.SigninProvider,
		SigninOpenID:   in.SigninOpenID,
	}
	if code := strings.TrimSpace(in.InviteCode); code != "" {
		inviter, err := s.repo.FindByInviteCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if inviter == nil {
			return nil, ErrInvalidInviteCode
		}
		u.InvitedBy = inviter.UUID
	}
	return s.repo.Insert(ctx, u)
}

// Get returns the user with uuid or ErrNotFound.
func (s *Service) Get(ctx context.Context, uuid string) (*entity.User, error) {
	u, err := s.repo.FindByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

// AssignInviteCode gives the user an invite code. A code is assigned at
// most once; later calls return the user unchanged.
func (s *Service) AssignInviteCode(ctx context.Context, uuid string) (*entity.User, error) {
	u, err := s.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if u.InviteCode != "" {
		return u, nil
	}
	for i := 0; i < inviteCodeAttempts; i++ {
		code := utilities.NewInviteCode()
		owner, err := s.repo.FindByInviteCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if owner != nil {
			s.logger.Debugw("invite code collision", "code", code)
			continue
		}
		updated, err := s.repo.UpdateInviteCode(ctx, uuid, code)
		if database.IsUniqueViolation(err) {
			// taken by a concurrent assignment since the lookup
			s.logger.Debugw("invite code collision", "code", code, "err", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if updated == nil {
			return nil, ErrNotFound
		}
		return updated, nil
	}
	return nil, ErrInviteCodeTaken
}

// BindInviter records the owner of code as the user's inviter. The link is
// set once.
func (s *Service) BindInviter(ctx context.Context, uuid, code string) (*entity.User, error) {
	u, err := s.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if u.InvitedBy != "" {
		return nil, ErrAlreadyInvited
	}
	inviter, err := s.repo.FindByInviteCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if inviter == nil {
		return nil, ErrInvalidInviteCode
	}
	if inviter.UUID == uuid {
		return nil, ErrSelfInvite
	}
	updated, err := s.repo.UpdateInvitedBy(ctx, uuid, inviter.UUID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (s *Service) List(ctx context.Context, page, limit int) ([]entity.User, error) {
	return s.repo.List(ctx, page, limit)
}

func (s *Service) Total(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// DailySignups counts sign-ups per UTC day since the given instant.
func (s *Service) DailySignups(ctx context.Context, since time.Time) (map[string]int, error) {
	return s.repo.CountByDateSince(ctx, since)
}
