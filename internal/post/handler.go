package post

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/post/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

// Handler contains dependencies for handling post endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// ListPublic lists online posts for ?locale=, defaulting to "en".
func (h *Handler) ListPublic(w http.ResponseWriter, r *http.Request) {
	locale := r.URL.Query().Get("locale")
	if locale == "" {
		locale = "en"
	}
	page, limit := utilities.PageParams(r)
	posts, err := h.svc.ListPublic(r.Context(), locale, page, limit)
	if err != nil {
		h.fail(w, "list posts failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, posts)
}

func (h *Handler) GetPublished(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPublished(r.Context(), r.PathValue("slug"), r.PathValue("locale"))
	if err != nil {
		h.fail(w, "get post failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	page, limit := utilities.PageParams(r)
	posts, err := h.svc.ListAll(r.Context(), page, limit)
	if err != nil {
		h.fail(w, "list posts failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, posts)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("uuid"))
	if err != nil {
		h.fail(w, "get post failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Total(r.Context())
	if err != nil {
		h.fail(w, "count posts failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]int64{"total": n})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entity.Post
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid post payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	p, err := h.svc.Create(r.Context(), &entity.Post{
		Slug:            req.Slug,
		Title:           req.Title,
		Description:     req.Description,
		Content:         req.Content,
		CoverURL:        req.CoverURL,
		AuthorName:      req.AuthorName,
		AuthorAvatarURL: req.AuthorAvatarURL,
		Locale:          req.Locale,
		Status:          req.Status,
		UserUUID:        req.UserUUID,
	})
	if err != nil {
		h.fail(w, "create post failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req entity.PostUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid post payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	p, err := h.svc.Update(r.Context(), r.PathValue("uuid"), req)
	if err != nil {
		h.fail(w, "update post failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "post not found")
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrSlugRequired):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrMissingDSN):
		h.logger.Errorw(msg, "err", err)
		utilities.WriteError(w, http.StatusServiceUnavailable, "database not configured")
	default:
		h.logger.Warnw(msg, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, msg)
	}
}
