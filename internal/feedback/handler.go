package feedback

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/internal/feedback/entity"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type submitRequest struct {
	UserUUID string `json:"user_uuid"`
	Content  string `json:"content"`
	Rating   int    `json:"rating"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid feedback payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	f, err := h.svc.Submit(r.Context(), &entity.Feedback{
		UserUUID: req.UserUUID,
		Content:  req.Content,
		Rating:   req.Rating,
	})
	if err != nil {
		h.fail(w, "submit feedback failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, f)
}

// List returns a page of feedback with authors attached.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := utilities.PageParams(r)
	items, err := h.svc.ListWithAuthors(r.Context(), page, limit)
	if err != nil {
		h.fail(w, "list feedbacks failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	f, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get feedback failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req entity.FeedbackUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	f, err := h.svc.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update feedback failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Total(r.Context())
	if err != nil {
		h.fail(w, "count feedbacks failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]int64{"total": n})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utilities.WriteError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "feedback not found")
	case errors.Is(err, ErrContentRequired):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrMissingDSN):
		h.logger.Errorw(msg, "err", err)
		utilities.WriteError(w, http.StatusServiceUnavailable, "database not configured")
	default:
		h.logger.Warnw(msg, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, msg)
	}
}
