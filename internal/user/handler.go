package user

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-content-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-content-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for user operations.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.SigninIP = clientIP(r)
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), r.PathValue("uuid"))
	if err != nil {
		h.fail(w, "get user failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, limit := utilities.PageParams(r)
	users, err := h.svc.List(r.Context(), page, limit)
	if err != nil {
		h.fail(w, "list users failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Total(r.Context())
	if err != nil {
		h.fail(w, "count users failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]int64{"total": n})
}

// Stats returns daily sign-up counts. since accepts YYYY-MM-DD or RFC 3339
// and defaults to 30 days ago.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	since := time.Now().UTC().AddDate(0, 0, -30).Truncate(24 * time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			t, err = time.Parse(time.RFC3339, v)
		}
		if err != nil {
			utilities.WriteError(w, http.StatusBadRequest, "invalid since")
			return
		}
		since = t
	}
	counts, err := h.svc.DailySignups(r.Context(), since)
	if err != nil {
		h.fail(w, "user stats failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) AssignInviteCode(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.AssignInviteCode(r.Context(), r.PathValue("uuid"))
	if err != nil {
		h.fail(w, "assign invite code failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}

type bindInviterRequest struct {
	InviteCode string `json:"invite_code"`
}

func (h *Handler) BindInviter(w http.ResponseWriter, r *http.Request) {
	var req bindInviterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utilities.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	u, err := h.svc.BindInviter(r.Context(), r.PathValue("uuid"), req.InviteCode)
	if err != nil {
		h.fail(w, "bind inviter failed", err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utilities.WriteError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, ErrEmailRequired), errors.Is(err, ErrInvalidInviteCode), errors.Is(err, ErrSelfInvite):
		utilities.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyInvited), errors.Is(err, ErrInviteCodeTaken):
		utilities.WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrMissingDSN):
		h.logger.Errorw(msg, "err", err)
		utilities.WriteError(w, http.StatusServiceUnavailable, "database not configured")
	default:
		h.logger.Warnw(msg, "err", err)
		utilities.WriteError(w, http.StatusInternalServerError, msg)
	}
}

func clientIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		first, _, _ := strings.Cut(v, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
