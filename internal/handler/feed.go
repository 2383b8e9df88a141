package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkraev/plantbot/internal/domain"
	"github.com/pkraev/plantbot/internal/service"
)

// FeedHandler serves personal iCalendar feeds. The token in the URL is
// the only credential; calendar apps cannot log in.
type FeedHandler struct {
	tokens *service.FeedTokens
	feed   *service.FeedService
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(tokens *service.FeedTokens, feed *service.FeedService) *FeedHandler {
	return &FeedHandler{tokens: tokens, feed: feed}
}

// HandleCalendar serves GET /calendar/{token}. A trailing ".ics" on the
// token is accepted, since calendar apps often require the extension.
func (h *FeedHandler) HandleCalendar(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSuffix(r.PathValue("token"), ".ics")

	tgUserID, err := h.tokens.Verify(token)
	if err != nil {
		http.Error(w, "invalid feed token", http.StatusUnauthorized)
		return
	}

	cal, err := h.feed.BuildCalendar(r.Context(), tgUserID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "unknown user", http.StatusNotFound)
			return
		}
		slog.Error("build calendar failed", "tg_user_id", tgUserID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write([]byte(cal))
}
