package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// FeedHandler serves the resolution log and the settlement audit trail.
type FeedHandler struct {
	stream domain.EventStream
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewFeedHandler creates a FeedHandler. Either source may be nil, in which
// case its endpoint answers 503.
func NewFeedHandler(stream domain.EventStream, audit domain.AuditStore, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{
		stream: stream,
		audit:  audit,
		logger: logHandler(logger, "feed"),
	}
}

type resolutionEntry struct {
	ID         string            `json:"id"`
	Resolution domain.Resolution `json:"resolution"`
}

type resolutionsResponse struct {
	Resolutions []resolutionEntry `json:"resolutions"`
	// Next is the cursor to pass as after= for the following page.
	Next string `json:"next"`
}

// ListResolutions replays resolutions recorded after a cursor.
// GET /api/resolutions?after=0&limit=50
func (h *FeedHandler) ListResolutions(w http.ResponseWriter, r *http.Request) {
	if h.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "resolution log unavailable")
		return
	}
	q := r.URL.Query()
	after := q.Get("after")
	if after == "" {
		after = "0"
	}
	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	msgs, err := h.stream.StreamRead(r.Context(), domain.StreamResolutions, after, limit)
	if err != nil {
		writeDomainError(w, r, h.logger, "read resolutions", err)
		return
	}

	resp := resolutionsResponse{Resolutions: make([]resolutionEntry, 0, len(msgs)), Next: after}
	for _, m := range msgs {
		resp.Next = m.ID
		var res domain.Resolution
		if err := json.Unmarshal(m.Payload, &res); err != nil {
			h.logger.WarnContext(r.Context(), "skipping malformed resolution",
				slog.String("id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		resp.Resolutions = append(resp.Resolutions, resolutionEntry{ID: m.ID, Resolution: res})
	}
	writeJSON(w, http.StatusOK, resp)
}

type auditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
}

// ListAudit returns settlement audit entries, newest first.
// GET /api/audit?limit=50&offset=0
func (h *FeedHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log unavailable")
		return
	}
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "list audit", err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: entries})
}
