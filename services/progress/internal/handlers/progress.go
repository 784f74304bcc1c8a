package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/watch-progress/internal/platform/api"
	"github.com/example/watch-progress/internal/platform/auth"
	"github.com/example/watch-progress/internal/platform/httpserver"
	"github.com/example/watch-progress/internal/watch"
	"github.com/example/watch-progress/services/progress/internal/service"
)

// saveProgressRequest uses pointers so missing numeric fields are detected.
type saveProgressRequest struct {
	MergedIntervals           *[]watch.Interval `json:"mergedIntervals"`
	TotalUniqueWatchedSeconds *float64          `json:"totalUniqueWatchedSeconds"`
	LastKnownPosition         *float64          `json:"lastKnownPosition"`
	ProgressPercentage        *float64          `json:"progressPercentage"`
	ContentDuration           *float64          `json:"contentDuration"`
	// VideoDuration is accepted for older clients.
	VideoDuration *float64 `json:"videoDuration"`
}

var errInvalidInterval = errors.New("invalid interval")

func (req *saveProgressRequest) validate() error {
	if req.ContentDuration == nil {
		req.ContentDuration = req.VideoDuration
	}
	switch {
	case req.MergedIntervals == nil:
		return errors.New("mergedIntervals is required")
	case req.TotalUniqueWatchedSeconds == nil:
		return errors.New("totalUniqueWatchedSeconds must be a number")
	case req.LastKnownPosition == nil:
		return errors.New("lastKnownPosition must be a number")
	case req.ProgressPercentage == nil:
		return errors.New("progressPercentage must be a number")
	case req.ContentDuration == nil:
		return errors.New("contentDuration must be a number")
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"totalUniqueWatchedSeconds", *req.TotalUniqueWatchedSeconds},
		{"lastKnownPosition", *req.LastKnownPosition},
		{"progressPercentage", *req.ProgressPercentage},
		{"contentDuration", *req.ContentDuration},
	} {
		if f.value < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
	}
	for i, iv := range *req.MergedIntervals {
		if !iv.Valid() {
			return fmt.Errorf("%w at index %d", errInvalidInterval, i)
		}
	}
	return nil
}

// GetProgress handles GET /progress/{content_id}
func GetProgress(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}
		contentID := strings.TrimSpace(chi.URLParam(r, "content_id"))
		if contentID == "" {
			api.BadRequest(w, api.CodeMissingID, "content_id is required", rid, nil)
			return
		}

		rec, err := svc.Get(r.Context(), userID, contentID)
		if err != nil {
			log.Error("get progress", zap.String("content_id", contentID), httpserver.RequestIDField(r.Context()), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}

// SaveProgress handles POST /progress/{content_id}. The body carries the
// client's merged view; derived totals are recomputed server-side.
func SaveProgress(svc *service.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}
		contentID := strings.TrimSpace(chi.URLParam(r, "content_id"))
		if contentID == "" {
			api.BadRequest(w, api.CodeMissingID, "content_id is required", rid, nil)
			return
		}

		var req saveProgressRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, api.CodeInvalidPayload, "invalid progress data payload", rid, nil)
			return
		}
		if err := req.validate(); err != nil {
			code := api.CodeInvalidPayload
			if errors.Is(err, errInvalidInterval) {
				code = api.CodeInvalidInterval
			}
			api.BadRequest(w, code, err.Error(), rid, nil)
			return
		}

		rec, err := svc.Save(r.Context(), userID, contentID,
			*req.MergedIntervals, *req.LastKnownPosition, *req.ContentDuration)
		if err != nil {
			log.Error("save progress", zap.String("content_id", contentID), httpserver.RequestIDField(r.Context()), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, rec)
	}
}
