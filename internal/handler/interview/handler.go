package interview

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	interviewModel "github.com/prepdeck/backend/internal/model/interview"
	"github.com/prepdeck/backend/internal/store"
	"github.com/prepdeck/backend/pkg/utils"
)

// Store is the read surface the REST handler needs.
type Store interface {
	GetInterview(ctx context.Context, id string) (interviewModel.Interview, error)
	Transcript(ctx context.Context, interviewID string) ([]interviewModel.Turn, error)
}

// Handler serves stored interviews over REST. Live turn-taking happens on
// the websocket channel; this is the read-only record.
type Handler struct {
	store Store
}

// New creates the interview read handler.
func New(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts interview routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/interviews/{interviewID}", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "interviewID")

	iv, err := h.store.GetInterview(r.Context(), interviewID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrInterviewNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	turns, err := h.store.Transcript(r.Context(), interviewID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"interview": iv,
		"turns":     turns,
	})
}
