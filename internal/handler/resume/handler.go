package resume

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/prepdeck/backend/internal/model/interview"
	resumeModel "github.com/prepdeck/backend/internal/model/resume"
	"github.com/prepdeck/backend/internal/store"
	"github.com/prepdeck/backend/pkg/utils"
)

// Store is the subset of persistence the resume handler needs.
type Store interface {
	CreateResume(ctx context.Context, r *resumeModel.Resume) error
	GetResume(ctx context.Context, id string) (resumeModel.Resume, error)
}

// Handler accepts extracted resume text and serves it back by id. PDF
// parsing happens upstream; only the text crosses this boundary.
type Handler struct {
	store Store
}

// New creates the resume handler.
func New(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts resume routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/resumes", h.handleUpload)
	r.Get("/resumes/{resumeID}", h.handleGet)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filename    string   `json:"filename"`
		TextContent string   `json:"textContent"`
		Skills      []string `json:"skills"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(payload.TextContent) == "" {
		utils.RespondError(w, http.StatusBadRequest, "textContent is required")
		return
	}

	res := resumeModel.Resume{
		Filename:    payload.Filename,
		TextContent: payload.TextContent,
		Skills:      interview.StringSlice(payload.Skills),
	}
	if err := h.store.CreateResume(r.Context(), &res); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to store resume")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]string{
		"resumeId": res.ID,
		"message":  "resume processed",
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	resumeID := chi.URLParam(r, "resumeID")

	res, err := h.store.GetResume(r.Context(), resumeID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrResumeNotFound) {
			status = http.StatusNotFound
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, res)
}
