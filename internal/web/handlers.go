package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"once/server/internal/engine"
	"once/server/internal/models"
	"once/server/internal/storage"
)

// StoryReader is the read-side persistence the handlers need directly.
type StoryReader interface {
	GetStoryAggregate(ctx context.Context, id uint, recentScenes int) (*models.StoryAggregate, error)
	ListCodexEntries(ctx context.Context, storyID uint) ([]models.CodexEntry, error)
}

// Handlers exposes the narrative engine over HTTP.
type Handlers struct {
	orchestrator *engine.Orchestrator
	forks        *engine.ForkManager
	reader       StoryReader

	recentSceneCount int
}

func NewHandlers(orchestrator *engine.Orchestrator, forks *engine.ForkManager, reader StoryReader, recentSceneCount int) *Handlers {
	return &Handlers{
		orchestrator:     orchestrator,
		forks:            forks,
		reader:           reader,
		recentSceneCount: recentSceneCount,
	}
}

type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data})
}

// writeError maps engine sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, engine.ErrEmptyAction):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrForbidden), errors.Is(err, engine.ErrForkForbidden):
		status = http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrTurnInFlight), errors.Is(err, engine.ErrStoryNotActive):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrGeneration):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.Printf("[Web] internal error: %v", err)
	}
	writeJSON(w, status, response{Success: false, Error: err.Error()})
}

// userID reads the caller identity. Authentication proper sits in front of
// this service; the header is trusted.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// CreateStoryRequest is the story creation payload.
type CreateStoryRequest struct {
	Title           string `json:"title"`
	StoryIdea       string `json:"story_idea"`
	Genre           string `json:"genre"`
	NarrativeStance string `json:"narrative_stance"`
	StoryMode       string `json:"story_mode"`
	Visibility      string `json:"visibility"`
	AllowForking    bool   `json:"allow_forking"`

	Protagonist        *engine.ProtagonistSeed `json:"protagonist,omitempty"`
	DeferredCharacters []engine.DeferredSeed   `json:"deferred_characters,omitempty"`
}

func (h *Handlers) CreateStory(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.orchestrator.CreateStory(r.Context(), engine.CreateStoryInput{
		UserID:             userID(r),
		Title:              req.Title,
		StoryIdea:          req.StoryIdea,
		Genre:              req.Genre,
		NarrativeStance:    req.NarrativeStance,
		StoryMode:          req.StoryMode,
		Visibility:         req.Visibility,
		AllowForking:       req.AllowForking,
		Protagonist:        req.Protagonist,
		DeferredCharacters: req.DeferredCharacters,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, result)
}

// ContinueStoryRequest is the turn payload.
type ContinueStoryRequest struct {
	StoryID uint   `json:"story_id"`
	Action  string `json:"action"`
}

func (h *Handlers) ContinueStory(w http.ResponseWriter, r *http.Request) {
	var req ContinueStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.orchestrator.ContinueStory(r.Context(), userID(r), req.StoryID, req.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, result)
}

// ForkStoryRequest is the fork payload.
type ForkStoryRequest struct {
	StoryID uint `json:"story_id"`
	SceneID uint `json:"scene_id"`
}

func (h *Handlers) ForkStory(w http.ResponseWriter, r *http.Request) {
	var req ForkStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalid request body"})
		return
	}

	fork, err := h.forks.Fork(r.Context(), userID(r), req.StoryID, req.SceneID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, fork)
}

// GetStory returns the story aggregate plus its codex. Private stories are
// visible only to their owner.
func (h *Handlers) GetStory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{Success: false, Error: "invalid story id"})
		return
	}

	agg, err := h.reader.GetStoryAggregate(r.Context(), uint(id), h.recentSceneCount)
	if err != nil {
		writeError(w, err)
		return
	}
	if agg.Story.Visibility == models.VisibilityPrivate && agg.Story.UserID != userID(r) {
		writeError(w, engine.ErrForbidden)
		return
	}

	codex, err := h.reader.ListCodexEntries(r.Context(), uint(id))
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, map[string]interface{}{
		"story":               agg.Story,
		"scenes":              agg.Scenes,
		"protagonists":        agg.Protagonists,
		"echoes":              agg.Echoes,
		"deferred_characters": agg.Deferred,
		"codex":               codex,
	})
}

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]string{
		"status":  "ok",
		"service": "once-narrative",
	}})
}
