package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/inamate/genscene/internal/auth"
	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/evaluator"
)

type createSceneRequest struct {
	Name  string          `json:"name"`
	Scene *document.Scene `json:"scene,omitempty"`
}

func (h *Handler) CreateScene(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createSceneRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	scene, err := h.scenes.Create(r.Context(), req.Name, userID, req.Scene)
	if err != nil {
		slog.Error("create scene failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, scene)
}

func (h *Handler) GetScene(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sceneID := mux.Vars(r)["sceneId"]

	scene, err := h.scenes.Get(r.Context(), sceneID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, scene)
}

func (h *Handler) ListScenes(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	scenes, err := h.scenes.List(r.Context(), userID)
	if err != nil {
		slog.Error("list scenes failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, scenes)
}

func (h *Handler) DeleteScene(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sceneID := mux.Vars(r)["sceneId"]

	if err := h.scenes.Delete(r.Context(), sceneID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sceneID := mux.Vars(r)["sceneId"]

	if _, err := h.scenes.Get(r.Context(), sceneID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	var doc document.Scene
	if !decodeBody(w, r, &doc) {
		return
	}

	snap, err := h.scenes.SaveSnapshot(r.Context(), sceneID, &doc)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": snap.ID, "version": snap.Version})
}

func (h *Handler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sceneID := mux.Vars(r)["sceneId"]

	if _, err := h.scenes.Get(r.Context(), sceneID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	snap, err := h.scenes.LatestSnapshot(r.Context(), sceneID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

// RenderScene handles GET /scenes/{sceneId}/render?t=. It evaluates the
// latest stored snapshot.
func (h *Handler) RenderScene(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sceneID := mux.Vars(r)["sceneId"]

	t := 0.0
	if raw := r.URL.Query().Get("t"); raw != "" {
		var err error
		if t, err = strconv.ParseFloat(raw, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid t"})
			return
		}
	}

	if _, err := h.scenes.Get(r.Context(), sceneID, userID); err != nil {
		handleServiceError(w, err)
		return
	}
	snap, err := h.scenes.LatestSnapshot(r.Context(), sceneID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp, err := h.eval.Evaluate(r.Context(), evaluator.Request{Scene: snap.Document, Time: t, Source: "http"})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeResult(w, resp)
}
