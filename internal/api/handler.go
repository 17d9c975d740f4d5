package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/engine"
	"github.com/inamate/genscene/internal/evaluator"
	"github.com/inamate/genscene/internal/graph"
	"github.com/inamate/genscene/internal/scenestore"
)

const maxBodySize = 10 << 20 // 10MB

// SceneRepository is satisfied by *scenestore.Service.
type SceneRepository interface {
	Create(ctx context.Context, name, ownerID string, doc *document.Scene) (*scenestore.Scene, error)
	Get(ctx context.Context, sceneID, userID string) (*scenestore.Scene, error)
	List(ctx context.Context, ownerID string) ([]scenestore.Scene, error)
	Delete(ctx context.Context, sceneID, userID string) error
	SaveSnapshot(ctx context.Context, sceneID string, doc *document.Scene) (*scenestore.Snapshot, error)
	LatestSnapshot(ctx context.Context, sceneID string) (*scenestore.Snapshot, error)
}

// Evaluator is satisfied by *evaluator.Service.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluator.Request) (*evaluator.Response, error)
	Rank(scene *document.Scene, t float64) (graph.Ranking, []string, error)
}

type Handler struct {
	scenes SceneRepository
	eval   Evaluator
}

func NewHandler(scenes SceneRepository, eval Evaluator) *Handler {
	return &Handler{scenes: scenes, eval: eval}
}

// Mount registers the API routes on r. r is expected to carry the auth
// middleware already.
func (h *Handler) Mount(r *mux.Router) {
	r.HandleFunc("/sample", h.Sample).Methods("GET")
	r.HandleFunc("/evaluate", h.Evaluate).Methods("POST")
	r.HandleFunc("/hit-test", h.HitTest).Methods("POST")
	r.HandleFunc("/selection-bounds", h.SelectionBounds).Methods("POST")
	r.HandleFunc("/can-connect", h.CanConnect).Methods("POST")
	r.HandleFunc("/rank", h.Rank).Methods("POST")

	if h.scenes == nil {
		return
	}
	r.HandleFunc("/scenes", h.ListScenes).Methods("GET")
	r.HandleFunc("/scenes", h.CreateScene).Methods("POST")
	r.HandleFunc("/scenes/{sceneId}", h.GetScene).Methods("GET")
	r.HandleFunc("/scenes/{sceneId}", h.DeleteScene).Methods("DELETE")
	r.HandleFunc("/scenes/{sceneId}/snapshots", h.SaveSnapshot).Methods("POST")
	r.HandleFunc("/scenes/{sceneId}/snapshots/latest", h.GetLatestSnapshot).Methods("GET")
	r.HandleFunc("/scenes/{sceneId}/render", h.RenderScene).Methods("GET")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scenestore.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, scenestore.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, scenestore.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "snapshot version conflict, retry"})
	case errors.Is(err, engine.ErrNilScene):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scene is required"})
	case errors.Is(err, engine.ErrInvalidParam), errors.Is(err, engine.ErrUnsupportedGeometry):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
