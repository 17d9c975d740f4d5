package api

import (
	"cmp"
	"math"
	"net/http"
	"slices"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/engine"
	"github.com/inamate/genscene/internal/evaluator"
)

type evaluateRequest struct {
	Scene    *document.Scene `json:"scene"`
	Time     float64         `json:"t"`
	Override map[string]any  `json:"overrideConfig,omitempty"`
}

type hitTestRequest struct {
	evaluateRequest
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type selectionBoundsRequest struct {
	evaluateRequest
	IDs []string `json:"ids"`
}

type canConnectRequest struct {
	Scene    *document.Scene `json:"scene"`
	Depender string          `json:"depender"`
	Dependee string          `json:"dependee"`
}

// rankEntry reports a null rank for objects caught in a dependency cycle.
type rankEntry struct {
	ID     string   `json:"id"`
	Rank   *float64 `json:"rank"`
	Cyclic bool     `json:"cyclic,omitempty"`
}

func writeResult(w http.ResponseWriter, resp *evaluator.Response) {
	cacheStatus := "miss"
	if resp.Cached {
		cacheStatus = "hit"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", cacheStatus)
	w.WriteHeader(http.StatusOK)
	w.Write(resp.JSON)
}

func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request, req evaluateRequest) (*evaluator.Response, bool) {
	resp, err := h.eval.Evaluate(r.Context(), evaluator.Request{
		Scene:    req.Scene,
		Time:     req.Time,
		Override: req.Override,
		Source:   "http",
	})
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	return resp, true
}

// Sample handles GET /sample.
func (h *Handler) Sample(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, document.NewSampleScene())
}

// Evaluate handles POST /evaluate.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, ok := h.evaluate(w, r, req)
	if !ok {
		return
	}
	writeResult(w, resp)
}

// HitTest handles POST /hit-test. objectId is empty on a miss.
func (h *Handler) HitTest(w http.ResponseWriter, r *http.Request) {
	var req hitTestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, ok := h.evaluate(w, r, req.evaluateRequest)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"objectId": engine.HitTest(resp.Result.Objects, req.X, req.Y)})
}

// SelectionBounds handles POST /selection-bounds.
func (h *Handler) SelectionBounds(w http.ResponseWriter, r *http.Request) {
	var req selectionBoundsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, ok := h.evaluate(w, r, req.evaluateRequest)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, engine.SelectionBounds(resp.Result.Objects, req.IDs))
}

// CanConnect handles POST /can-connect.
func (h *Handler) CanConnect(w http.ResponseWriter, r *http.Request) {
	var req canConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scene == nil {
		handleServiceError(w, engine.ErrNilScene)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": engine.CanConnect(req.Scene, req.Depender, req.Dependee)})
}

// Rank handles POST /rank. Objects are listed in evaluation order.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Scene == nil {
		handleServiceError(w, engine.ErrNilScene)
		return
	}

	ranking, warnings, err := h.eval.Rank(req.Scene, req.Time)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	ids := make([]string, 0, len(ranking.Ranks))
	for id := range ranking.Ranks {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(ranking.Rank(a), ranking.Rank(b)), cmp.Compare(a, b))
	})

	order := make([]rankEntry, len(ids))
	for i, id := range ids {
		order[i] = rankEntry{ID: id}
		if rank := ranking.Rank(id); math.IsInf(rank, 1) {
			order[i].Cyclic = true
		} else {
			order[i].Rank = &rank
		}
	}
	if warnings == nil {
		warnings = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order, "warnings": warnings})
}
