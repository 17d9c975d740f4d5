package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/engine"
	"github.com/inamate/genscene/internal/evaluator"
	"github.com/inamate/genscene/internal/raster"
)

const (
	maxBodySize = 10 << 20 // 10MB
	maxScale    = 16
	maxFrames   = 600
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrNoRaster       = errors.New("object has no raster")
)

// Evaluator is satisfied by *evaluator.Service.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluator.Request) (*evaluator.Response, error)
}

type Handler struct {
	eval Evaluator
}

func NewHandler(eval Evaluator) *Handler {
	return &Handler{eval: eval}
}

// Request selects a raster-producing object of a scene. Time is ignored
// by frame exports, which walk the whole timeline.
type Request struct {
	Scene    *document.Scene `json:"scene"`
	ObjectID string          `json:"objectId"`
	Time     float64         `json:"t"`
	Scale    int             `json:"scale"`
	Override map[string]any  `json:"overrideConfig,omitempty"`
	Name     string          `json:"name"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if req.Scene == nil || req.ObjectID == "" {
		http.Error(w, "scene and objectId are required", http.StatusBadRequest)
		return nil, false
	}
	req.Scale = min(max(req.Scale, 1), maxScale)
	if req.Name == "" {
		req.Name = req.ObjectID
	}
	req.Name = sanitizeName(req.Name)
	return &req, true
}

// ExportRaster handles POST /export/raster and responds with one PNG.
func (h *Handler) ExportRaster(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ras, err := h.rasterAt(r.Context(), req, req.Time)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.png"`, req.Name))
	if err := ras.EncodePNG(w, req.Scale); err != nil {
		slog.Error("encode png", "error", err, "object", req.ObjectID)
	}
}

// ExportFrames handles POST /export/frames. It evaluates the object at
// every frame of the scene's timeline and responds with a zip of
// frame_NNNN.png files.
func (h *Handler) ExportFrames(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	tl := req.Scene.Timeline
	fps := tl.FPS
	if fps <= 0 {
		fps = 24
	}
	frames := int(math.Round(tl.Duration * float64(fps)))
	if frames <= 0 {
		http.Error(w, "timeline has no frames", http.StatusBadRequest)
		return
	}
	if frames > maxFrames {
		http.Error(w, fmt.Sprintf("too many frames: %d (max %d)", frames, maxFrames), http.StatusBadRequest)
		return
	}

	// Evaluate everything before writing so errors can still set a status.
	rasters := make([]*raster.Raster, frames)
	for i := range rasters {
		ras, err := h.rasterAt(r.Context(), req, float64(i)/float64(fps))
		if err != nil {
			h.writeError(w, fmt.Errorf("frame %d: %w", i, err))
			return
		}
		rasters[i] = ras
	}

	slog.Info("frame export", "object", req.ObjectID, "frames", frames, "fps", fps)

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-frames.zip"`, req.Name))

	zw := zip.NewWriter(w)
	for i, ras := range rasters {
		fw, err := zw.Create(fmt.Sprintf("frame_%04d.png", i))
		if err != nil {
			slog.Error("create zip entry", "error", err)
			return
		}
		if err := ras.EncodePNG(fw, req.Scale); err != nil {
			slog.Error("encode frame", "error", err, "frame", i)
			return
		}
	}
	if err := zw.Close(); err != nil {
		slog.Error("close zip", "error", err)
	}
}

func (h *Handler) rasterAt(ctx context.Context, req *Request, t float64) (*raster.Raster, error) {
	resp, err := h.eval.Evaluate(ctx, evaluator.Request{
		Scene:    req.Scene,
		Time:     t,
		Override: req.Override,
		Source:   "export",
	})
	if err != nil {
		return nil, err
	}

	obj, ok := resp.Result.Object(req.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, req.ObjectID)
	}
	if obj.Raster == nil || obj.Raster.Width == 0 || obj.Raster.Height == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRaster, req.ObjectID)
	}
	return obj.Raster, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrObjectNotFound), errors.Is(err, ErrNoRaster):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrInvalidParam), errors.Is(err, engine.ErrUnsupportedGeometry):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error("export", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
