package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/inamate/genscene/internal/cache"
	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/engine"
	"github.com/inamate/genscene/internal/graph"
	"github.com/inamate/genscene/internal/metrics"
)

// ResultCache stores serialized render results. *cache.Store satisfies it.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
}

// Assets reports font readiness. Generation must change whenever Ready
// could answer differently.
type Assets interface {
	Ready(assetID string) bool
	Generation() uint64
}

type Service struct {
	cache   ResultCache
	metrics *metrics.Metrics
	assets  Assets
	logger  *slog.Logger
}

type Option func(*Service)

func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAssets(a Assets) Option {
	return func(s *Service) { s.assets = a }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Request struct {
	Scene    *document.Scene
	Time     float64
	Override map[string]any
	// Source labels the caller in metrics, e.g. "http" or "ws".
	Source string
}

type Response struct {
	Result *engine.RenderResult
	// JSON is the serialized Result.
	JSON   []byte
	Cached bool
}

// Evaluate runs the scene through the engine, consulting the result cache
// when one is configured. Cache failures are logged and never fail the
// evaluation.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Response, error) {
	if req.Scene == nil {
		return nil, engine.ErrNilScene
	}

	key := s.cacheKey(req)
	if key != "" {
		if resp, ok := s.lookup(ctx, key); ok {
			return resp, nil
		}
	}

	start := time.Now()
	res, err := engine.Evaluate(req.Scene, req.Time, s.options(req.Override))
	warnings := 0
	if res != nil {
		warnings = len(res.Warnings)
	}
	s.metrics.ObserveEvaluation(req.Source, time.Since(start), warnings, err)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	if key != "" {
		if err := s.cache.Set(ctx, key, data); err != nil {
			s.logger.Warn("store render result", "error", err)
		}
	}
	return &Response{Result: res, JSON: data}, nil
}

// Rank orders the expanded scene by dependency.
func (s *Service) Rank(scene *document.Scene, t float64) (graph.Ranking, []string, error) {
	return engine.RankScene(scene, t, s.options(nil))
}

func (s *Service) options(override map[string]any) *engine.Options {
	opts := &engine.Options{Override: override, Logger: s.logger}
	if s.assets != nil {
		opts.AssetReady = s.assets.Ready
	}
	return opts
}

func (s *Service) cacheKey(req Request) string {
	if s.cache == nil {
		return ""
	}
	sceneJSON, err := json.Marshal(req.Scene)
	if err != nil {
		s.logger.Warn("marshal scene for cache key", "error", err)
		return ""
	}
	var generation uint64
	if s.assets != nil {
		generation = s.assets.Generation()
	}
	key, err := cache.Key(sceneJSON, req.Time, req.Override, generation)
	if err != nil {
		s.logger.Warn("build cache key", "error", err)
		return ""
	}
	return key
}

func (s *Service) lookup(ctx context.Context, key string) (*Response, bool) {
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("load render result", "error", err)
		}
		s.metrics.CacheMiss()
		return nil, false
	}

	var res engine.RenderResult
	if err := json.Unmarshal(data, &res); err != nil {
		s.logger.Warn("decode cached render result", "error", err)
		s.metrics.CacheMiss()
		return nil, false
	}
	s.metrics.CacheHit()
	return &Response{Result: &res, JSON: data, Cached: true}, true
}
