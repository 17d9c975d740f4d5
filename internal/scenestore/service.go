package scenestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/inamate/genscene/internal/db"
	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/typeid"
)

var (
	ErrNotFound  = errors.New("scene not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("snapshot version conflict")
)

// TxStarter is satisfied by *pgxpool.Pool.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Service struct {
	pool    TxStarter
	queries *db.Queries
}

func NewService(pool TxStarter, queries *db.Queries) *Service {
	return &Service{pool: pool, queries: queries}
}

type Scene struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type Snapshot struct {
	ID       string          `json:"id"`
	SceneID  string          `json:"sceneId"`
	Version  int             `json:"version"`
	Document *document.Scene `json:"document"`
}

// Create stores a new scene and its first snapshot. A nil doc seeds the
// empty scene.
func (s *Service) Create(ctx context.Context, name, ownerID string, doc *document.Scene) (*Scene, error) {
	if doc == nil {
		doc = document.NewEmptyScene()
	}
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	q := s.queries.WithTx(tx)

	dbScene, err := q.CreateScene(ctx, db.CreateSceneParams{
		ID:      typeid.NewSceneID(),
		Name:    name,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}

	_, err = q.CreateSnapshot(ctx, db.CreateSnapshotParams{
		ID:       typeid.NewSnapshotID(),
		SceneID:  dbScene.ID,
		Version:  1,
		Document: docJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return dbSceneToScene(dbScene), nil
}

func (s *Service) Get(ctx context.Context, sceneID, userID string) (*Scene, error) {
	dbScene, err := s.owned(ctx, sceneID, userID)
	if err != nil {
		return nil, err
	}
	return dbSceneToScene(dbScene), nil
}

func (s *Service) List(ctx context.Context, ownerID string) ([]Scene, error) {
	dbScenes, err := s.queries.ListScenesForOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}

	scenes := make([]Scene, len(dbScenes))
	for i, sc := range dbScenes {
		scenes[i] = *dbSceneToScene(sc)
	}
	return scenes, nil
}

func (s *Service) Delete(ctx context.Context, sceneID, userID string) error {
	if _, err := s.owned(ctx, sceneID, userID); err != nil {
		return err
	}
	return s.queries.DeleteScene(ctx, sceneID)
}

// SaveSnapshot appends doc as the scene's next version.
func (s *Service) SaveSnapshot(ctx context.Context, sceneID string, doc *document.Scene) (*Snapshot, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)
	q := s.queries.WithTx(tx)

	if _, err := q.GetScene(ctx, sceneID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}

	nextVersion := int32(1)
	current, err := q.GetLatestSnapshot(ctx, sceneID)
	switch {
	case err == nil:
		nextVersion = current.Version + 1
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	snap, err := q.CreateSnapshot(ctx, db.CreateSnapshotParams{
		ID:       typeid.NewSnapshotID(),
		SceneID:  sceneID,
		Version:  nextVersion,
		Document: docJSON,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	if err := q.TouchScene(ctx, sceneID); err != nil {
		return nil, fmt.Errorf("touch scene: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &Snapshot{ID: snap.ID, SceneID: sceneID, Version: int(snap.Version), Document: doc}, nil
}

// LatestSnapshot loads and parses the newest stored version of a scene.
func (s *Service) LatestSnapshot(ctx context.Context, sceneID string) (*Snapshot, error) {
	snap, err := s.queries.GetLatestSnapshot(ctx, sceneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	doc, err := document.ParseScene(snap.Document)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", snap.ID, err)
	}
	return &Snapshot{ID: snap.ID, SceneID: snap.SceneID, Version: int(snap.Version), Document: doc}, nil
}

func (s *Service) owned(ctx context.Context, sceneID, userID string) (db.Scene, error) {
	if err := typeid.Validate(sceneID, typeid.PrefixScene); err != nil {
		return db.Scene{}, ErrNotFound
	}
	dbScene, err := s.queries.GetScene(ctx, sceneID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return db.Scene{}, ErrNotFound
		}
		return db.Scene{}, fmt.Errorf("get scene: %w", err)
	}
	if dbScene.OwnerID != userID {
		return db.Scene{}, ErrForbidden
	}
	return dbScene, nil
}

func dbSceneToScene(s db.Scene) *Scene {
	return &Scene{
		ID:        s.ID,
		Name:      s.Name,
		OwnerID:   s.OwnerID,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
