package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx runs the queries inside tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

type Scene struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SceneSnapshot struct {
	ID        string
	SceneID   string
	Version   int32
	Document  []byte
	CreatedAt time.Time
}

type CreateSceneParams struct {
	ID      string
	Name    string
	OwnerID string
}

const createScene = `
INSERT INTO scenes (id, name, owner_id) VALUES ($1, $2, $3)
RETURNING id, name, owner_id, created_at, updated_at`

func (q *Queries) CreateScene(ctx context.Context, arg CreateSceneParams) (Scene, error) {
	row := q.db.QueryRow(ctx, createScene, arg.ID, arg.Name, arg.OwnerID)
	var s Scene
	err := row.Scan(&s.ID, &s.Name, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const getScene = `
SELECT id, name, owner_id, created_at, updated_at FROM scenes WHERE id = $1`

func (q *Queries) GetScene(ctx context.Context, id string) (Scene, error) {
	row := q.db.QueryRow(ctx, getScene, id)
	var s Scene
	err := row.Scan(&s.ID, &s.Name, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

const listScenesForOwner = `
SELECT id, name, owner_id, created_at, updated_at FROM scenes
WHERE owner_id = $1 ORDER BY updated_at DESC`

func (q *Queries) ListScenesForOwner(ctx context.Context, ownerID string) ([]Scene, error) {
	rows, err := q.db.Query(ctx, listScenesForOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Scene
	for rows.Next() {
		var s Scene
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const deleteScene = `DELETE FROM scenes WHERE id = $1`

func (q *Queries) DeleteScene(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, deleteScene, id)
	return err
}

const touchScene = `UPDATE scenes SET updated_at = now() WHERE id = $1`

func (q *Queries) TouchScene(ctx context.Context, id string) error {
	_, err := q.db.Exec(ctx, touchScene, id)
	return err
}

type CreateSnapshotParams struct {
	ID       string
	SceneID  string
	Version  int32
	Document []byte
}

const createSnapshot = `
INSERT INTO scene_snapshots (id, scene_id, version, document) VALUES ($1, $2, $3, $4)
RETURNING id, scene_id, version, document, created_at`

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (SceneSnapshot, error) {
	row := q.db.QueryRow(ctx, createSnapshot, arg.ID, arg.SceneID, arg.Version, arg.Document)
	var s SceneSnapshot
	err := row.Scan(&s.ID, &s.SceneID, &s.Version, &s.Document, &s.CreatedAt)
	return s, err
}

const getLatestSnapshot = `
SELECT id, scene_id, version, document, created_at FROM scene_snapshots
WHERE scene_id = $1 ORDER BY version DESC LIMIT 1`

func (q *Queries) GetLatestSnapshot(ctx context.Context, sceneID string) (SceneSnapshot, error) {
	row := q.db.QueryRow(ctx, getLatestSnapshot, sceneID)
	var s SceneSnapshot
	err := row.Scan(&s.ID, &s.SceneID, &s.Version, &s.Document, &s.CreatedAt)
	return s, err
}
