package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/engine"
	"github.com/inamate/genscene/internal/evaluator"
)

// PlaygroundSceneID names the shared room that starts from the sample
// scene and is never persisted.
const PlaygroundSceneID = "playground"

const saveInterval = 30 * time.Second

// SceneLoader returns the stored scene for a room.
type SceneLoader func(ctx context.Context, sceneID string) (*document.Scene, error)

// SceneSaver persists a room's scene.
type SceneSaver func(ctx context.Context, sceneID string, scene *document.Scene) error

// Evaluator is satisfied by *evaluator.Service.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluator.Request) (*evaluator.Response, error)
}

type Room struct {
	sceneID string
	clients map[string]*Client // clientID -> client

	mu      sync.Mutex
	scene   *document.Scene
	version int64
	dirty   bool
}

func NewRoom(sceneID string, scene *document.Scene) *Room {
	return &Room{
		sceneID: sceneID,
		clients: make(map[string]*Client),
		scene:   scene,
	}
}

// snapshot returns the current scene and version. The scene is replaced,
// never mutated, so callers may read it without the lock.
func (r *Room) snapshot() (*document.Scene, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scene, r.version
}

func (r *Room) replace(scene *document.Scene) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene = scene
	r.version++
	r.dirty = r.sceneID != PlaygroundSceneID
	return r.version
}

// takeDirty returns the scene if it has unsaved changes and marks it clean.
func (r *Room) takeDirty() (*document.Scene, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil, false
	}
	r.dirty = false
	return r.scene, true
}

func (r *Room) markDirty() {
	r.mu.Lock()
	r.dirty = true
	r.mu.Unlock()
}

type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // sceneID -> room
	register   chan *Client
	unregister chan *Client
	stop       chan struct{}
	done       chan struct{}

	load   SceneLoader
	save   SceneSaver
	eval   Evaluator
	logger *slog.Logger
}

func NewHub(load SceneLoader, save SceneSaver, eval Evaluator) *Hub {
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		load:       load,
		save:       save,
		eval:       eval,
		logger:     slog.Default(),
	}
}

func (h *Hub) Run() {
	defer close(h.done)
	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.saveAll()
		case <-h.stop:
			h.saveAll()
			return
		}
	}
}

// Stop saves every dirty scene and ends Run.
func (h *Hub) Stop() {
	close(h.stop)
	<-h.done
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok {
		scene, err := h.loadScene(client.SceneID)
		if err != nil {
			h.mu.Unlock()
			h.logger.Warn("load scene", "error", err, "scene", client.SceneID)
			client.Send(errorMessage("load_failed", "scene could not be loaded"))
			client.closeSend()
			return
		}
		room = NewRoom(client.SceneID, scene)
		h.rooms[client.SceneID] = room
	}
	room.clients[client.ClientID] = client
	count := len(room.clients)
	h.mu.Unlock()

	client.Send(newMessage(TypeWelcome, WelcomePayload{ClientID: client.ClientID, Clients: count}))
	if msg, err := syncMessage(TypeSceneSync, room); err == nil {
		client.Send(msg)
	} else {
		h.logger.Error("encode scene", "error", err, "scene", client.SceneID)
	}

	h.logger.Info("client joined", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.SceneID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := room.clients[client.ClientID]; !ok {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.closeSend()

	empty := len(room.clients) == 0
	if empty {
		delete(h.rooms, client.SceneID)
	}
	h.mu.Unlock()

	if empty {
		h.saveRoom(room)
	}
	h.logger.Info("client left", "user", client.UserID, "scene", client.SceneID)
}

func (h *Hub) loadScene(sceneID string) (*document.Scene, error) {
	if sceneID == PlaygroundSceneID {
		return document.NewSampleScene(), nil
	}
	if h.load == nil {
		return nil, errors.New("no scene loader configured")
	}
	return h.load(context.Background(), sceneID)
}

func (h *Hub) saveRoom(room *Room) {
	if h.save == nil {
		return
	}
	scene, dirty := room.takeDirty()
	if !dirty {
		return
	}
	if err := h.save(context.Background(), room.sceneID, scene); err != nil {
		h.logger.Error("save scene", "error", err, "scene", room.sceneID)
		room.markDirty()
		return
	}
	h.logger.Info("scene saved", "scene", room.sceneID)
}

func (h *Hub) saveAll() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.saveRoom(r)
	}
}

func (h *Hub) room(sceneID string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[sceneID]
	return room, ok
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg *Message) {
	room, ok := h.room(sender.SceneID)
	if !ok {
		return
	}

	switch msg.Type {
	case TypeSceneUpdate:
		h.handleSceneUpdate(sender, room, msg)
	case TypeEvalRequest:
		h.handleEvalRequest(ctx, sender, room, msg)
	case TypeHitRequest:
		h.handleHitRequest(ctx, sender, room, msg)
	default:
		h.logger.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(reply(msg, errorMessage("unknown_type", "unknown message type "+msg.Type)))
	}
}

func (h *Hub) handleSceneUpdate(sender *Client, room *Room, msg *Message) {
	var payload SceneUpdatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		sender.Send(reply(msg, errorMessage("invalid_payload", err.Error())))
		return
	}
	scene, err := document.ParseScene(payload.Scene)
	if err != nil {
		sender.Send(reply(msg, errorMessage("invalid_scene", err.Error())))
		return
	}

	version := room.replace(scene)
	sender.Send(reply(msg, newMessage(TypeSceneAck, SceneAckPayload{Version: version})))

	out, err := syncMessage(TypeSceneUpdated, room)
	if err != nil {
		h.logger.Error("encode scene", "error", err, "scene", room.sceneID)
		return
	}
	out.UserID = sender.UserID
	h.broadcastToRoom(room.sceneID, out, sender.ClientID)
}

func (h *Hub) handleEvalRequest(ctx context.Context, sender *Client, room *Room, msg *Message) {
	var payload EvalRequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		sender.Send(reply(msg, errorMessage("invalid_payload", err.Error())))
		return
	}

	scene, version := room.snapshot()
	resp, err := h.eval.Evaluate(ctx, evaluator.Request{
		Scene:    scene,
		Time:     payload.Time,
		Override: payload.Override,
		Source:   "ws",
	})
	if err != nil {
		sender.Send(reply(msg, evalErrorMessage(err)))
		return
	}

	sender.Send(reply(msg, newMessage(TypeEvalResult, EvalResultPayload{
		Time:    payload.Time,
		Version: version,
		Cached:  resp.Cached,
		Result:  resp.JSON,
	})))
}

func (h *Hub) handleHitRequest(ctx context.Context, sender *Client, room *Room, msg *Message) {
	var payload HitRequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		sender.Send(reply(msg, errorMessage("invalid_payload", err.Error())))
		return
	}

	scene, _ := room.snapshot()
	resp, err := h.eval.Evaluate(ctx, evaluator.Request{Scene: scene, Time: payload.Time, Source: "ws"})
	if err != nil {
		sender.Send(reply(msg, evalErrorMessage(err)))
		return
	}

	hit := engine.HitTest(resp.Result.Objects, payload.X, payload.Y)
	sender.Send(reply(msg, newMessage(TypeHitResult, HitResultPayload{ObjectID: hit})))
}

func (h *Hub) broadcastToRoom(sceneID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[sceneID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func newMessage(typ string, payload any) *Message {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal payload", "error", err, "type", typ)
		data = []byte("null")
	}
	return &Message{Type: typ, Payload: data}
}

func errorMessage(code, message string) *Message {
	return newMessage(TypeError, ErrorPayload{Code: code, Message: message})
}

func evalErrorMessage(err error) *Message {
	if errors.Is(err, engine.ErrInvalidParam) || errors.Is(err, engine.ErrUnsupportedGeometry) {
		return errorMessage("invalid_scene", err.Error())
	}
	slog.Error("evaluate", "error", err)
	return errorMessage("internal", "evaluation failed")
}

// reply echoes the request's seq so clients can match responses.
func reply(req *Message, out *Message) *Message {
	out.Seq = req.Seq
	return out
}

func syncMessage(typ string, room *Room) (*Message, error) {
	scene, version := room.snapshot()
	data, err := json.Marshal(scene)
	if err != nil {
		return nil, err
	}
	return newMessage(typ, SceneSyncPayload{Scene: data, Version: version}), nil
}
