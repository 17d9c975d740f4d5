package collab

import "encoding/json"

type Message struct {
	Type     string          `json:"type"`
	SceneID  string          `json:"sceneId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

const (
	TypeError = "error"

	// Connection
	TypeWelcome = "welcome"

	// Scene sync
	TypeSceneSync    = "scene.sync"
	TypeSceneUpdate  = "scene.update"
	TypeSceneUpdated = "scene.updated"
	TypeSceneAck     = "scene.ack"

	// Preview
	TypeEvalRequest = "eval.request"
	TypeEvalResult  = "eval.result"
	TypeHitRequest  = "hit.request"
	TypeHitResult   = "hit.result"
)

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	Clients  int    `json:"clients"`
}

// SceneSyncPayload carries the room's current scene. It is sent on join
// and broadcast as scene.updated after every accepted update.
type SceneSyncPayload struct {
	Scene   json.RawMessage `json:"scene"`
	Version int64           `json:"version"`
}

type SceneUpdatePayload struct {
	Scene json.RawMessage `json:"scene"`
}

type SceneAckPayload struct {
	Version int64 `json:"version"`
}

type EvalRequestPayload struct {
	Time     float64        `json:"t"`
	Override map[string]any `json:"overrideConfig,omitempty"`
}

type EvalResultPayload struct {
	Time    float64         `json:"t"`
	Version int64           `json:"version"`
	Cached  bool            `json:"cached"`
	Result  json.RawMessage `json:"result"`
}

type HitRequestPayload struct {
	Time float64 `json:"t"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type HitResultPayload struct {
	ObjectID string `json:"objectId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
