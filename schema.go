package main

import (
	"sync"

	"github.com/invopop/jsonschema"
)

// protocolDoc describes every message on the /ws socket. It exists only to
// be reflected into JSON Schema.
type protocolDoc struct {
	PlayerInput      playerInputDoc      `json:"playerInput" jsonschema:"description=Client to server: held controls and facing angle"`
	PlayerAction     playerActionDoc     `json:"playerAction" jsonschema:"description=Client to server: discrete action such as firing"`
	InitializePlayer InitializePlayerMsg `json:"initializePlayer" jsonschema:"description=Server to client: sent once to a new session"`
	PlayerJoined     PlayerState         `json:"playerJoined"`
	PlayerLeft       PlayerLeftMsg       `json:"playerLeft"`
	GameStateUpdate  []PlayerState       `json:"gameStateUpdate" jsonschema:"description=Server to client: public state of every session once per tick"`
	GameEffect       GameEffectMsg       `json:"gameEffect"`
	PlayerRespawned  PlayerState         `json:"playerRespawned"`
	GamePhaseUpdate  phaseUpdateDoc      `json:"gamePhaseUpdate"`
	RoundSummary     RoundSummary        `json:"roundSummary"`
}

type playerInputDoc struct {
	Keys        []string `json:"keys" jsonschema:"description=Held controls: forward back strafeLeft strafeRight jump (or w s a d and space). An object of name to bool is also accepted."`
	FacingAngle float64  `json:"facingAngle,omitempty" jsonschema:"description=Yaw in radians; 0 faces +Z"`
}

type playerActionDoc struct {
	Action    string `json:"action" jsonschema:"enum=fireMusket,enum=fire_musket"`
	Direction Vec3   `json:"direction" jsonschema:"description=Aim direction; normalized by the server"`
}

type phaseUpdateDoc struct {
	Phase                   string  `json:"phase" jsonschema:"enum=WAITING_FOR_PLAYERS,enum=GAME_COUNTDOWN,enum=ROUND_IN_PROGRESS,enum=ROUND_END,enum=POST_ROUND_STATS"`
	PhaseStartedAt          int64   `json:"phaseStartTime" jsonschema:"description=Unix milliseconds"`
	CountdownDuration       float64 `json:"countdownDuration"`
	RoundDuration           float64 `json:"roundDuration"`
	RoundEndDisplayDuration float64 `json:"roundEndDisplayDuration"`
	PostRoundStatsDuration  float64 `json:"postRoundStatsDuration"`
}

var (
	schemaOnce sync.Once
	schemaDoc  *jsonschema.Schema
)

// ProtocolSchema returns the JSON Schema of the socket protocol
func ProtocolSchema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		r := jsonschema.Reflector{AllowAdditionalProperties: true}
		schemaDoc = r.Reflect(new(protocolDoc))
		schemaDoc.Title = "Winter3D socket protocol"
		schemaDoc.Description = "Messages are JSON envelopes {\"t\": type, \"d\": payload}; each property below is the payload of the message type it names."
	})
	return schemaDoc
}
