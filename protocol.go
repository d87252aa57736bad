package main

import (
	"encoding/json"
	"errors"
	"math"
)

// Client -> Server message types
const (
	MsgPlayerInput  = "playerInput"
	MsgPlayerAction = "playerAction"
)

// Server -> Client message types
const (
	MsgInitializePlayer = "initializePlayer"
	MsgPlayerJoined     = "playerJoined"
	MsgPlayerLeft       = "playerLeft"
	MsgGameStateUpdate  = "gameStateUpdate"
	MsgGameEffect       = "gameEffect"
	MsgPlayerRespawned  = "playerRespawned"
	MsgGamePhaseUpdate  = "gamePhaseUpdate"
	MsgRoundSummary     = "roundSummary"
)

// EffectMusketFire is the gameEffect type for a shot
const EffectMusketFire = "musketFire"

var errMalformed = errors.New("malformed message")

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; the payload is decoded per type
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// PlayerState is the public view of a session, included in every snapshot
type PlayerState struct {
	ID          string  `json:"id" msgpack:"id"`
	Position    Vec3    `json:"position" msgpack:"position"`
	FacingAngle float64 `json:"facingAngle" msgpack:"facingAngle"`
	Health      int     `json:"health" msgpack:"health"`
	IsDead      bool    `json:"isDead" msgpack:"isDead"`
}

// PrivatePlayerState is sent only to the owning client on connect
type PrivatePlayerState struct {
	PlayerState
	VelocityY float64 `json:"verticalVelocity"`
	Airborne  bool    `json:"isAirborne"`
}

type InitializePlayerMsg struct {
	ID           string             `json:"id"`
	InitialState PrivatePlayerState `json:"initialState"`
}

type PlayerLeftMsg struct {
	ID string `json:"id"`
}

// GameEffectMsg describes a visual event such as a musket shot
type GameEffectMsg struct {
	Type      string  `json:"type"`
	ShooterID string  `json:"playerId"`
	Origin    Vec3    `json:"origin"`
	Direction Vec3    `json:"direction"`
	HitID     string  `json:"hitId,omitempty"`
	Distance  float64 `json:"distance,omitempty"`
}

// PhaseUpdateMsg carries the phase, its start time (unix ms) and the phase
// durations in seconds so clients can render countdowns.
type PhaseUpdateMsg struct {
	Phase                   Phase   `json:"phase"`
	PhaseStartedAt          int64   `json:"phaseStartTime"`
	CountdownDuration       float64 `json:"countdownDuration"`
	RoundDuration           float64 `json:"roundDuration"`
	RoundEndDisplayDuration float64 `json:"roundEndDisplayDuration"`
	PostRoundStatsDuration  float64 `json:"postRoundStatsDuration"`
}

// ServerStatus is the summary exposed over HTTP and mirrored to presence
type ServerStatus struct {
	ServerID       string `json:"serverId"`
	Phase          Phase  `json:"phase"`
	PhaseStartedAt int64  `json:"phaseStartTime"`
	RoundID        string `json:"roundId,omitempty"`
	Players        int    `json:"players"`
	Alive          int    `json:"alive"`
	Tick           uint64 `json:"tick"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// PlayerInput is a decoded playerInput message
type PlayerInput struct {
	Keys        InputSet
	FacingAngle float64
	HasAngle    bool
}

// PlayerAction is a decoded playerAction message
type PlayerAction struct {
	Action    InputAction
	Direction Vec3
}

var inputKeyNames = map[string]InputAction{
	"forward":     InputForward,
	"w":           InputForward,
	"back":        InputBack,
	"s":           InputBack,
	"strafeLeft":  InputStrafeLeft,
	"a":           InputStrafeLeft,
	"strafeRight": InputStrafeRight,
	"d":           InputStrafeRight,
	"jump":        InputJump,
	" ":           InputJump,
}

var actionNames = map[string]InputAction{
	"fireMusket":  InputFire,
	"fire_musket": InputFire,
}

// ParseInputKeys accepts either a list of held key names or an object of
// key name to bool. Unknown names and values of the wrong type are ignored.
func ParseInputKeys(raw json.RawMessage) InputSet {
	var set InputSet
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, item := range list {
			var name string
			if json.Unmarshal(item, &name) != nil {
				continue
			}
			if a, ok := inputKeyNames[name]; ok {
				set = set.With(a)
			}
		}
		return set
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0
	}
	for name, v := range obj {
		a, ok := inputKeyNames[name]
		if !ok {
			continue
		}
		var held bool
		if json.Unmarshal(v, &held) == nil && held {
			set = set.With(a)
		}
	}
	return set
}

// DecodePlayerInput parses a playerInput payload field by field so one bad
// field does not discard the rest. A non-object payload is an error.
func DecodePlayerInput(raw json.RawMessage) (PlayerInput, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return PlayerInput{}, errMalformed
	}

	var in PlayerInput
	if keys, ok := fields["keys"]; ok {
		in.Keys = ParseInputKeys(keys)
	}
	for _, name := range []string{"facingAngle", "cameraRotation"} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		var angle float64
		if json.Unmarshal(v, &angle) == nil && finite(angle) {
			in.FacingAngle = math.Remainder(angle, 2*math.Pi)
			in.HasAngle = true
			break
		}
	}
	return in, nil
}

// DecodePlayerAction parses a playerAction payload. Unknown actions and
// directions that are missing or not finite are errors.
func DecodePlayerAction(raw json.RawMessage) (PlayerAction, error) {
	var msg struct {
		Action    string `json:"action"`
		Direction *Vec3  `json:"direction"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return PlayerAction{}, errMalformed
	}
	a, ok := actionNames[msg.Action]
	if !ok {
		return PlayerAction{}, errMalformed
	}
	if msg.Direction == nil || !msg.Direction.IsFinite() {
		return PlayerAction{}, errMalformed
	}
	return PlayerAction{Action: a, Direction: *msg.Direction}, nil
}
