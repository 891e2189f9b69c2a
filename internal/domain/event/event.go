// Package event contains the closed set of game-server telemetry events
// passed between layers.
//
// An Event is a tagged variant: the Type tag determines which payload
// pointer is populated. Events reach this package already parsed; the
// log-line grammar lives with the ingestion collaborators.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags the event variant.
type Type string

// Known event types.
const (
	TypePlayerKill       Type = "player_kill"
	TypePlayerSuicide    Type = "player_suicide"
	TypePlayerConnect    Type = "player_connect"
	TypePlayerDisconnect Type = "player_disconnect"
	TypeRoundStart       Type = "round_start"
	TypeRoundEnd         Type = "round_end"
	TypeMapChange        Type = "map_change"
	TypeTeamWin          Type = "team_win"
	TypeWeaponFire       Type = "weapon_fire"
	TypeWeaponHit        Type = "weapon_hit"
	TypeChat             Type = "chat"
)

// QueueClass partitions events across broker topics by urgency.
type QueueClass string

const (
	ClassPriority QueueClass = "priority"
	ClassStandard QueueClass = "standard"
	ClassBulk     QueueClass = "bulk"
)

// PlayerMeta identifies a single player referenced by an event.
type PlayerMeta struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	SteamID  string `json:"steam_id,omitempty"`
	Team     string `json:"team,omitempty"`
}

// Meta carries optional per-type identity info: single-player events set
// Player, dual-player events set Killer and Victim.
type Meta struct {
	Player *PlayerMeta `json:"player,omitempty"`
	Killer *PlayerMeta `json:"killer,omitempty"`
	Victim *PlayerMeta `json:"victim,omitempty"`
}

// Per-type payloads.

type KillPayload struct {
	KillerID   string `json:"killer_id"`
	VictimID   string `json:"victim_id"`
	Weapon     string `json:"weapon"`
	Headshot   bool   `json:"headshot"`
	KillerTeam string `json:"killer_team,omitempty"`
	VictimTeam string `json:"victim_team,omitempty"`
}

type SuicidePayload struct {
	PlayerID string `json:"player_id"`
	Weapon   string `json:"weapon,omitempty"`
}

type ConnectPayload struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name,omitempty"`
	SteamID  string `json:"steam_id,omitempty"`
	Address  string `json:"address,omitempty"`
}

type DisconnectPayload struct {
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason,omitempty"`
}

type RoundStartPayload struct {
	Map string `json:"map,omitempty"`
}

type RoundEndPayload struct {
	WinningTeam string `json:"winning_team,omitempty"`
}

type MapChangePayload struct {
	NewMap string `json:"new_map"`
}

type TeamWinPayload struct {
	Team    string `json:"team"`
	Trigger string `json:"trigger,omitempty"`
}

type WeaponFirePayload struct {
	PlayerID string `json:"player_id"`
	Weapon   string `json:"weapon"`
}

type WeaponHitPayload struct {
	PlayerID string `json:"player_id"`
	Weapon   string `json:"weapon"`
	Damage   int    `json:"damage,omitempty"`
	Hitgroup string `json:"hitgroup,omitempty"`
}

type ChatPayload struct {
	PlayerID string `json:"player_id"`
	Message  string `json:"message"`
	TeamOnly bool   `json:"team_only,omitempty"`
}

// Event is the closed tagged variant flowing through the engine.
// Exactly one payload pointer is non-nil and it must match Type.
type Event struct {
	Type          Type      `json:"type"`
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ServerID      string    `json:"server_id"`
	Timestamp     time.Time `json:"ts"`

	Meta *Meta `json:"meta,omitempty"`

	Kill       *KillPayload       `json:"kill,omitempty"`
	Suicide    *SuicidePayload    `json:"suicide,omitempty"`
	Connect    *ConnectPayload    `json:"connect,omitempty"`
	Disconnect *DisconnectPayload `json:"disconnect,omitempty"`
	RoundStart *RoundStartPayload `json:"round_start,omitempty"`
	RoundEnd   *RoundEndPayload   `json:"round_end,omitempty"`
	MapChange  *MapChangePayload  `json:"map_change,omitempty"`
	TeamWin    *TeamWinPayload    `json:"team_win,omitempty"`
	WeaponFire *WeaponFirePayload `json:"weapon_fire,omitempty"`
	WeaponHit  *WeaponHitPayload  `json:"weapon_hit,omitempty"`
	Chat       *ChatPayload       `json:"chat,omitempty"`
}

// payloadSet reports which payload pointers are populated.
func (e *Event) payloadSet() map[Type]bool {
	return map[Type]bool{
		TypePlayerKill:       e.Kill != nil,
		TypePlayerSuicide:    e.Suicide != nil,
		TypePlayerConnect:    e.Connect != nil,
		TypePlayerDisconnect: e.Disconnect != nil,
		TypeRoundStart:       e.RoundStart != nil,
		TypeRoundEnd:         e.RoundEnd != nil,
		TypeMapChange:        e.MapChange != nil,
		TypeTeamWin:          e.TeamWin != nil,
		TypeWeaponFire:       e.WeaponFire != nil,
		TypeWeaponHit:        e.WeaponHit != nil,
		TypeChat:             e.Chat != nil,
	}
}

// Validate enforces the tagged-variant invariant: a known type tag, a
// server id, and exactly the payload matching the tag.
func (e *Event) Validate() error {
	set := e.payloadSet()
	own, known := set[e.Type]
	if !known {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.ServerID == "" {
		return fmt.Errorf("%w: missing server_id", ErrInvalidEvent)
	}
	if !own {
		return fmt.Errorf("%w: missing %s payload", ErrInvalidEvent, e.Type)
	}
	for t, present := range set {
		if present && t != e.Type {
			return fmt.Errorf("%w: %s event carries %s payload", ErrInvalidEvent, e.Type, t)
		}
	}
	return nil
}

// QueueClass maps the event type to its broker class: composite and
// outcome events are priority, lifecycle events standard, chatter bulk.
func (e *Event) QueueClass() QueueClass {
	switch e.Type {
	case TypePlayerKill, TypePlayerSuicide, TypeTeamWin:
		return ClassPriority
	case TypeWeaponFire, TypeWeaponHit, TypeChat:
		return ClassBulk
	default:
		return ClassStandard
	}
}

// Encode serializes the event for the broker boundary.
func (e *Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.EventID, err)
	}
	return b, nil
}

// Decode deserializes a broker payload back into an Event.
func Decode(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return e, nil
}

// New builds an event skeleton with a fresh EventID and timestamp. The
// caller attaches the payload matching typ.
func New(typ Type, serverID string) Event {
	return Event{
		Type:      typ,
		EventID:   uuid.NewString(),
		ServerID:  serverID,
		Timestamp: time.Now().UTC(),
	}
}

// NewKill builds a player-kill event.
func NewKill(serverID string, p KillPayload) Event {
	e := New(TypePlayerKill, serverID)
	e.Kill = &p
	return e
}

// NewSuicide builds a player-suicide event.
func NewSuicide(serverID string, p SuicidePayload) Event {
	e := New(TypePlayerSuicide, serverID)
	e.Suicide = &p
	return e
}
