// Package protocol defines the structured messages exchanged with the host
// process across the frame boundary.
//
// The transport mechanism is out of scope; only these message contracts
// matter. Inbound and outbound messages are JSON envelopes discriminated by
// a type field.
package protocol

import (
	"encoding/json"
	"fmt"
)

// User is one connected user as reported by the host lobby.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// PlayerSeat mirrors a seated player inside a state snapshot.
type PlayerSeat struct {
	Position int    `json:"position"`
	UserID   string `json:"userID,omitempty"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
}

// Snapshot is the authoritative full description of game state at one
// sequence number.
type Snapshot struct {
	Players      []PlayerSeat    `json:"players"`
	Settings     map[string]any  `json:"settings,omitempty"`
	FlowPosition json.RawMessage `json:"position,omitempty"`
	Board        json.RawMessage `json:"board,omitempty"`
}

// Inbound is a message from the host.
type Inbound interface {
	inbound()
}

// UsersUpdate reports the current lobby roster.
type UsersUpdate struct {
	Users []User `json:"users"`
}

// SettingsUpdate reports changed game settings.
type SettingsUpdate struct {
	Settings map[string]any `json:"settings"`
}

// StateUpdate carries an authoritative snapshot. The finished variant
// additionally carries winners and freezes the active-player set.
type StateUpdate struct {
	Sequence      int      `json:"sequencePosition"`
	Snapshot      Snapshot `json:"snapshot"`
	ActivePlayers []int    `json:"activePlayers"`
	Finished      bool     `json:"-"`
	Winners       []int    `json:"winners,omitempty"`
	ReadOnly      bool     `json:"readOnly,omitempty"`
}

// MoveAck correlates a host response with a submitted move.
type MoveAck struct {
	CorrelationID int64  `json:"correlationId"`
	Error         string `json:"error,omitempty"`
}

func (UsersUpdate) inbound()    {}
func (SettingsUpdate) inbound() {}
func (StateUpdate) inbound()    {}
func (MoveAck) inbound()        {}

// Inbound message type tags.
const (
	TypeUsersUpdate    = "usersUpdate"
	TypeSettingsUpdate = "settingsUpdate"
	TypeStateUpdate    = "stateUpdate"
	TypeStateFinished  = "stateFinished"
	TypeMoveAck        = "moveAck"
)

type envelope struct {
	Type string `json:"type"`
}

// DecodeInbound parses one host message.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode message envelope: %w", err)
	}
	switch env.Type {
	case TypeUsersUpdate:
		var msg UsersUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeSettingsUpdate:
		var msg SettingsUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	case TypeStateUpdate, TypeStateFinished:
		var msg StateUpdate
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		msg.Finished = env.Type == TypeStateFinished
		return msg, nil
	case TypeMoveAck:
		var msg MoveAck
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// Outbound is a message to the host.
type Outbound interface {
	outboundType() string
}

// Ready announces the frame has mounted. Sent once per session.
type Ready struct{}

// SubMove is one move inside a batched move message.
type SubMove struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// MoveMessage submits a completed move, or a batch of them.
type MoveMessage struct {
	CorrelationID int64          `json:"correlationId"`
	Name          string         `json:"name,omitempty"`
	Args          map[string]any `json:"args,omitempty"`
	Moves         []SubMove      `json:"moves,omitempty"`
}

// Start asks the host to begin the game.
type Start struct {
	CorrelationID int64 `json:"correlationId"`
}

// UpdateSettings proposes new game settings.
type UpdateSettings struct {
	CorrelationID int64          `json:"correlationId"`
	Settings      map[string]any `json:"settings"`
}

// PlayerOperation is one seat mutation inside an UpdatePlayers message.
type PlayerOperation struct {
	Op       string `json:"type"`
	Position int    `json:"position"`
	UserID   string `json:"userID,omitempty"`
	Color    string `json:"color,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Player operation kinds.
const (
	OpSeat    = "seat"
	OpUnseat  = "unseat"
	OpUpdate  = "update"
	OpReserve = "reserve"
)

// UpdatePlayers applies a batch of seat operations.
type UpdatePlayers struct {
	CorrelationID int64             `json:"correlationId"`
	Operations    []PlayerOperation `json:"operations"`
}

// UpdateSelfPlayer changes the acting player's own name and color.
type UpdateSelfPlayer struct {
	CorrelationID int64  `json:"correlationId"`
	Color         string `json:"color,omitempty"`
	Name          string `json:"name,omitempty"`
}

func (Ready) outboundType() string            { return "ready" }
func (MoveMessage) outboundType() string      { return "move" }
func (Start) outboundType() string            { return "start" }
func (UpdateSettings) outboundType() string   { return "updateSettings" }
func (UpdatePlayers) outboundType() string    { return "updatePlayers" }
func (UpdateSelfPlayer) outboundType() string { return "updateSelfPlayer" }

// EncodeOutbound serializes one message with its type tag.
func EncodeOutbound(msg Outbound) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.outboundType(), err)
	}
	// Splice the discriminator into the object.
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.outboundType(), err)
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	fields["type"] = msg.outboundType()
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.outboundType(), err)
	}
	return data, nil
}
