package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/huddle/internal/domain"
)

// Server-to-client event types.
const (
	EventConnected        = "connected"
	EventAck              = "ack"
	EventError            = "error"
	EventPong             = "pong"
	EventWhoAmI           = "whoami"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventPendingApproval  = "pending-approval"
	EventApprovalGranted  = "approval-granted"
	EventApprovalDenied   = "approval-denied"
	EventMuteAll          = "admin-mute-all"
	EventPermissionUpdate = "admin-permission-update"
	EventSettingsUpdated  = "room-settings-updated"
	EventChatMessage      = "chat-message"
)

// SignalKind is one of the relayed WebRTC negotiation messages.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// PayloadKey is the field name the relayed payload travels under.
func (k SignalKind) PayloadKey() string {
	switch k {
	case SignalOffer:
		return "offer"
	case SignalAnswer:
		return "answer"
	default:
		return "candidate"
	}
}

// MemberEvent announces arrivals, departures and approval requests.
type MemberEvent struct {
	SocketID  domain.ConnID `json:"socketId"`
	Username  string        `json:"username"`
	Timestamp int64         `json:"timestamp"`
}

func NewMemberEvent(conn domain.ConnID, username string, at time.Time) MemberEvent {
	return MemberEvent{SocketID: conn, Username: username, Timestamp: at.UnixMilli()}
}

type DeniedEvent struct {
	RoomID domain.RoomID `json:"roomId"`
	Reason string        `json:"reason,omitempty"`
}

type PermissionEvent struct {
	CanAudio bool `json:"canAudio"`
	CanVideo bool `json:"canVideo"`
}

// SignalEvent is what the target of a relayed message receives. The payload
// is forwarded byte for byte under the kind's key.
type SignalEvent struct {
	Kind    SignalKind
	From    domain.ConnID
	Payload json.RawMessage
}

func (e SignalEvent) MarshalJSON() ([]byte, error) {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return json.Marshal(map[string]any{
		"from":              e.From,
		e.Kind.PayloadKey(): payload,
	})
}

// Admission is the room snapshot handed to a newly admitted connection.
type Admission struct {
	RoomID        domain.RoomID           `json:"roomId"`
	Participants  []domain.User           `json:"participants"`
	Messages      []domain.ChatMessage    `json:"messages"`
	AdminUsername string                  `json:"adminUsername"`
	Settings      domain.Settings         `json:"roomSettings"`
	IsAdmin       bool                    `json:"isAdmin"`
	Pending       []domain.PendingRequest `json:"pendingRequests,omitempty"`
}
