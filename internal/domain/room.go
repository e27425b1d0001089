package domain

import (
	"slices"
	"time"
)

type RoomID string

// Settings are the admin-controlled switches of a room.
type Settings struct {
	AllowScreenShare   bool `json:"allowScreenShare"`
	RequireApproval    bool `json:"requireApproval"`
	MuteAllOnEntry     bool `json:"muteAllOnEntry"`
	IsRecordingEnabled bool `json:"isRecordingEnabled"`
}

func DefaultSettings() Settings {
	return Settings{AllowScreenShare: true}
}

// Admin is the single connection allowed to run admin operations.
// Token is the browser session token that lets the admin reclaim the room
// from a new connection after a reload.
type Admin struct {
	ConnID   ConnID
	Username string
	Token    string
}

type Participant struct {
	ConnID   ConnID `json:"socketId"`
	Username string `json:"username"`
	IsAudio  bool   `json:"isAudio"`
	IsVideo  bool   `json:"isVideo"`
	Approved bool   `json:"approved"`
}

type PendingRequest struct {
	ConnID      ConnID    `json:"socketId"`
	Username    string    `json:"username"`
	RequestedAt time.Time `json:"requestedAt"`
}

// Room is the state of one meeting. It is not safe for concurrent use.
type Room struct {
	ID        RoomID
	Password  string
	Admin     Admin
	Settings  Settings
	CreatedAt time.Time

	participants map[ConnID]*Participant
	order        []ConnID
	pending      []PendingRequest
}

func NewRoom(id RoomID, admin Admin, settings Settings, password string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Password:     password,
		Admin:        admin,
		Settings:     settings,
		CreatedAt:    now,
		participants: make(map[ConnID]*Participant),
	}
}

func (r *Room) IsAdmin(conn ConnID) bool {
	return r.Admin.ConnID != "" && r.Admin.ConnID == conn
}

// CheckPassword is an exact match; a room without a password admits anyone.
func (r *Room) CheckPassword(supplied string) bool {
	if r.Password == "" {
		return true
	}
	return r.Password == supplied
}

// ReassignAdmin moves admin authority to conn when it presents the admin's
// display name and session token. It reports whether authority moved.
func (r *Room) ReassignAdmin(conn ConnID, username, token string) bool {
	if r.Admin.ConnID == conn || r.Admin.Username != username {
		return false
	}
	if r.Admin.Token == "" || r.Admin.Token != token {
		return false
	}
	r.Admin.ConnID = conn
	r.TakePending(conn)
	return true
}

func (r *Room) Participant(conn ConnID) (Participant, bool) {
	p, ok := r.participants[conn]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (r *Room) HasParticipant(conn ConnID) bool {
	_, ok := r.participants[conn]
	return ok
}

func (r *Room) ParticipantCount() int {
	return len(r.participants)
}

// AddParticipant admits u with audio and video enabled. Adding an existing
// participant returns the stored record unchanged.
func (r *Room) AddParticipant(u User) Participant {
	if p, ok := r.participants[u.ConnID]; ok {
		return *p
	}
	p := &Participant{
		ConnID:   u.ConnID,
		Username: u.Username,
		IsAudio:  true,
		IsVideo:  true,
		Approved: true,
	}
	r.participants[u.ConnID] = p
	r.order = append(r.order, u.ConnID)
	return *p
}

func (r *Room) RemoveParticipant(conn ConnID) (Participant, bool) {
	p, ok := r.participants[conn]
	if !ok {
		return Participant{}, false
	}
	delete(r.participants, conn)
	if i := slices.Index(r.order, conn); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return *p, true
}

// Participants returns copies in join order.
func (r *Room) Participants() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}

// Users is the admission snapshot: identity and display name only.
func (r *Room) Users() []User {
	out := make([]User, 0, len(r.order))
	for _, id := range r.order {
		p := r.participants[id]
		out = append(out, User{ConnID: p.ConnID, Username: p.Username})
	}
	return out
}

// ConnIDs lists participants in join order, skipping except.
func (r *Room) ConnIDs(except ConnID) []ConnID {
	out := make([]ConnID, 0, len(r.order))
	for _, id := range r.order {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}

func (r *Room) SetPermissions(conn ConnID, canAudio, canVideo bool) bool {
	p, ok := r.participants[conn]
	if !ok {
		return false
	}
	p.IsAudio = canAudio
	p.IsVideo = canVideo
	return true
}

func (r *Room) SetAudio(conn ConnID, enabled bool) bool {
	p, ok := r.participants[conn]
	if !ok {
		return false
	}
	p.IsAudio = enabled
	return true
}

// MuteAll disables audio for every participant. Video is left alone.
func (r *Room) MuteAll() {
	for _, p := range r.participants {
		p.IsAudio = false
	}
}

// EnqueuePending appends a request, or refreshes the existing entry for the
// same connection in place. It reports whether an entry was refreshed.
func (r *Room) EnqueuePending(req PendingRequest) bool {
	for i := range r.pending {
		if r.pending[i].ConnID == req.ConnID {
			r.pending[i].Username = req.Username
			r.pending[i].RequestedAt = req.RequestedAt
			return true
		}
	}
	r.pending = append(r.pending, req)
	return false
}

// TakePending removes and returns the request of conn.
func (r *Room) TakePending(conn ConnID) (PendingRequest, bool) {
	for i, req := range r.pending {
		if req.ConnID == conn {
			r.pending = slices.Delete(r.pending, i, i+1)
			return req, true
		}
	}
	return PendingRequest{}, false
}

func (r *Room) HasPending(conn ConnID) bool {
	return slices.ContainsFunc(r.pending, func(req PendingRequest) bool {
		return req.ConnID == conn
	})
}

// Pending returns a copy of the queue in request order.
func (r *Room) Pending() []PendingRequest {
	return slices.Clone(r.pending)
}

// DrainPending empties the queue and returns what it held.
func (r *Room) DrainPending() []PendingRequest {
	out := r.pending
	r.pending = nil
	return out
}
