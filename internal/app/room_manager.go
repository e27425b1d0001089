package app

import (
	"sort"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
)

const (
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDLength   = 7
)

// Room guards one domain.Room. Every read or write of the state happens with
// mu held; closed is set once the room has left the registry.
type Room struct {
	mu     sync.Mutex
	state  *domain.Room
	closed bool
}

// Tx is the exclusive view of a room handed to Update callbacks.
// It must not be retained after the callback returns.
type Tx struct {
	*domain.Room
	room *Room
	reg  *RoomRegistry
}

// Close removes the room from the registry. The id is reusable immediately.
func (tx *Tx) Close() {
	if tx.room.closed {
		return
	}
	tx.room.closed = true
	tx.reg.remove(tx.room)
}

// RoomRegistry owns every room. Lock order is room then registry: the
// registry lock is never held while a room lock is acquired.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	newID func() string
}

func NewRoomRegistry() *RoomRegistry {
	gen, err := nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
	if err != nil {
		panic(err)
	}
	return &RoomRegistry{
		rooms: make(map[domain.RoomID]*Room),
		newID: gen,
	}
}

// Create registers a room built by build. An empty requested id gets a
// generated one; a requested id already in use is ErrDuplicateRoom.
func (f *RoomRegistry) Create(requested domain.RoomID, build func(id domain.RoomID) *domain.Room) (domain.RoomID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := requested
	if id == "" {
		for {
			id = domain.RoomID(f.newID())
			if _, taken := f.rooms[id]; !taken {
				break
			}
		}
	} else if _, taken := f.rooms[id]; taken {
		return "", domain.ErrDuplicateRoom
	}

	f.rooms[id] = &Room{state: build(id)}
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room created")
	return id, nil
}

func (f *RoomRegistry) lookup(id domain.RoomID) (*Room, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.rooms[id]
	return r, ok
}

func (f *RoomRegistry) getOrCreate(id domain.RoomID, build func() *domain.Room) (*Room, bool) {
	if r, ok := f.lookup(id); ok {
		return r, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[id]; ok {
		return r, false
	}
	r := &Room{state: build()}
	f.rooms[id] = r
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room auto-created")
	return r, true
}

func (f *RoomRegistry) remove(r *Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[r.state.ID]; ok && cur == r {
		delete(f.rooms, r.state.ID)
		log.Info().Str("module", "app.rooms").Str("room", string(r.state.ID)).Msg("room deleted")
	}
}

// Update runs fn with the room locked. It returns ErrRoomNotFound when the
// room does not exist, including when it was deleted while we waited.
func (f *RoomRegistry) Update(id domain.RoomID, fn func(tx *Tx) error) error {
	for {
		r, ok := f.lookup(id)
		if !ok {
			return domain.ErrRoomNotFound
		}
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}
		err := fn(&Tx{Room: r.state, room: r, reg: f})
		r.mu.Unlock()
		return err
	}
}

// UpdateOrCreate is Update for a room that is created by build when missing.
// created is true only for the call that registered the room.
func (f *RoomRegistry) UpdateOrCreate(id domain.RoomID, build func() *domain.Room, fn func(tx *Tx, created bool) error) error {
	for {
		r, created := f.getOrCreate(id, build)
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			continue
		}
		err := fn(&Tx{Room: r.state, room: r, reg: f}, created)
		r.mu.Unlock()
		return err
	}
}

// Range visits every live room, one lock at a time.
func (f *RoomRegistry) Range(fn func(tx *Tx)) {
	for _, r := range f.all() {
		r.mu.Lock()
		if !r.closed {
			fn(&Tx{Room: r.state, room: r, reg: f})
		}
		r.mu.Unlock()
	}
}

func (f *RoomRegistry) all() []*Room {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out
}

// Get returns a snapshot of a room.
func (f *RoomRegistry) Get(id domain.RoomID) (core.RoomInfo, error) {
	var info core.RoomInfo
	err := f.Update(id, func(tx *Tx) error {
		info = roomInfo(tx.Room)
		return nil
	})
	return info, err
}

// Delete removes a room. Deleting an unknown room is a no-op.
func (f *RoomRegistry) Delete(id domain.RoomID) {
	_ = f.Update(id, func(tx *Tx) error {
		tx.Close()
		return nil
	})
}

func (f *RoomRegistry) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0)
	f.Range(func(tx *Tx) {
		out = append(out, roomInfo(tx.Room))
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *RoomRegistry) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rooms)
}

func roomInfo(r *domain.Room) core.RoomInfo {
	return core.RoomInfo{
		ID:              r.ID,
		MemberCount:     r.ParticipantCount(),
		PendingCount:    len(r.Pending()),
		Protected:       r.Password != "",
		RequireApproval: r.Settings.RequireApproval,
		CreatedAt:       r.CreatedAt,
	}
}
