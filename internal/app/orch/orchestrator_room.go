package orch

import (
	"context"
	"time"

	"github.com/dkeye/huddle/internal/app"
	"github.com/dkeye/huddle/internal/core"
	"github.com/dkeye/huddle/internal/domain"
	"github.com/rs/zerolog/log"
)

const ReasonRoomClosed = "room_closed"

type JoinStatus int

const (
	JoinAdmitted JoinStatus = iota
	JoinPending
)

type CreateRequest struct {
	RoomID   domain.RoomID
	ConnID   domain.ConnID
	Username string
	Password string
	Token    string
	Settings domain.Settings
}

type JoinRequest struct {
	RoomID   domain.RoomID
	ConnID   domain.ConnID
	Username string
	Password string
	Token    string
}

type JoinResult struct {
	Status    JoinStatus
	Admission core.Admission
}

// CreateRoom registers a room with the caller as admin and no participants.
// An empty RoomID gets a generated one.
func (o *Orchestrator) CreateRoom(ctx context.Context, req CreateRequest) (domain.RoomID, error) {
	username, err := domain.NormalizeUsername(req.Username)
	if err != nil {
		return "", err
	}
	admin := domain.Admin{ConnID: req.ConnID, Username: username, Token: req.Token}
	now := o.now()

	id, err := o.Rooms.Create(req.RoomID, func(id domain.RoomID) *domain.Room {
		return domain.NewRoom(id, admin, req.Settings, req.Password, now)
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("module", "app.orch").Str("sid", string(req.ConnID)).Str("room", string(id)).Str("admin", username).Msg("room created")
	o.recordRoom(ctx, domain.RoomRecord{
		RoomID:    id,
		CreatedBy: username,
		Protected: req.Password != "",
		Settings:  req.Settings,
		CreatedAt: now,
	})
	return id, nil
}

// Join admits the connection, queues it for approval, or rejects it.
// An unknown room is created with the joiner as admin. Once admitted or
// queued, the connection leaves whatever room it was in before.
func (o *Orchestrator) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	if req.RoomID == "" {
		return JoinResult{}, domain.ErrMissingRoomID
	}
	username, err := domain.NormalizeUsername(req.Username)
	if err != nil {
		return JoinResult{}, err
	}

	now := o.now()
	build := func() *domain.Room {
		admin := domain.Admin{ConnID: req.ConnID, Username: username, Token: req.Token}
		return domain.NewRoom(req.RoomID, admin, domain.DefaultSettings(), "", now)
	}

	var (
		res     JoinResult
		created bool
		record  domain.RoomRecord
	)
	err = o.Rooms.UpdateOrCreate(req.RoomID, build, func(tx *app.Tx, isNew bool) error {
		created = isNew
		if isNew {
			record = domain.RoomRecord{
				RoomID:    tx.ID,
				CreatedBy: username,
				Settings:  tx.Settings,
				CreatedAt: tx.CreatedAt,
			}
		}
		var err error
		res, err = o.admit(tx, req.ConnID, username, req.Password, req.Token, now)
		return err
	})
	if created {
		o.recordRoom(ctx, record)
	}
	if err != nil {
		o.Metrics.Join("rejected")
		return JoinResult{}, err
	}

	// A connection belongs to at most one room. A rejected join keeps the
	// previous one.
	o.detach(ctx, req.ConnID, req.RoomID)

	if res.Status == JoinPending {
		o.Metrics.Join("pending")
		return res, nil
	}

	res.Admission.Messages = o.history(ctx, req.RoomID)
	o.Metrics.Join("admitted")
	return res, nil
}

func (o *Orchestrator) admit(tx *app.Tx, conn domain.ConnID, username, password, token string, now time.Time) (JoinResult, error) {
	if tx.HasParticipant(conn) {
		return JoinResult{Status: JoinAdmitted, Admission: admission(tx.Room, conn)}, nil
	}

	if tx.ReassignAdmin(conn, username, token) {
		log.Info().Str("module", "app.orch").Str("sid", string(conn)).Str("room", string(tx.ID)).Msg("admin reconnected, connection reassigned")
	}

	if !tx.CheckPassword(password) {
		log.Warn().Str("module", "app.orch").Str("sid", string(conn)).Str("room", string(tx.ID)).Msg("join rejected: invalid password")
		return JoinResult{}, domain.ErrInvalidPassword
	}

	isAdmin := tx.IsAdmin(conn)
	if tx.Settings.RequireApproval && !isAdmin {
		refreshed := tx.EnqueuePending(domain.PendingRequest{ConnID: conn, Username: username, RequestedAt: now})
		o.send(tx.Admin.ConnID, core.EventPendingApproval, core.NewMemberEvent(conn, username, now))
		log.Info().Str("module", "app.orch").Str("sid", string(conn)).Str("room", string(tx.ID)).Bool("refreshed", refreshed).Msg("waiting for approval")
		return JoinResult{Status: JoinPending}, nil
	}

	tx.AddParticipant(domain.User{ConnID: conn, Username: username})
	if tx.Settings.MuteAllOnEntry && !isAdmin {
		tx.SetAudio(conn, false)
		o.send(conn, core.EventMuteAll, struct{}{})
	}
	o.broadcast(tx.ConnIDs(conn), core.EventUserJoined, core.NewMemberEvent(conn, username, now))
	log.Info().Str("module", "app.orch").Str("sid", string(conn)).Str("room", string(tx.ID)).Str("username", username).Msg("joined room")

	return JoinResult{Status: JoinAdmitted, Admission: admission(tx.Room, conn)}, nil
}

// admission snapshots the room for conn. Messages are filled in by the caller
// once the room lock is released.
func admission(r *domain.Room, conn domain.ConnID) core.Admission {
	a := core.Admission{
		RoomID:        r.ID,
		Participants:  r.Users(),
		AdminUsername: r.Admin.Username,
		Settings:      r.Settings,
		IsAdmin:       r.IsAdmin(conn),
	}
	if a.IsAdmin {
		a.Pending = r.Pending()
	}
	return a
}

// Leave removes conn from the room. Leaving a room twice is a no-op.
func (o *Orchestrator) Leave(ctx context.Context, roomID domain.RoomID, conn domain.ConnID) error {
	if roomID == "" {
		return domain.ErrMissingRoomID
	}
	var closed bool
	err := o.Rooms.Update(roomID, func(tx *app.Tx) error {
		closed = o.removeMember(tx, conn)
		return nil
	})
	if err != nil {
		return err
	}
	if closed {
		o.closeRooms(ctx, []domain.RoomID{roomID})
	}
	return nil
}

// Disconnect drops conn from every room it participates in or waits for.
func (o *Orchestrator) Disconnect(ctx context.Context, conn domain.ConnID) {
	o.detach(ctx, conn, "")
	log.Info().Str("module", "app.orch").Str("sid", string(conn)).Msg("disconnected")
}

// RoomOf finds the room conn participates in.
func (o *Orchestrator) RoomOf(conn domain.ConnID) (domain.RoomID, bool) {
	var found domain.RoomID
	o.Rooms.Range(func(tx *app.Tx) {
		if found == "" && tx.HasParticipant(conn) {
			found = tx.ID
		}
	})
	return found, found != ""
}

func (o *Orchestrator) detach(ctx context.Context, conn domain.ConnID, except domain.RoomID) {
	var closed []domain.RoomID
	o.Rooms.Range(func(tx *app.Tx) {
		if tx.ID == except {
			return
		}
		if !tx.HasParticipant(conn) && !tx.HasPending(conn) {
			return
		}
		if o.removeMember(tx, conn) {
			closed = append(closed, tx.ID)
		}
	})
	o.closeRooms(ctx, closed)
}

// removeMember reports whether the room was torn down.
func (o *Orchestrator) removeMember(tx *app.Tx, conn domain.ConnID) bool {
	tx.TakePending(conn)

	p, ok := tx.RemoveParticipant(conn)
	if !ok {
		return false
	}
	o.broadcast(tx.ConnIDs(""), core.EventUserLeft, core.NewMemberEvent(conn, p.Username, o.now()))
	log.Info().Str("module", "app.orch").Str("sid", string(conn)).Str("room", string(tx.ID)).Msg("left room")

	if tx.ParticipantCount() > 0 {
		return false
	}
	o.teardown(tx)
	return true
}

// teardown deletes the room and turns away everyone still waiting for it.
func (o *Orchestrator) teardown(tx *app.Tx) {
	for _, req := range tx.DrainPending() {
		o.send(req.ConnID, core.EventApprovalDenied, core.DeniedEvent{RoomID: tx.ID, Reason: ReasonRoomClosed})
	}
	tx.Close()
}

// SweepEmptyRooms deletes rooms that have had no participants for ttl since
// creation. It returns the number of rooms deleted.
func (o *Orchestrator) SweepEmptyRooms(ctx context.Context, ttl time.Duration) int {
	now := o.now()
	var closed []domain.RoomID
	o.Rooms.Range(func(tx *app.Tx) {
		if tx.ParticipantCount() > 0 || now.Sub(tx.CreatedAt) < ttl {
			return
		}
		o.teardown(tx)
		closed = append(closed, tx.ID)
	})
	for _, id := range closed {
		log.Info().Str("module", "app.orch").Str("room", string(id)).Msg("swept empty room")
	}
	o.closeRooms(ctx, closed)
	return len(closed)
}

// RunSweeper calls SweepEmptyRooms every interval until ctx is done.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval, ttl time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			o.SweepEmptyRooms(ctx, ttl)
		}
	}
}
