package signal

import (
	"errors"

	"github.com/dkeye/huddle/internal/app/orch"
	"github.com/dkeye/huddle/internal/domain"
)

var (
	errBadPayload   = errors.New("bad payload")
	errRateLimited  = errors.New("rate limited")
	errUnknownEvent = errors.New("unknown event")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{domain.ErrMissingRoomID, "missing_room_id"},
	{domain.ErrMissingTarget, "missing_target"},
	{domain.ErrUsernameTooLong, "invalid_username"},
	{domain.ErrInvalidPassword, "invalid_password"},
	{domain.ErrNotAuthorized, "not_authorized"},
	{domain.ErrUserNotFound, "user_not_found"},
	{domain.ErrRoomNotFound, "room_not_found"},
	{domain.ErrDuplicateRoom, "duplicate_room"},
	{domain.ErrNotParticipant, "not_a_participant"},
	{domain.ErrEmptyMessage, "empty_message"},
	{orch.ErrPersistenceFailed, "persistence_failed"},
	{errBadPayload, "bad_payload"},
	{errRateLimited, "rate_limited"},
	{errUnknownEvent, "unknown_event"},
}

func errorCode(err error) string {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}

type reply map[string]any

func success(kv ...any) reply {
	r := reply{"success": true}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func failure(err error) reply {
	return reply{"success": false, "error": errorCode(err)}
}
