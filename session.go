package mtprotosender

import "time"

// Session is the mutable session record: identity, salt, auth key, and
// the clock/sequence scratch state needed to assign outbound msg-ids,
// bundled so it can round-trip through a pluggable SessionStore.
//
// Session is not internally synchronized: every read-modify-write on it
// happens under the Sender's single mutex, and Session has no mutex of
// its own so that discipline stays visible at the call site instead of
// being hidden behind a second lock.
type Session struct {
	ID           int64 // random 64-bit, stable across reconnects
	Salt         int64 // server-mutable via bad_server_salt
	AuthKey      *AuthKey
	TimeOffset   int64 // signed seconds, corrects local clock drift
	LastMsgID    int64 // monotonic scratch
	Sequence     int32 // n: count of content-related messages issued so far
	ReportErrors bool  // when true, rpc errors carry the originating constructor id

	store SessionStore
}

// NewSession creates a Session with a fresh random id.
func NewSession(authKey *AuthKey, store SessionStore) *Session {
	if store == nil {
		store = &NoopSessionStore{}
	}
	return &Session{
		ID:      randInt63(),
		AuthKey: authKey,
		store:   store,
	}
}

// NewMsgID assigns the next outbound msg-id: a timestamp-derived 64-bit
// value with its low 2 bits zeroed, corrected by TimeOffset, bumped by
// 4 if it would not be strictly greater than the last one issued.
func (s *Session) NewMsgID(now time.Time) int64 {
	sec := now.Unix() + s.TimeOffset
	nsec := int64(now.Nanosecond())
	msgID := (sec << 32) | (nsec << 2)
	if msgID <= s.LastMsgID {
		msgID = s.LastMsgID + 4
	}
	s.LastMsgID = msgID
	return msgID
}

// UpdateTimeOffset recalibrates TimeOffset from a server-confirmed
// msg-id (the "outer" msg-id of the frame carrying a recoverable
// bad_msg_notification) and resets LastMsgID so the next NewMsgID call
// isn't stuck comparing against a stale scratch value computed under
// the old offset.
func (s *Session) UpdateTimeOffset(correctMsgID int64, now time.Time) {
	s.TimeOffset = (correctMsgID >> 32) - now.Unix()
	s.LastMsgID = 0
}

// NextSequence returns the next sequence number: content related
// messages form the odd series 2n+1 and advance n; everything else is
// the even 2n.
func (s *Session) NextSequence(contentRelated bool) int32 {
	if contentRelated {
		seq := 2*s.Sequence + 1
		s.Sequence++
		return seq
	}
	return 2 * s.Sequence
}

// Save invokes the persistence hook, letting salt and time-offset
// corrections survive restarts.
func (s *Session) Save() error {
	return s.store.Save(s.Snapshot())
}

// SessionSnapshot captures the externally-persisted subset of Session
// state: salt, time_offset, session_id, auth_key. No on-disk format is
// mandated here — that's up to the SessionStore implementation.
type SessionSnapshot struct {
	ID         int64
	Salt       int64
	AuthKey    []byte
	TimeOffset int64
}

func (s *Session) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{ID: s.ID, Salt: s.Salt, TimeOffset: s.TimeOffset}
	if s.AuthKey != nil {
		snap.AuthKey = s.AuthKey.Key
	}
	return snap
}

// SessionStore is the persistence hook for session state: an external
// collaborator responsible for Save/Load against a SessionSnapshot.
type SessionStore interface {
	Save(SessionSnapshot) error
	Load() (SessionSnapshot, error)
}

// NoopSessionStore discards saves and always reports no saved data.
type NoopSessionStore struct{}

func (NoopSessionStore) Save(SessionSnapshot) error { return nil }
func (NoopSessionStore) Load() (SessionSnapshot, error) {
	return SessionSnapshot{}, ErrNoSessionData
}
