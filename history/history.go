// Package history keeps a durable log of client sessions in the embedded
// storm database.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CodedInternet/rcremote/comms"
	"github.com/asdine/storm/v3"
)

var ErrNotFound = errors.New("session not found")

// Session is one persisted connection. It is written when the client
// connects and rewritten with its totals when it leaves.
type Session struct {
	ID        string `storm:"id"`
	Remote    string
	Transport string

	// ConnectedUnixNano orders the log; storm indexes integers in binary so
	// they sort numerically.
	ConnectedUnixNano int64 `storm:"index"`
	ConnectedAt       time.Time
	ClosedAt          time.Time

	Received     uint64
	Updates      uint64
	Rejected     uint64
	Unrecognized uint64
	Pings        uint64
	Reason       string
}

// Open reports whether the session had not finished when it was last written.
func (s Session) Open() bool {
	return s.ClosedAt.IsZero()
}

func (s Session) Duration() time.Duration {
	if s.Open() {
		return 0
	}
	return s.ClosedAt.Sub(s.ConnectedAt)
}

func fromInfo(info comms.SessionInfo) *Session {
	return &Session{
		ID:                info.ID,
		Remote:            info.Remote,
		Transport:         info.Transport,
		ConnectedUnixNano: info.ConnectedAt.UnixNano(),
		ConnectedAt:       info.ConnectedAt,
		ClosedAt:          info.ClosedAt,
		Received:          info.Received,
		Updates:           info.Updates,
		Rejected:          info.Rejected,
		Unrecognized:      info.Unrecognized,
		Pings:             info.Pings,
		Reason:            info.Reason,
	}
}

// Store records sessions as a comms.Observer.
type Store struct {
	db     *storm.DB
	logger *slog.Logger
}

func New(db *storm.DB, logger *slog.Logger) (*Store, error) {
	if err := db.Init(&Session{}); err != nil {
		return nil, fmt.Errorf("init session history: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) SessionOpened(info comms.SessionInfo) {
	s.save(info)
}

func (s *Store) SessionClosed(info comms.SessionInfo) {
	s.save(info)
}

func (s *Store) save(info comms.SessionInfo) {
	if err := s.db.Save(fromInfo(info)); err != nil {
		s.logger.Error("unable to record session", slog.String("session", info.ID), slog.String("error", err.Error()))
	}
}

// Recent returns up to n sessions, newest first.
func (s *Store) Recent(n int) ([]Session, error) {
	var sessions []Session
	err := s.db.AllByIndex("ConnectedUnixNano", &sessions, storm.Limit(n), storm.Reverse())
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return nil, err
	}
	return sessions, nil
}

func (s *Store) Get(id string) (Session, error) {
	var session Session
	if err := s.db.One("ID", id, &session); err != nil {
		if errors.Is(err, storm.ErrNotFound) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return session, nil
}

// Count is the number of sessions on record.
func (s *Store) Count() (int, error) {
	return s.db.Count(&Session{})
}
