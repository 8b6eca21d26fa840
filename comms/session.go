package comms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrSessionClosed ends a session closed from this side, by Close or a
	// cancelled context.
	ErrSessionClosed = errors.New("session closed")
	// ErrRemoteClosed ends a session whose client hung up cleanly.
	ErrRemoteClosed = errors.New("session closed by remote")
)

type State int32

const (
	Connected State = iota
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type SessionConfig struct {
	HeartbeatInterval time.Duration
	StrictKeys        bool
	Transport         string
}

// Session serves one client connection: it decodes inbound lines, commits
// telemetry to the shared store, acknowledges and keeps the link alive with
// a heartbeat.
type Session struct {
	id          uuid.UUID
	remote      string
	connectedAt time.Time

	conn    Conn
	store   *telemetry.Store
	cfg     SessionConfig
	decoder telemetry.Decoder
	settings

	// writeMu serializes every write to conn, acks and pings alike.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	heartbeat *Heartbeat
	reason    error
	closedAt  time.Time
	closeOnce sync.Once
	closed    chan struct{}

	received     atomic.Uint64
	updates      atomic.Uint64
	rejected     atomic.Uint64
	unrecognized atomic.Uint64
}

func NewSession(conn Conn, store *telemetry.Store, cfg SessionConfig, options ...Option) *Session {
	s := &Session{
		id:      uuid.New(),
		conn:    conn,
		store:   store,
		cfg:     cfg,
		decoder: telemetry.Decoder{StrictKeys: cfg.StrictKeys},
		closed:  make(chan struct{}),
	}
	s.settings = newSettings(options)
	s.connectedAt = s.clock.Now()
	if addr := conn.RemoteAddr(); addr != nil {
		s.remote = addr.String()
	}
	s.logger = s.logger.With(slog.String("session", s.id.String()), slog.String("remote", s.remote))
	return s
}

func (s *Session) ID() string {
	return s.id.String()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// Err is the reason the session ended, nil while it is still open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Run serves the connection until the client goes away, Close is called or
// ctx is cancelled. The returned error is the end reason; a clean hang up is
// ErrRemoteClosed and a local close is ErrSessionClosed.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Connected || s.heartbeat != nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.heartbeat = StartHeartbeat(s.send, s.cfg.HeartbeatInterval, WithLogger(s.logger), WithClock(s.clock))
	s.mu.Unlock()

	s.logger.Info("client connected", slog.String("transport", s.cfg.Transport))

	stop := context.AfterFunc(ctx, func() {
		s.shutdown(fmt.Errorf("%w: %w", ErrSessionClosed, context.Cause(ctx)))
	})
	defer stop()

	s.shutdown(s.serve())
	return s.Err()
}

func (s *Session) serve() error {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return classify(err)
		}
		s.received.Add(1)

		if messageType != websocket.TextMessage {
			s.unrecognized.Add(1)
			s.logger.Info("ignoring binary message", slog.Int("size", len(data)))
			continue
		}

		if err := s.handle(string(data)); err != nil {
			return err
		}
	}
}

func (s *Session) handle(line string) error {
	msg, err := s.decoder.Decode(line)
	if err != nil {
		s.rejected.Add(1)
		s.logger.Warn("rejected telemetry", slog.String("error", err.Error()))
		return nil
	}

	switch msg.Kind {
	case telemetry.KindProbe:
		s.logger.Info("connection probe")

	case telemetry.KindUpdate:
		rec := s.store.Apply(msg.Update)
		s.updates.Add(1)
		s.logger.Debug("telemetry updated", slog.Int("fields", msg.Update.Len()),
			slog.Bool("complete", msg.Update.Complete()), slog.Any("record", rec))

	default:
		s.unrecognized.Add(1)
		s.logger.Info("unrecognized message", slog.String("message", msg.Raw))
	}

	if ack, ok := msg.Ack(); ok {
		if err := s.send(ack); err != nil {
			return fmt.Errorf("send %q: %w", ack, err)
		}
	}
	return nil
}

// send is the only path that writes to the connection.
func (s *Session) send(text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.State() == Closed {
		return ErrSessionClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

// Close ends the session and waits for the teardown to finish.
func (s *Session) Close() error {
	s.shutdown(ErrSessionClosed)
	return nil
}

// shutdown moves through Closing to Closed exactly once: the heartbeat is
// stopped and has exited before the connection is released.
func (s *Session) shutdown(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = Closing
		s.reason = reason
		heartbeat := s.heartbeat
		s.mu.Unlock()

		if heartbeat != nil {
			heartbeat.Stop()
		}

		if err := s.conn.Close(); err != nil {
			s.logger.Debug("close connection", slog.String("error", err.Error()))
		}

		s.mu.Lock()
		s.state = Closed
		s.closedAt = s.clock.Now()
		s.mu.Unlock()
		close(s.closed)

		level := slog.LevelInfo
		if !errors.Is(reason, ErrRemoteClosed) && !errors.Is(reason, ErrSessionClosed) {
			level = slog.LevelWarn
		}
		s.logger.Log(context.Background(), level, "client disconnected",
			slog.String("reason", reason.Error()),
			slog.Uint64("received", s.received.Load()),
			slog.Uint64("updates", s.updates.Load()))
	})
	<-s.closed
}

// classify maps transport read errors onto session end reasons.
func classify(err error) error {
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return fmt.Errorf("%w: %w", ErrRemoteClosed, err)
	case errors.Is(err, io.EOF):
		return ErrRemoteClosed
	}
	return fmt.Errorf("read: %w", err)
}

// Info snapshots the session for status surfaces.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	info := SessionInfo{
		ID:          s.id.String(),
		Remote:      s.remote,
		Transport:   s.cfg.Transport,
		State:       s.state.String(),
		ConnectedAt: s.connectedAt,
		ClosedAt:    s.closedAt,
	}
	if s.reason != nil {
		info.Reason = s.reason.Error()
	}
	heartbeat := s.heartbeat
	s.mu.Unlock()

	info.Received = s.received.Load()
	info.Updates = s.updates.Load()
	info.Rejected = s.rejected.Load()
	info.Unrecognized = s.unrecognized.Load()
	if heartbeat != nil {
		info.Pings = heartbeat.Pings()
	}
	return info
}
