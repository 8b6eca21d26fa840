package comms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/gorilla/websocket"
)

var (
	ErrConductorClosed = errors.New("conductor closed")
	ErrSessionNotFound = errors.New("session not found")
)

const (
	TransportWebSocket = "websocket"
	TransportTCP       = "tcp"
)

type Config struct {
	HeartbeatInterval time.Duration
	StrictKeys        bool
	// Exclusive admits a single session at a time.
	Exclusive       bool
	ReadBufferSize  int
	WriteBufferSize int
}

// Conductor accepts client connections on every transport and runs a
// session for each. All sessions write into the same telemetry store.
type Conductor struct {
	store *telemetry.Store
	cfg   Config
	settings

	upgrader websocket.Upgrader
	control  xMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	sessions  map[string]*Session
	listeners map[net.Listener]struct{}
	closed    bool
}

func NewConductor(store *telemetry.Store, cfg Config, options ...Option) *Conductor {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conductor{
		store: store,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*Session),
		listeners: make(map[net.Listener]struct{}),
	}
	c.settings = newSettings(options)
	return c
}

// admit reserves a slot for a new connection. The returned release must be
// called once the session has closed.
func (c *Conductor) admit() (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConductorClosed
	}

	unlock := func() {}
	if c.cfg.Exclusive {
		if err := c.control.Lock(); err != nil {
			return nil, err
		}
		unlock = c.control.Unlock
	}

	c.wg.Add(1)
	return func() {
		unlock()
		c.wg.Done()
	}, nil
}

// ServeWS upgrades the request and serves the session until it closes.
func (c *Conductor) ServeWS(w http.ResponseWriter, r *http.Request) {
	release, err := c.admit()
	switch {
	case errors.Is(err, ErrInUse):
		c.logger.Warn("refusing connection", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer release()

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		c.logger.Warn("upgrade failed", slog.String("remote", r.RemoteAddr), slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	c.serve(conn, TransportWebSocket)
}

// ListenAndServeTCP accepts newline framed clients on addr until Close.
func (c *Conductor) ListenAndServeTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return c.ServeTCP(ln)
}

// ServeTCP runs the accept loop on ln. It returns nil once the conductor is
// closed.
func (c *Conductor) ServeTCP(ln net.Listener) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ln.Close()
		return ErrConductorClosed
	}
	c.listeners[ln] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.listeners, ln)
		c.mu.Unlock()
		ln.Close()
	}()

	c.logger.Info("tcp transport listening", slog.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			c.logger.Error("failed to accept connection", slog.String("error", err.Error()))
			continue
		}

		release, err := c.admit()
		if err != nil {
			c.logger.Warn("refusing connection", slog.String("remote", conn.RemoteAddr().String()), slog.String("error", err.Error()))
			conn.Close()
			continue
		}

		go func() {
			defer release()
			c.serve(newLineConn(conn), TransportTCP)
		}()
	}
}

func (c *Conductor) serve(conn Conn, transport string) {
	s := NewSession(conn, c.store, SessionConfig{
		HeartbeatInterval: c.cfg.HeartbeatInterval,
		StrictKeys:        c.cfg.StrictKeys,
		Transport:         transport,
	}, WithLogger(c.logger), WithClock(c.clock))

	c.mu.Lock()
	c.sessions[s.ID()] = s
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.SessionOpened(s.Info())
	}

	s.Run(c.ctx)

	c.mu.Lock()
	delete(c.sessions, s.ID())
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.SessionClosed(s.Info())
	}
}

// Sessions lists the open sessions, oldest first.
func (c *Conductor) Sessions() []SessionInfo {
	c.mu.RLock()
	infos := make([]SessionInfo, 0, len(c.sessions))
	for _, s := range c.sessions {
		infos = append(infos, s.Info())
	}
	c.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return infos
}

// Kick closes the session with the given id.
func (c *Conductor) Kick(id string) error {
	c.mu.RLock()
	s, ok := c.sessions[id]
	c.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return s.Close()
}

// Close stops every listener, ends all sessions and waits for them.
func (c *Conductor) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	listeners := make([]net.Listener, 0, len(c.listeners))
	for ln := range c.listeners {
		listeners = append(listeners, ln)
	}
	c.mu.Unlock()

	for _, ln := range listeners {
		ln.Close()
	}
	c.cancel()
	c.wg.Wait()
	return nil
}
