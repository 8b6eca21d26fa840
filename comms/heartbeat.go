package comms

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodedInternet/rcremote/telemetry"
)

// Heartbeat periodically sends the ping token through a session's guarded
// writer. It is owned by exactly one session.
type Heartbeat struct {
	send     func(string) error
	interval time.Duration
	settings

	cancel   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	pings    atomic.Uint64
}

// StartHeartbeat begins sending a ping every interval. The first ping goes
// out one full interval after the start.
func StartHeartbeat(send func(string) error, interval time.Duration, options ...Option) *Heartbeat {
	h := &Heartbeat{
		send:     send,
		interval: interval,
		settings: newSettings(options),
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	ticker := h.clock.NewTicker(interval)
	go h.run(ticker.Chan(), ticker.Stop)

	return h
}

func (h *Heartbeat) run(ticks <-chan time.Time, stopTicker func()) {
	defer close(h.done)
	defer stopTicker()

	for {
		select {
		case <-h.cancel:
			h.logger.Debug("heartbeat stopped", slog.Uint64("pings", h.pings.Load()))
			return

		case <-ticks:
			// a tick racing Stop must not produce a ping
			select {
			case <-h.cancel:
				continue
			default:
			}

			if err := h.send(telemetry.HeartbeatToken); err != nil {
				h.logger.Warn("heartbeat send failed", slog.String("error", err.Error()))
				return
			}
			h.pings.Add(1)
		}
	}
}

// Stop requests cancellation and waits for the heartbeat goroutine to exit.
// It is safe to call more than once.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() {
		close(h.cancel)
	})
	<-h.done
}

// Done is closed once the heartbeat goroutine has exited, whether stopped or
// after a failed send.
func (h *Heartbeat) Done() <-chan struct{} {
	return h.done
}

// Pings is the number of pings sent successfully.
func (h *Heartbeat) Pings() uint64 {
	return h.pings.Load()
}
