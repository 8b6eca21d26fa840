package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// monitor logs a liveness line every interval until ctx is done.
func (e *Env) monitor(ctx context.Context, interval time.Duration) {
	ticker := e.Clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			e.logStatus()
		}
	}
}

func (e *Env) logStatus() {
	status := e.statusPayload()
	lastUpdate := "never"
	if status.Telemetry.UpdatedAt != nil {
		lastUpdate = status.Telemetry.Age
	}

	e.Logger.Info("still running",
		slog.String("uptime", status.Uptime),
		slog.Int("sessions", status.Sessions),
		slog.String("cycles", humanize.Comma(int64(status.Controller.Cycles))),
		slog.Any("target", status.Controller.Target.Position),
		slog.Bool("gripperOpen", status.Controller.Target.GripperOpen),
		slog.String("lastUpdate", lastUpdate))
}
