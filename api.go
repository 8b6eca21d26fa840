package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/CodedInternet/rcremote/comms"
	"github.com/CodedInternet/rcremote/history"
	"github.com/CodedInternet/rcremote/onboard"
	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type TelemetryPayload struct {
	telemetry.Record
	Version   uint64     `json:"version"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Age       string     `json:"age,omitempty"`
	Line      string     `json:"line"`
}

type ControllerPayload struct {
	Running bool           `json:"running"`
	Cycles  uint64         `json:"cycles"`
	Target  onboard.Target `json:"target"`
}

type StatusPayload struct {
	StartedAt  time.Time         `json:"startedAt"`
	Uptime     string            `json:"uptime"`
	Sessions   int               `json:"sessions"`
	Controller ControllerPayload `json:"controller"`
	Telemetry  TelemetryPayload  `json:"telemetry"`
}

type SessionsPayload struct {
	Active   []comms.SessionInfo `json:"active"`
	History  []history.Session   `json:"history,omitempty"`
	Recorded int                 `json:"recorded,omitempty"`
}

// SessionPayload describes one session, live and as recorded.
type SessionPayload struct {
	Active *comms.SessionInfo `json:"active,omitempty"`
	Record *history.Session   `json:"record,omitempty"`
}

func (e *Env) telemetryPayload() TelemetryPayload {
	snap := e.Store.Snapshot()
	payload := TelemetryPayload{
		Record:  snap.Record,
		Version: snap.Version,
		Line:    telemetry.Encode(snap.Record),
	}
	if !snap.UpdatedAt.IsZero() {
		updated := snap.UpdatedAt
		payload.UpdatedAt = &updated
		payload.Age = humanize.RelTime(snap.UpdatedAt, e.Clock.Now(), "ago", "from now")
	}
	return payload
}

func (e *Env) statusPayload() StatusPayload {
	return StatusPayload{
		StartedAt: e.StartedAt,
		Uptime:    e.Clock.Since(e.StartedAt).Truncate(time.Second).String(),
		Sessions:  len(e.Conductor.Sessions()),
		Controller: ControllerPayload{
			Running: e.Controller.Running(),
			Cycles:  e.Controller.Cycles(),
			Target:  e.Controller.Target(),
		},
		Telemetry: e.telemetryPayload(),
	}
}

func (e *Env) Status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, e.statusPayload())
}

func (e *Env) Telemetry(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, e.telemetryPayload())
}

// Sessions lists the open sessions and, with ?history=N, the N most recent
// sessions on record.
func (e *Env) Sessions(w http.ResponseWriter, r *http.Request) {
	payload := SessionsPayload{Active: e.Conductor.Sessions()}

	if raw := r.URL.Query().Get("history"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			render.Render(w, r, ErrInvalidRequest(errors.New("history must be a positive integer")))
			return
		}
		if e.History == nil {
			render.Render(w, r, ErrUnavailable(errors.New("session history is disabled")))
			return
		}

		payload.History, err = e.History.Recent(n)
		if err != nil {
			render.Render(w, r, ErrRender(err))
			return
		}
		if payload.Recorded, err = e.History.Count(); err != nil {
			render.Render(w, r, ErrRender(err))
			return
		}
	}

	render.JSON(w, r, payload)
}

// Session looks a session up among the open ones and in the history.
func (e *Env) Session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var payload SessionPayload
	for _, info := range e.Conductor.Sessions() {
		if info.ID == id {
			payload.Active = &info
			break
		}
	}

	if e.History != nil {
		session, err := e.History.Get(id)
		switch {
		case err == nil:
			payload.Record = &session
		case !errors.Is(err, history.ErrNotFound):
			render.Render(w, r, ErrRender(err))
			return
		}
	}

	if payload.Active == nil && payload.Record == nil {
		render.Render(w, r, ErrNotFound)
		return
	}
	render.JSON(w, r, payload)
}

func (e *Env) KickSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := e.Conductor.Kick(id); err != nil {
		if errors.Is(err, comms.ErrSessionNotFound) {
			render.Render(w, r, ErrNotFound)
			return
		}
		render.Render(w, r, ErrRender(err))
		return
	}
	render.NoContent(w, r)
}
