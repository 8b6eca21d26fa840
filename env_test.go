package main

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodedInternet/rcremote/onboard"
	"github.com/jonboulle/clockwork"
)

const testSecret = "xWumOlRfhu+LBi2F2e1yF4FiaopQ5mr8klL4fpILnlI="

// testEpoch is well away from the wall clock so anything stamped with it
// shows up as coming from the wrong clock.
var testEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	*Env
	clock  clockwork.FakeClock
	server *httptest.Server
}

// newTestEnv builds an Env backed by a temporary database and serves its
// routes. configure may adjust the config before anything is built.
func newTestEnv(t *testing.T, configure func(cfg *onboard.Config), options ...EnvOption) *testEnv {
	t.Helper()

	cfg := onboard.DefaultConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Heartbeat.Interval = time.Hour
	cfg.Simulation.TimeStep = 0
	cfg.Auth.Secret = testSecret
	if configure != nil {
		configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	clock := clockwork.NewFakeClockAt(testEpoch)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env, err := NewEnv(cfg, logger, clock, options...)
	if err != nil {
		t.Fatal(err)
	}

	te := &testEnv{Env: env, clock: clock, server: httptest.NewServer(env.routes())}
	t.Cleanup(func() {
		te.server.Close()
		env.Close()
	})
	return te
}

func withAuth(cfg *onboard.Config) {
	cfg.Auth.Enabled = true
}
