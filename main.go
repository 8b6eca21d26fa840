package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/CodedInternet/rcremote/comms"
	"github.com/CodedInternet/rcremote/history"
	"github.com/CodedInternet/rcremote/onboard"
	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/asdine/storm/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/jessevdk/go-flags"
	"github.com/jonboulle/clockwork"
)

type Options struct {
	Config    string `short:"c" long:"config" env:"RCREMOTE_CONFIG" description:"Path to the YAML configuration file"`
	Listen    string `short:"l" long:"listen" description:"Specify the ip:port to serve the websocket and API on"`
	TCPListen string `long:"tcp-listen" description:"Also accept newline framed clients on ip:port"`
	Exclusive bool   `long:"exclusive" description:"Admit a single controlling client at a time"`
	Shell     bool   `long:"shell" description:"Start the interactive operator shell"`
	Debug     bool   `short:"d" long:"debug" description:"Log at debug level"`
}

// apply overrides cfg with any flags given on the command line.
func (o Options) apply(cfg *onboard.Config) {
	if o.Listen != "" {
		cfg.Server.Listen = o.Listen
	}
	if o.TCPListen != "" {
		cfg.Server.TCPListen = o.TCPListen
	}
	if o.Exclusive {
		cfg.Server.Exclusive = true
	}
	if o.Debug {
		cfg.Log.Level = "debug"
	}
}

// Env carries everything the handlers and the shell need.
type Env struct {
	Config *onboard.Config
	Logger *slog.Logger
	Clock  clockwork.Clock

	DB         *storm.DB      // nil when storage is disabled
	History    *history.Store // nil when storage is disabled
	Store      *telemetry.Store
	Conductor  *comms.Conductor
	Robot      onboard.Robot
	Controller *onboard.Controller

	StartedAt time.Time
}

// EnvOption adjusts an Env while it is built.
type EnvOption func(*Env)

// WithRobot drives robot instead of the simulated arm.
func WithRobot(robot onboard.Robot) EnvOption {
	return func(e *Env) {
		e.Robot = robot
	}
}

func NewEnv(cfg *onboard.Config, logger *slog.Logger, clock clockwork.Clock, options ...EnvOption) (*Env, error) {
	home, err := cfg.HomePosition()
	if err != nil {
		return nil, err
	}

	e := &Env{
		Config:    cfg,
		Logger:    logger,
		Clock:     clock,
		Store:     telemetry.NewStore(telemetry.WithClock(clock)),
		StartedAt: clock.Now(),
	}
	for _, option := range options {
		option(e)
	}

	commsOptions := []comms.Option{comms.WithLogger(logger), comms.WithClock(clock)}
	if cfg.Storage.Path != "" {
		if e.DB, err = openDb(cfg.Storage.Path); err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if e.History, err = history.New(e.DB, logger); err != nil {
			e.DB.Close()
			return nil, err
		}
		commsOptions = append(commsOptions, comms.WithObserver(e.History))
	}

	e.Conductor = comms.NewConductor(e.Store, comms.Config{
		HeartbeatInterval: cfg.Heartbeat.Interval,
		StrictKeys:        cfg.Telemetry.StrictKeys,
		Exclusive:         cfg.Server.Exclusive,
		ReadBufferSize:    cfg.Server.ReadBufferSize,
		WriteBufferSize:   cfg.Server.WriteBufferSize,
	}, commsOptions...)

	if e.Robot == nil {
		e.Robot = onboard.NewSimulatedArm(home, cfg.Simulation.TimeStep)
	}
	e.Controller = onboard.NewController(e.Store, e.Robot, cfg.Control, onboard.WithLogger(logger))

	return e, nil
}

// Close ends every session and releases the database.
func (e *Env) Close() error {
	e.Conductor.Close()
	if e.DB != nil {
		return e.DB.Close()
	}
	return nil
}

func (e *Env) routes() chi.Router {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	//---
	// Build the API routes
	//---
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		if e.Config.Auth.Enabled {
			r.Post("/login", e.Login)
		}

		r.Group(func(r chi.Router) {
			// Seek, verify and validate JWT tokens
			r.Use(e.ValidateJWT)

			r.Get("/status", e.Status)
			r.Get("/telemetry", e.Telemetry)
			r.Get("/sessions", e.Sessions)
			r.Get("/sessions/{id}", e.Session)
			r.Delete("/sessions/{id}", e.KickSession)

			if e.Config.Auth.Enabled {
				r.Get("/refresh_token", e.JWTRefresh)
			}
		})
	})

	// The handheld client connects to ws://host:port with no path
	r.With(e.ValidateJWT).Get(e.Config.Server.Path, e.Conductor.ServeWS)

	return r
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.LongDescription = "rcremote - drive a robot arm from handheld telemetry"

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel}))

	cfg, err := onboard.LoadConfig(opts.Config)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration: %s", err.Error()), slog.String("path", opts.Config))
		os.Exit(1)
	}
	opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	logger, logFile, err := setupLogging(cfg.Log, &logLevel)
	if err != nil {
		slog.Error("failed to set up logging", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(logger)
	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(logger.Handler(), slog.LevelInfo),
		NoColor: true,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = run(ctx, cfg, opts, logger)
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}

// run builds the environment and serves until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg *onboard.Config, opts Options, logger *slog.Logger) error {
	env, err := NewEnv(cfg, logger, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	defer env.Close() // close database when finished

	return env.serve(ctx, opts.Shell)
}

// serve runs the control loop, the monitor and every listener until ctx is
// cancelled or one of them fails. A control loop failure is fatal for the
// process and comes back as the returned error.
func (e *Env) serve(ctx context.Context, withShell bool) error {
	cfg := e.Config

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	controlDone := make(chan struct{})
	go func() {
		defer close(controlDone)
		if err := e.Controller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			cancel(fmt.Errorf("control loop: %w", err))
		}
	}()

	go e.monitor(ctx, cfg.Server.StatusInterval)

	if cfg.Server.TCPListen != "" {
		go func() {
			if err := e.Conductor.ListenAndServeTCP(cfg.Server.TCPListen); err != nil {
				cancel(err)
			}
		}()
	}

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           e.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		e.Logger.Info("listening", slog.String("addr", cfg.Server.Listen), slog.String("path", cfg.Server.Path),
			slog.Bool("auth", cfg.Auth.Enabled), slog.Bool("exclusive", cfg.Server.Exclusive))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			cancel(err)
		}
	}()

	if withShell {
		shell := e.newShell()
		defer shell.Close()
		go func() {
			shell.Run()
			cancel(nil)
		}()
	}

	<-ctx.Done()
	e.Logger.Info("shutting down")

	// sessions are hijacked connections, Shutdown does not wait for them
	e.Conductor.Close()

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		e.Logger.Warn("http shutdown", slog.String("error", err.Error()))
	}
	<-controlDone

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

func openDb(dbFile string) (db *storm.DB, err error) {
	dir := filepath.Dir(dbFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&User{}); err != nil {
		db.Close()
		return nil, err
	}

	return
}
