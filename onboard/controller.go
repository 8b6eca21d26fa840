package onboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/CodedInternet/rcremote/calcs"
	deviceerrors "github.com/CodedInternet/rcremote/onboard/errors"
	"github.com/go-gl/mathgl/mgl64"
)

// Target is the pose and gripper intent commanded on the most recent cycle.
type Target struct {
	Position    mgl64.Vec3 `json:"position"`
	GripperOpen bool       `json:"gripperOpen"`
}

// Controller turns the latest telemetry into robot commands, one cycle per
// actuation step. It never waits on the network: a missing client simply
// leaves the last committed record in the store.
type Controller struct {
	source TelemetrySource
	robot  Robot
	cfg    ControlConfig
	logger *slog.Logger

	mu      sync.RWMutex
	target  Target
	seeded  bool
	running bool

	cycles atomic.Uint64
}

// WithLogger sets the logger used by the controller.
func WithLogger(logger *slog.Logger) func(*Controller) {
	return func(c *Controller) {
		c.logger = logger
	}
}

func NewController(source TelemetrySource, robot Robot, cfg ControlConfig, options ...func(*Controller)) *Controller {
	c := &Controller{
		source: source,
		robot:  robot,
		cfg:    cfg,
		logger: slog.Default(),
	}

	for _, option := range options {
		option(c)
	}

	return c
}

// Target returns the most recently commanded target.
func (c *Controller) Target() Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.target
}

// Cycles is the number of completed control ticks.
func (c *Controller) Cycles() uint64 {
	return c.cycles.Load()
}

// Running reports whether Run is active.
func (c *Controller) Running() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// Run drives the robot until ctx is cancelled or a command fails. A failed
// command is returned as *errors.ActuationError and is not retried.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	if err := c.Seed(ctx); err != nil {
		return err
	}
	c.logger.Info("control loop started", slog.Any("position", c.Target().Position))

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("control loop stopped", slog.Uint64("cycles", c.Cycles()))
			return err
		}

		if _, err := c.Step(ctx); err != nil {
			if ctx.Err() == nil {
				c.logger.Error("control loop failed", slog.String("error", err.Error()), slog.Uint64("cycles", c.Cycles()))
			}
			return err
		}
	}
}

// Seed reads the robot's position once to start integration from.
func (c *Controller) Seed(ctx context.Context) error {
	pos, err := c.robot.CurrentPosition(ctx)
	if err != nil {
		return c.fail(ctx, "CurrentPosition", err)
	}

	c.mu.Lock()
	c.target.Position = pos
	c.seeded = true
	c.mu.Unlock()
	return nil
}

// Step runs a single control cycle.
func (c *Controller) Step(ctx context.Context) (Target, error) {
	c.mu.RLock()
	seeded := c.seeded
	prev := c.target
	c.mu.RUnlock()

	if !seeded {
		if err := c.Seed(ctx); err != nil {
			return prev, err
		}
		prev = c.Target()
	}

	rec := c.source.Read()
	next := Target{
		Position:    c.cfg.Gains.Integrate(prev.Position, rec),
		GripperOpen: calcs.GripperOpen(rec.GripperLevel, c.cfg.GripperThreshold),
	}

	if err := c.robot.MoveTo(ctx, next.Position, c.cfg.MoveDuration, c.cfg.SpeedBased); err != nil {
		return prev, c.fail(ctx, "MoveTo", err)
	}

	if next.GripperOpen != prev.GripperOpen {
		c.logger.Debug("gripper intent changed", slog.Bool("open", next.GripperOpen), slog.Float64("level", rec.GripperLevel))
	}
	if err := c.robot.SetGripper(ctx, next.GripperOpen); err != nil {
		return prev, c.fail(ctx, "SetGripper", err)
	}

	if err := c.robot.AdvanceStep(ctx); err != nil {
		return prev, c.fail(ctx, "AdvanceStep", err)
	}

	c.mu.Lock()
	c.target = next
	c.mu.Unlock()
	c.cycles.Add(1)

	return next, nil
}

// fail reports cancellation as-is so shutdown is not mistaken for a fault.
func (c *Controller) fail(ctx context.Context, command string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &deviceerrors.ActuationError{Command: command, Err: err}
}
