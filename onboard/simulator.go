package onboard

import (
	"context"
	"math"
	"sync"
	"time"

	deviceerrors "github.com/CodedInternet/rcremote/onboard/errors"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/time/rate"
)

// SimulatedArm is a kinematic stand-in for the arm: targets are reached
// instantly and AdvanceStep is paced at the simulation time step.
type SimulatedArm struct {
	mu          sync.RWMutex
	position    mgl64.Vec3
	gripperOpen bool
	steps       uint64

	limiter *rate.Limiter
}

// NewSimulatedArm places the arm at home. A zero timeStep runs unpaced.
func NewSimulatedArm(home mgl64.Vec3, timeStep time.Duration) *SimulatedArm {
	limit := rate.Inf
	if timeStep > 0 {
		limit = rate.Every(timeStep)
	}

	return &SimulatedArm{
		position:    home,
		gripperOpen: true, // the scene starts with the gripper open
		limiter:     rate.NewLimiter(limit, 1),
	}
}

func (a *SimulatedArm) MoveTo(ctx context.Context, position mgl64.Vec3, duration float64, speedBased bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, axis := range []string{"x", "y", "z"} {
		if math.IsNaN(position[i]) || math.IsInf(position[i], 0) {
			return deviceerrors.BoundsError{Axis: axis, Value: position[i]}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.position = position
	return nil
}

func (a *SimulatedArm) SetGripper(ctx context.Context, open bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.gripperOpen = open
	return nil
}

func (a *SimulatedArm) AdvanceStep(ctx context.Context) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.steps++
	return nil
}

func (a *SimulatedArm) CurrentPosition(ctx context.Context) (mgl64.Vec3, error) {
	if err := ctx.Err(); err != nil {
		return mgl64.Vec3{}, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.position, nil
}

// GripperOpen reports the last gripper command.
func (a *SimulatedArm) GripperOpen() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.gripperOpen
}

// Steps is the number of simulation ticks advanced.
func (a *SimulatedArm) Steps() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.steps
}
