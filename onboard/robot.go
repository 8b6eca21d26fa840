package onboard

import (
	"context"

	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/go-gl/mathgl/mgl64"
)

// Robot is the actuation capability the control loop drives. Implementations
// wrap a simulator or the arm's own controller; IK and gripper hardware live
// behind it.
type Robot interface {
	// MoveTo issues a pose target. duration is a hint in seconds; speedBased
	// asks the robot to interpret it as a speed instead.
	MoveTo(ctx context.Context, position mgl64.Vec3, duration float64, speedBased bool) error
	SetGripper(ctx context.Context, open bool) error
	// AdvanceStep moves the actuated world forward one control tick.
	AdvanceStep(ctx context.Context) error
	CurrentPosition(ctx context.Context) (mgl64.Vec3, error)
}

// TelemetrySource is the read side of the shared telemetry store.
type TelemetrySource interface {
	Read() telemetry.Record
}
