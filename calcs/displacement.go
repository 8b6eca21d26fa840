package calcs

import (
	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/go-gl/mathgl/mgl64"
)

const DefaultGripperThreshold = 500.0

// Gains scale telemetry into a per-cycle displacement. Roll strafes along X,
// Height raises/lowers along Y and Pitch advances along Z.
type Gains struct {
	Roll   float64 `yaml:"roll" env:"ROLL"`
	Height float64 `yaml:"height" env:"HEIGHT"`
	Pitch  float64 `yaml:"pitch" env:"PITCH"`
}

var DefaultGains = Gains{
	Roll:   0.005,
	Height: -0.001,
	Pitch:  -0.005,
}

// Displacement is the increment to add to the commanded position this cycle.
func (g Gains) Displacement(r telemetry.Record) mgl64.Vec3 {
	return mgl64.Vec3{
		r.Roll * g.Roll,
		r.Height * g.Height,
		r.Pitch * g.Pitch,
	}
}

// Integrate advances prev by the displacement for r. There is no feedback
// from the actuator, so error accumulates across cycles.
func (g Gains) Integrate(prev mgl64.Vec3, r telemetry.Record) mgl64.Vec3 {
	return prev.Add(g.Displacement(r))
}

// GripperOpen applies the binary threshold. Levels equal to the threshold
// close the gripper.
func GripperOpen(level, threshold float64) bool {
	return level > threshold
}
