package calcs

import (
	"testing"

	"github.com/CodedInternet/rcremote/telemetry"
	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGains(t *testing.T) {
	Convey("default gains", t, func() {
		g := DefaultGains

		Convey("tilt right strafes positive X", func() {
			d := g.Displacement(telemetry.Record{Roll: 1})
			So(d, ShouldResemble, mgl64.Vec3{0.005, 0, 0})
		})

		Convey("raising lowers Y", func() {
			d := g.Displacement(telemetry.Record{Height: 10})
			So(d.Y(), ShouldAlmostEqual, -0.01, 1e-12)
		})

		Convey("tilt forward advances negative Z", func() {
			d := g.Displacement(telemetry.Record{Pitch: 2})
			So(d.Z(), ShouldAlmostEqual, -0.01, 1e-12)
		})

		Convey("orientation and gripper do not move the arm", func() {
			d := g.Displacement(telemetry.Record{OrientationX: 5, OrientationY: 5, OrientationZ: 5, GripperLevel: 900})
			So(d, ShouldResemble, mgl64.Vec3{})
		})

		Convey("integration adds onto the previous position", func() {
			p := g.Integrate(mgl64.Vec3{0, 0.5, 0.5}, telemetry.Record{Roll: 2, Pitch: 1})
			So(p.X(), ShouldAlmostEqual, 0.01, 1e-12)
			So(p.Y(), ShouldAlmostEqual, 0.5, 1e-12)
			So(p.Z(), ShouldAlmostEqual, 0.495, 1e-12)
		})
	})
}

func TestGripperOpen(t *testing.T) {
	Convey("gripper threshold is strict", t, func() {
		So(GripperOpen(100, DefaultGripperThreshold), ShouldBeFalse)
		So(GripperOpen(500, DefaultGripperThreshold), ShouldBeFalse)
		So(GripperOpen(500.0001, DefaultGripperThreshold), ShouldBeTrue)
		So(GripperOpen(999, DefaultGripperThreshold), ShouldBeTrue)
	})
}
