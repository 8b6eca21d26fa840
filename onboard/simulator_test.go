package onboard

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	deviceerrors "github.com/CodedInternet/rcremote/onboard/errors"
	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"
)

var home = mgl64.Vec3{0, 0.5, 0.5}

func TestSimulatedArm(t *testing.T) {
	ctx := context.Background()

	Convey("a new arm sits at home with the gripper open", t, func() {
		arm := NewSimulatedArm(home, 0)

		pos, err := arm.CurrentPosition(ctx)
		So(err, ShouldBeNil)
		So(pos, ShouldResemble, home)
		So(arm.GripperOpen(), ShouldBeTrue)
		So(arm.Steps(), ShouldEqual, uint64(0))

		Convey("MoveTo reaches the target", func() {
			target := mgl64.Vec3{0.1, 0.2, 0.3}
			So(arm.MoveTo(ctx, target, 0, false), ShouldBeNil)

			pos, err := arm.CurrentPosition(ctx)
			So(err, ShouldBeNil)
			So(pos, ShouldResemble, target)
		})

		Convey("non-finite targets are rejected", func() {
			err := arm.MoveTo(ctx, mgl64.Vec3{0, math.NaN(), 0}, 0, false)

			var bounds deviceerrors.BoundsError
			So(errors.As(err, &bounds), ShouldBeTrue)
			So(bounds.Axis, ShouldEqual, "y")

			pos, _ := arm.CurrentPosition(ctx)
			So(pos, ShouldResemble, home)
		})

		Convey("gripper commands are kept", func() {
			So(arm.SetGripper(ctx, false), ShouldBeNil)
			So(arm.GripperOpen(), ShouldBeFalse)
		})

		Convey("cancelled contexts are refused", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			So(arm.MoveTo(cancelled, home, 0, false), ShouldEqual, context.Canceled)
			So(arm.AdvanceStep(cancelled), ShouldNotBeNil)
			So(arm.Steps(), ShouldEqual, uint64(0))
		})
	})

	Convey("steps are paced by the time step", t, func() {
		const step = 20 * time.Millisecond
		arm := NewSimulatedArm(home, step)

		start := time.Now()
		for i := 0; i < 4; i++ {
			So(arm.AdvanceStep(ctx), ShouldBeNil)
		}

		// the first step uses the limiter's burst
		So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 3*step-5*time.Millisecond)
		So(arm.Steps(), ShouldEqual, uint64(4))
	})
}
