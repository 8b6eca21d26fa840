package errors

import (
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestActuationError(t *testing.T) {
	Convey("an actuation error", t, func() {
		cause := errors.New("ik failed")

		Convey("names the rejected command and unwraps to its cause", func() {
			err := &ActuationError{Command: "MoveTo", Err: cause}
			So(err.Error(), ShouldEqual, "actuation failed; robot rejected MoveTo: ik failed")
			So(errors.Is(err, cause), ShouldBeTrue)
		})

		Convey("reports an unnamed command without modifying the error", func() {
			err := &ActuationError{Err: cause}
			So(err.Error(), ShouldContainSubstring, "rejected UNKNOWN")
			So(err.Command, ShouldEqual, "")
		})

		Convey("can be formatted from many goroutines at once", func() {
			err := &ActuationError{Err: cause}

			var wg sync.WaitGroup
			messages := make([]string, 16)
			for i := range messages {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					messages[i] = err.Error()
				}(i)
			}
			wg.Wait()

			for _, msg := range messages {
				So(msg, ShouldEqual, messages[0])
			}
			So(err.Command, ShouldEqual, "")
		})
	})

	Convey("a bounds error names the axis", t, func() {
		err := BoundsError{Axis: "x", Value: 2}
		So(err.Error(), ShouldEqual, "position out of bounds on axis x: 2")
	})
}
