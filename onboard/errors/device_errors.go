package errors

import "fmt"

// ActuationError is returned when the robot rejects a command. The control
// loop does not retry these.
type ActuationError struct {
	Command string
	Err     error
}

func (err *ActuationError) Error() string {
	command := err.Command
	if len(command) == 0 {
		command = "UNKNOWN"
	}

	return fmt.Sprintf("actuation failed; robot rejected %s: %v", command, err.Err)
}

func (err *ActuationError) Unwrap() error {
	return err.Err
}

// BoundsError reports a commanded position the robot refuses to reach.
type BoundsError struct {
	Axis  string
	Value float64
}

func (err BoundsError) Error() string {
	return fmt.Sprintf("position out of bounds on axis %s: %v", err.Axis, err.Value)
}
