package onboard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/smartystreets/goconvey/convey"
)

const testYaml = `
version: 1.0.3
server:
  listen: 127.0.0.1:9000
  tcpListen: 127.0.0.1:9001
  exclusive: true
heartbeat:
  interval: 2s
telemetry:
  strictKeys: true
control:
  gains:
    roll: 0.01
  gripperThreshold: 250
simulation:
  home: [1, 2, 3]
`

func TestConfigParsing(t *testing.T) {
	Convey("parsing over the defaults is successful", t, func() {
		config := DefaultConfig()
		err := ParseConfig([]byte(testYaml), config)
		So(err, ShouldBeNil)
		So(config.Validate(), ShouldBeNil)

		Convey("file values replace defaults", func() {
			So(config.Server.Listen, ShouldEqual, "127.0.0.1:9000")
			So(config.Server.TCPListen, ShouldEqual, "127.0.0.1:9001")
			So(config.Server.Exclusive, ShouldBeTrue)
			So(config.Heartbeat.Interval, ShouldEqual, 2*time.Second)
			So(config.Telemetry.StrictKeys, ShouldBeTrue)
			So(config.Control.Gains.Roll, ShouldEqual, 0.01)
			So(config.Control.GripperThreshold, ShouldEqual, 250)
		})

		Convey("unset values keep their defaults", func() {
			So(config.Server.Path, ShouldEqual, "/")
			So(config.Control.Gains.Height, ShouldEqual, -0.001)
			So(config.Control.Gains.Pitch, ShouldEqual, -0.005)
			So(config.Simulation.TimeStep, ShouldEqual, 5*time.Millisecond)
		})

		Convey("home coords are set", func() {
			home, err := config.HomePosition()
			So(err, ShouldBeNil)
			So(home, ShouldResemble, mgl64.Vec3{1, 2, 3})
		})
	})

	Convey("incompatible versions are refused", t, func() {
		for _, version := range []string{"2.0.0", "0.9.0", "one"} {
			err := ParseConfig([]byte("version: "+version), DefaultConfig())
			So(err, ShouldNotBeNil)
		}
	})

	Convey("defaults validate", t, func() {
		config := DefaultConfig()
		So(config.Validate(), ShouldBeNil)
		So(config.Server.Listen, ShouldEqual, "0.0.0.0:1145")
		So(config.Heartbeat.Interval, ShouldEqual, 10*time.Second)

		Convey("a relative path is rejected", func() {
			config.Server.Path = "ws"
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("a zero heartbeat is rejected", func() {
			config.Heartbeat.Interval = 0
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("a non-positive status interval is rejected", func() {
			config.Server.StatusInterval = 0
			So(config.Validate(), ShouldNotBeNil)

			config.Server.StatusInterval = -time.Second
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("home needs three coordinates", func() {
			config.Simulation.Home = []float64{0, 1}
			So(config.Validate(), ShouldNotBeNil)
		})

		Convey("auth needs a secret", func() {
			config.Auth.Enabled = true
			So(config.Validate(), ShouldNotBeNil)
			config.Auth.Secret = "s3cret"
			So(config.Validate(), ShouldBeNil)

			config.Storage.Path = ""
			So(config.Validate(), ShouldNotBeNil)
		})
	})
}

func TestLoadConfig(t *testing.T) {
	Convey("environment overrides the file", t, func() {
		path := filepath.Join(t.TempDir(), "rcremote.yml")
		So(os.WriteFile(path, []byte(testYaml), 0o600), ShouldBeNil)

		t.Setenv("RCREMOTE_SERVER_LISTEN", "127.0.0.1:1200")
		t.Setenv("RCREMOTE_HEARTBEAT_INTERVAL", "250ms")
		t.Setenv("RCREMOTE_CONTROL_GAIN_PITCH", "-0.5")
		t.Setenv("RCREMOTE_SIM_HOME", "0,0,1")

		config, err := LoadConfig(path)
		So(err, ShouldBeNil)
		So(config.Server.Listen, ShouldEqual, "127.0.0.1:1200")
		So(config.Server.TCPListen, ShouldEqual, "127.0.0.1:9001")
		So(config.Heartbeat.Interval, ShouldEqual, 250*time.Millisecond)
		So(config.Control.Gains.Pitch, ShouldEqual, -0.5)
		So(config.Control.Gains.Roll, ShouldEqual, 0.01)

		home, err := config.HomePosition()
		So(err, ShouldBeNil)
		So(home, ShouldResemble, mgl64.Vec3{0, 0, 1})
	})

	Convey("a missing file is an error", t, func() {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
		So(err, ShouldNotBeNil)
	})

	Convey("no file means defaults", t, func() {
		config, err := LoadConfig("")
		So(err, ShouldBeNil)
		So(config.Server.Path, ShouldEqual, "/")
	})
}

func TestLoadConfigStatusInterval(t *testing.T) {
	Convey("a zero status interval from the environment fails to load", t, func() {
		t.Setenv("RCREMOTE_SERVER_STATUS_INTERVAL", "0s")

		_, err := LoadConfig("")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "statusInterval")
	})
}

func TestExampleConfig(t *testing.T) {
	Convey("the shipped example config loads", t, func() {
		config, err := LoadConfig(filepath.Join("..", "rcremote.example.yml"))
		So(err, ShouldBeNil)
		So(config.Server.Listen, ShouldEqual, "0.0.0.0:1145")
		So(config.Control.Gains, ShouldResemble, DefaultConfig().Control.Gains)
	})
}
