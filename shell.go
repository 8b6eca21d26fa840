package main

import (
	"errors"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/abiosoft/ishell/v2"
	"github.com/dustin/go-humanize"
)

// newShell builds the operator console.
func (e *Env) newShell() *ishell.Shell {
	shell := ishell.New()
	shell.Println("rcremote development shell")
	shell.ShowPrompt(true)

	sessionIDs := func([]string) []string {
		sessions := e.Conductor.Sessions()
		ids := make([]string, 0, len(sessions))
		for _, s := range sessions {
			ids = append(ids, s.ID)
		}
		return ids
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "show controller and connection status",
		Func: func(c *ishell.Context) {
			status := e.statusPayload()
			c.Printf("up %s, %d session(s)\n", status.Uptime, status.Sessions)
			c.Printf("controller running=%v cycles=%s\n", status.Controller.Running, humanize.Comma(int64(status.Controller.Cycles)))
			pos := status.Controller.Target.Position
			c.Printf("target (%.4f, %.4f, %.4f) gripper open=%v\n", pos[0], pos[1], pos[2], status.Controller.Target.GripperOpen)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "telemetry",
		Help: "print the latest telemetry record",
		Func: func(c *ishell.Context) {
			payload := e.telemetryPayload()
			if payload.UpdatedAt == nil {
				c.Println("no telemetry received yet")
				return
			}
			c.Printf("v%d, %s\n", payload.Version, payload.Age)
			c.Println(payload.Line)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "sessions",
		Help: "list connected clients",
		Func: func(c *ishell.Context) {
			sessions := e.Conductor.Sessions()
			if len(sessions) == 0 {
				c.Println("no clients connected")
				return
			}
			var out strings.Builder
			tw := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
			tw.Write([]byte("ID\tREMOTE\tTRANSPORT\tCONNECTED\tUPDATES\tPINGS\n"))
			for _, s := range sessions {
				tw.Write([]byte(s.ID + "\t" + s.Remote + "\t" + s.Transport + "\t" +
					humanize.Time(s.ConnectedAt) + "\t" + humanize.Comma(int64(s.Updates)) + "\t" +
					strconv.FormatUint(s.Pings, 10) + "\n"))
			}
			tw.Flush()
			c.Print(out.String())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "history",
		Help: "history [n] - list the most recent sessions",
		Func: func(c *ishell.Context) {
			if e.History == nil {
				c.Err(errors.New("session history is disabled"))
				return
			}
			n := 10
			if len(c.Args) >= 1 {
				var err error
				if n, err = strconv.Atoi(c.Args[0]); err != nil || n < 1 {
					c.Err(errors.New("usage: history [n]"))
					return
				}
			}

			sessions, err := e.History.Recent(n)
			if err != nil {
				c.Err(err)
				return
			}
			total, err := e.History.Count()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d of %s session(s) on record\n", len(sessions), humanize.Comma(int64(total)))
			for _, s := range sessions {
				state := "open"
				if !s.Open() {
					state = "lasted " + s.Duration().String()
				}
				c.Printf("%s %s %s via %s, %s updates, %s %s\n", s.ID, humanize.Time(s.ConnectedAt), s.Remote, s.Transport,
					humanize.Comma(int64(s.Updates)), state, s.Reason)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "kick",
		Help:      "kick <id> - disconnect a client",
		Completer: sessionIDs,
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errors.New("usage: kick <id>"))
				return
			}
			if err := e.Conductor.Kick(c.Args[0]); err != nil {
				c.Err(err)
				return
			}
			c.Println("Session closed")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "createsuperuser",
		Help: "createsuperuser <email> <password>",
		Func: func(c *ishell.Context) {
			// disable the '>>>' for cleaner same line input.
			c.ShowPrompt(false)
			defer c.ShowPrompt(true) // yes, revert when done.

			// get email
			var email string
			if len(c.Args) >= 1 {
				email = c.Args[0]
			} else {
				c.Print("Email: ")
				email = c.ReadLine()
			}

			// get password
			var password string
			if len(c.Args) >= 2 {
				password = c.Args[1]
			} else {
				c.Print("Password: ")
				password = c.ReadPassword()
			}

			if _, err := e.CreateUser(email, password, true); err != nil {
				c.Err(err)
				return
			}
			c.Println("Superuser created")
		},
	})

	return shell
}
