package comms

import (
	"time"
)

// SessionInfo is a point-in-time view of a session, used by status surfaces
// and the session history.
type SessionInfo struct {
	ID           string    `json:"id"`
	Remote       string    `json:"remote"`
	Transport    string    `json:"transport"`
	State        string    `json:"state"`
	ConnectedAt  time.Time `json:"connectedAt"`
	ClosedAt     time.Time `json:"closedAt,omitempty"`
	Received     uint64    `json:"received"`
	Updates      uint64    `json:"updates"`
	Rejected     uint64    `json:"rejected"`
	Unrecognized uint64    `json:"unrecognized"`
	Pings        uint64    `json:"pings"`
	Reason       string    `json:"reason,omitempty"`
}

// Observer is notified as sessions come and go. Calls are made from the
// session's goroutine and should not block.
type Observer interface {
	SessionOpened(info SessionInfo)
	SessionClosed(info SessionInfo)
}
