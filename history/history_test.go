package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/CodedInternet/rcremote/comms"
	"github.com/asdine/storm/v3"
	. "github.com/smartystreets/goconvey/convey"
)

func TestHistory(t *testing.T) {
	Convey("a history store", t, func() {
		db, err := storm.Open(filepath.Join(t.TempDir(), "history.db"))
		So(err, ShouldBeNil)
		defer db.Close()

		store, err := New(db, nil)
		So(err, ShouldBeNil)

		start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		for i, id := range []string{"a", "b", "c"} {
			store.SessionOpened(comms.SessionInfo{
				ID:          id,
				Remote:      "10.0.0.1:5000",
				Transport:   comms.TransportWebSocket,
				State:       "connected",
				ConnectedAt: start.Add(time.Duration(i) * time.Minute),
			})
		}

		Convey("opened sessions are recorded", func() {
			count, err := store.Count()
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 3)

			session, err := store.Get("b")
			So(err, ShouldBeNil)
			So(session.Open(), ShouldBeTrue)
			So(session.Duration(), ShouldEqual, time.Duration(0))
		})

		Convey("a close rewrites the record", func() {
			store.SessionClosed(comms.SessionInfo{
				ID:          "a",
				Transport:   comms.TransportWebSocket,
				ConnectedAt: start,
				ClosedAt:    start.Add(90 * time.Second),
				Updates:     42,
				Reason:      "session closed by remote",
			})

			session, err := store.Get("a")
			So(err, ShouldBeNil)
			So(session.Open(), ShouldBeFalse)
			So(session.Duration(), ShouldEqual, 90*time.Second)
			So(session.Updates, ShouldEqual, uint64(42))

			count, _ := store.Count()
			So(count, ShouldEqual, 3)
		})

		Convey("Recent lists newest first", func() {
			sessions, err := store.Recent(2)
			So(err, ShouldBeNil)
			So(sessions, ShouldHaveLength, 2)
			So(sessions[0].ID, ShouldEqual, "c")
			So(sessions[1].ID, ShouldEqual, "b")
		})

		Convey("unknown ids are not found", func() {
			_, err := store.Get("zzz")
			So(err, ShouldEqual, ErrNotFound)
		})
	})
}
