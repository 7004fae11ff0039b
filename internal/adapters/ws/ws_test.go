package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smartystreets/goconvey/convey"
	ws "github.com/xiangenhu/polyuhulab-sub001/internal/adapters/ws"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
	logging "github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsURL rewrites an httptest server URL to the ws scheme.
func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// waitForState polls until the client reaches the wanted state or the
// deadline passes.
func waitForState(c *ws.Client, want ws.State, deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if c.State() == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return c.State() == want
}

func TestClient_Creation(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given client construction", t, func() {
		convey.Convey("When the endpoint is a ws URL", func() {
			c, err := ws.NewClient("ws://localhost:3000/ws")
			convey.So(err, convey.ShouldBeNil)
			convey.So(c, convey.ShouldNotBeNil)
			convey.So(c.State(), convey.ShouldEqual, ws.StateDisconnected)
		})

		convey.Convey("When the endpoint scheme is wrong", func() {
			_, err := ws.NewClient("http://localhost:3000/ws")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestClient_ReceivesMessages(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a portal pushing updates", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			_ = conn.WriteJSON(types.Message{Type: types.EventTaskUpdate, ProjectID: "p1"})
			_ = conn.WriteJSON(types.Message{Type: types.EventProjectUpdate, ProjectID: "p1"})

			// Hold the connection open until the client hangs up.
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer srv.Close()

		c, err := ws.NewClient(wsURL(srv))
		convey.So(err, convey.ShouldBeNil)

		tasks, cancelTasks := c.Subscribe(types.EventTaskUpdate)
		defer cancelTasks()
		all, cancelAll := c.Subscribe()
		defer cancelAll()

		go c.Run(context.Background())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = c.Shutdown(ctx)
		}()

		convey.Convey("Then a filtered subscriber sees only its kind", func() {
			select {
			case msg := <-tasks:
				convey.So(msg.Type, convey.ShouldEqual, types.EventTaskUpdate)
				convey.So(msg.ProjectID, convey.ShouldEqual, "p1")
			case <-time.After(2 * time.Second):
				t.Fatal("task update never arrived")
			}

			select {
			case msg := <-tasks:
				t.Fatalf("unexpected message for filtered subscriber: %s", msg.Type)
			case <-time.After(100 * time.Millisecond):
			}
		})

		convey.Convey("Then the firehose subscriber sees everything", func() {
			var kinds []types.EventType
			timeout := time.After(2 * time.Second)
			for len(kinds) < 2 {
				select {
				case msg := <-all:
					kinds = append(kinds, msg.Type)
				case <-timeout:
					t.Fatalf("only got %d messages", len(kinds))
				}
			}
			convey.So(kinds[0], convey.ShouldEqual, types.EventTaskUpdate)
			convey.So(kinds[1], convey.ShouldEqual, types.EventProjectUpdate)
		})
	})
}

func TestClient_TokenAndHeartbeat(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a portal that checks the token and sends heartbeats", t, func() {
		var gotToken atomic.Value
		heartbeats := make(chan types.Message, 4)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotToken.Store(r.URL.Query().Get("token"))

			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			_ = conn.WriteJSON(types.Message{Type: types.EventHeartbeat})

			for {
				var msg types.Message
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Type == types.EventHeartbeat {
					select {
					case heartbeats <- msg:
					default:
					}
				}
			}
		}))
		defer srv.Close()

		c, err := ws.NewClient(wsURL(srv),
			ws.WithTokenSource(ws.TokenSourceFunc(func() string { return "session-token" })),
			ws.WithHeartbeatInterval(25*time.Millisecond),
		)
		convey.So(err, convey.ShouldBeNil)

		go c.Run(context.Background())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = c.Shutdown(ctx)
		}()

		convey.So(waitForState(c, ws.StateConnected, 2*time.Second), convey.ShouldBeTrue)

		convey.Convey("Then the dial carried the bearer token", func() {
			convey.So(gotToken.Load(), convey.ShouldEqual, "session-token")
		})

		convey.Convey("Then heartbeats flow back to the portal", func() {
			// One as the answer to the server's beat, more from the ticker.
			count := 0
			timeout := time.After(2 * time.Second)
			for count < 2 {
				select {
				case <-heartbeats:
					count++
				case <-timeout:
					t.Fatalf("only %d heartbeats arrived", count)
				}
			}
			convey.So(count, convey.ShouldBeGreaterThanOrEqualTo, 2)
		})
	})
}

func TestClient_Reconnect(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a portal that drops the first connection", t, func() {
		var conns atomic.Int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := conns.Add(1)
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}

			if n == 1 {
				// First connection dies right after one message.
				_ = conn.WriteJSON(types.Message{Type: types.EventTaskUpdate, ProjectID: "before-drop"})
				_ = conn.Close()
				return
			}

			defer conn.Close()
			_ = conn.WriteJSON(types.Message{Type: types.EventTaskUpdate, ProjectID: "after-drop"})
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer srv.Close()

		c, err := ws.NewClient(wsURL(srv), ws.WithReconnectDelay(10*time.Millisecond))
		convey.So(err, convey.ShouldBeNil)

		msgs, cancel := c.Subscribe(types.EventTaskUpdate)
		defer cancel()

		go c.Run(context.Background())
		defer func() {
			ctx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
			defer cancelShutdown()
			_ = c.Shutdown(ctx)
		}()

		convey.Convey("Then messages arrive across the reconnect", func() {
			var got []string
			timeout := time.After(3 * time.Second)
			for len(got) < 2 {
				select {
				case msg := <-msgs:
					got = append(got, msg.ProjectID)
				case <-timeout:
					t.Fatalf("got %v before timeout", got)
				}
			}
			convey.So(got, convey.ShouldResemble, []string{"before-drop", "after-drop"})
			convey.So(conns.Load(), convey.ShouldBeGreaterThanOrEqualTo, 2)
		})
	})
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a portal that refuses every upgrade", t, func() {
		var attempts atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "no websocket here", http.StatusBadRequest)
		}))
		defer srv.Close()

		c, err := ws.NewClient(wsURL(srv),
			ws.WithMaxReconnects(3),
			ws.WithReconnectDelay(10*time.Millisecond),
		)
		convey.So(err, convey.ShouldBeNil)

		done := make(chan struct{})
		go func() {
			c.Run(context.Background())
			close(done)
		}()

		convey.Convey("Then the client stops in the terminal state", func() {
			select {
			case <-done:
			case <-time.After(3 * time.Second):
				t.Fatal("client kept trying past its budget")
			}

			convey.So(c.State(), convey.ShouldEqual, ws.StateGivenUp)
			convey.So(attempts.Load(), convey.ShouldEqual, 3)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			convey.So(c.Shutdown(ctx), convey.ShouldBeNil)
		})

		convey.Convey("Then subscriber channels are closed", func() {
			<-done

			msgs, cancel := c.Subscribe()
			defer cancel()

			select {
			case _, ok := <-msgs:
				convey.So(ok, convey.ShouldBeFalse)
			case <-time.After(time.Second):
				t.Fatal("subscriber channel left open after give-up")
			}
		})
	})
}

func TestClient_SlowSubscriberLosesMessages(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a subscriber with a one-slot buffer", t, func() {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			for i := 0; i < 5; i++ {
				_ = conn.WriteJSON(types.Message{Type: types.EventCollaboration})
			}
			close(release)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer srv.Close()

		c, err := ws.NewClient(wsURL(srv), ws.WithSubscriberBuffer(1))
		convey.So(err, convey.ShouldBeNil)

		msgs, cancel := c.Subscribe(types.EventCollaboration)
		defer cancel()

		go c.Run(context.Background())
		defer func() {
			ctx, cancelShutdown := context.WithTimeout(context.Background(), time.Second)
			defer cancelShutdown()
			_ = c.Shutdown(ctx)
		}()

		convey.Convey("Then overflow is dropped instead of stalling the channel", func() {
			<-release
			// Give the read loop time to work through all five frames.
			time.Sleep(100 * time.Millisecond)

			received := 0
		drain:
			for {
				select {
				case <-msgs:
					received++
				default:
					break drain
				}
			}
			convey.So(received, convey.ShouldEqual, 1)
		})
	})
}

func TestClient_ShutdownIdempotent(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a running client", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}))
		defer srv.Close()

		c, err := ws.NewClient(wsURL(srv))
		convey.So(err, convey.ShouldBeNil)

		go c.Run(context.Background())
		convey.So(waitForState(c, ws.StateConnected, 2*time.Second), convey.ShouldBeTrue)

		convey.Convey("When shutting down twice", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.So(c.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(c.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(c.State(), convey.ShouldEqual, ws.StateClosed)
		})
	})
}
