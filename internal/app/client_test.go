package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/journal"
	app "github.com/xiangenhu/polyuhulab-sub001/internal/app"
	"github.com/xiangenhu/polyuhulab-sub001/internal/auth"
	"github.com/xiangenhu/polyuhulab-sub001/internal/config"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// stubPortal fakes the HU Lab portal: the auth endpoints plus the xAPI
// statement collector. failSends batches are rejected with a 503 before
// the collector starts accepting.
type stubPortal struct {
	mu        sync.Mutex
	denyLogin bool
	failSends int
	attempts  int
	received  map[string]int // statement ID -> accepted count
	verbs     map[string]int // verb IRI -> accepted count
	lastAuth  string         // Authorization header on the last batch
}

func newStubPortal() *stubPortal {
	return &stubPortal{
		received: make(map[string]int),
		verbs:    make(map[string]int),
	}
}

func (p *stubPortal) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		deny := p.denyLogin
		p.mu.Unlock()
		if deny {
			writeJSON(w, http.StatusUnauthorized,
				`{"success":false,"error":{"code":"INVALID_CREDENTIALS","message":"wrong password"}}`)
			return
		}
		creds := map[string]any{
			"token": signedToken(time.Now().Add(time.Hour)),
			"user":  portalUser(),
		}
		raw, _ := json.Marshal(map[string]any{"success": true, "data": creds})
		writeJSON(w, http.StatusOK, string(raw))
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})
	mux.HandleFunc("/api/xapi/statements", func(w http.ResponseWriter, r *http.Request) {
		var batch []statement.Statement
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			writeJSON(w, http.StatusBadRequest,
				`{"success":false,"error":{"code":"VALIDATION_ERROR","message":"malformed batch"}}`)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		p.attempts++
		p.lastAuth = r.Header.Get("Authorization")
		if p.attempts <= p.failSends {
			writeJSON(w, http.StatusServiceUnavailable,
				`{"success":false,"error":{"code":"SERVER_ERROR","message":"collector overloaded"}}`)
			return
		}
		for _, st := range batch {
			p.received[st.ID]++
			p.verbs[st.Verb.ID]++
		}
		writeJSON(w, http.StatusOK, `{"success":true}`)
	})
	return mux
}

func (p *stubPortal) heal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSends = 0
}

func (p *stubPortal) deny() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denyLogin = true
}

func (p *stubPortal) counts() (attempts int, received map[string]int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.received))
	for id, n := range p.received {
		out[id] = n
	}
	return p.attempts, out
}

func (p *stubPortal) verbCount(iri string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verbs[iri]
}

func (p *stubPortal) authHeader() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuth
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// signedToken mints an HS256 token with the given expiry. The client
// never verifies signatures, so any secret works.
func signedToken(expiresAt time.Time) string {
	claims := jwt.StandardClaims{}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = expiresAt.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		panic(err)
	}
	return token
}

func portalUser() model.User {
	return model.User{ID: "u1", Email: "ada@hulab.polyu.edu.hk", Name: "Ada Lovelace", Role: "researcher"}
}

// testConfig shrinks the pipeline timings so tests finish quickly.
func testConfig(portalURL, stateDir string) *config.Config {
	cfg := config.New(context.Background())
	cfg.BaseURL = portalURL
	cfg.StateDir = stateDir
	cfg.QueueSize = 64
	cfg.BatchSize = 8
	cfg.FlushIntervalMS = 50
	cfg.RetryDelayMS = 20
	cfg.DedupeSize = 256
	cfg.WSMaxReconnect = 0
	cfg.WSReconnectDelayMS = 10
	return cfg
}

// labStatement builds a valid page-view statement.
func labStatement() statement.Statement {
	return statement.New(
		statement.AgentMbox("Ada Lovelace", "ada@hulab.polyu.edu.hk"),
		statement.Experienced,
		statement.Activity(statement.ActivityIRI("page", "dashboard"), "Dashboard", "page"),
	)
}

// waitFor polls cond until it is true or the deadline passes.
func waitFor(deadline time.Duration, cond func() bool) bool {
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestClient_New(t *testing.T) {
	Convey("Given a new client with default configuration", t, func() {
		client := app.New(nil)

		Convey("Then it should be created with defaults", func() {
			So(client, ShouldNotBeNil)

			stats := client.GetStats()
			So(stats["started"], ShouldBeFalse)
			So(stats["queueCapacity"], ShouldEqual, 1_000)
			So(stats["batchSize"], ShouldEqual, 10)
		})

		Convey("Then operations before Start are refused", func() {
			err := client.Track(context.Background(), labStatement())
			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)

			_, err = client.Login(context.Background(), "ada@hulab.polyu.edu.hk", "secret")
			So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestClient_StartStop(t *testing.T) {
	Convey("Given a client against a stub portal", t, func() {
		portal := newStubPortal()
		srv := httptest.NewServer(portal.handler())
		defer srv.Close()

		ctx := context.Background()
		client := app.New(testConfig(srv.URL, t.TempDir()))

		Convey("When starting the client", func() {
			So(client.Start(ctx), ShouldBeNil)
			defer func() { _ = client.Stop(ctx) }()

			Convey("Then it reports a running anonymous session", func() {
				stats := client.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["loggedIn"], ShouldBeFalse)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["journalLength"], ShouldEqual, 0)
			})

			Convey("And a second Start is a no-op", func() {
				So(client.Start(ctx), ShouldBeNil)
			})
		})

		Convey("When the client is stopped", func() {
			So(client.Start(ctx), ShouldBeNil)
			So(client.Stop(ctx), ShouldBeNil)

			Convey("Then tracking is refused again", func() {
				err := client.Track(ctx, labStatement())
				So(errors.Is(err, app.ErrNotStarted), ShouldBeTrue)
			})

			Convey("And a second Stop is harmless", func() {
				So(client.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestClient_Track(t *testing.T) {
	Convey("Given a running client", t, func() {
		portal := newStubPortal()
		srv := httptest.NewServer(portal.handler())
		defer srv.Close()

		ctx := context.Background()
		client := app.New(testConfig(srv.URL, t.TempDir()))
		So(client.Start(ctx), ShouldBeNil)
		defer func() { _ = client.Stop(ctx) }()

		Convey("When tracking a statement without an actor identifier", func() {
			bad := statement.New(
				statement.Actor{Name: "Nobody"},
				statement.Experienced,
				statement.Activity(statement.ActivityIRI("page", "dashboard"), "", "page"),
			)

			Convey("Then it is rejected as invalid", func() {
				So(errors.Is(client.Track(ctx, bad), statement.ErrInvalidStatement), ShouldBeTrue)
			})
		})

		Convey("When tracking the same statement twice", func() {
			st := labStatement()
			So(client.Track(ctx, st), ShouldBeNil)

			Convey("Then the second submission is a duplicate", func() {
				err := client.Track(ctx, st)
				So(errors.Is(err, app.ErrDuplicateStatement), ShouldBeTrue)
			})
		})

		Convey("When tracking a batch of statements", func() {
			ids := make([]string, 0, 20)
			for i := 0; i < 20; i++ {
				st := labStatement()
				ids = append(ids, st.ID)
				So(client.Track(ctx, st), ShouldBeNil)
			}

			Convey("Then every statement reaches the portal exactly once", func() {
				delivered := waitFor(5*time.Second, func() bool {
					_, received := portal.counts()
					for _, id := range ids {
						if received[id] == 0 {
							return false
						}
					}
					return true
				})
				So(delivered, ShouldBeTrue)

				_, received := portal.counts()
				for _, id := range ids {
					So(received[id], ShouldEqual, 1)
				}
			})

			Convey("Then the journal empties after delivery", func() {
				drained := waitFor(5*time.Second, func() bool {
					n, ok := client.GetStats()["journalLength"].(int)
					return ok && n == 0
				})
				So(drained, ShouldBeTrue)
			})
		})
	})
}

func TestClient_RetryAfterFailure(t *testing.T) {
	Convey("Given a portal that rejects the first two batches", t, func() {
		portal := newStubPortal()
		portal.failSends = 2
		srv := httptest.NewServer(portal.handler())
		defer srv.Close()

		ctx := context.Background()
		client := app.New(testConfig(srv.URL, t.TempDir()))
		So(client.Start(ctx), ShouldBeNil)
		defer func() { _ = client.Stop(ctx) }()

		Convey("When tracking statements through the outage", func() {
			ids := make([]string, 0, 12)
			for i := 0; i < 12; i++ {
				st := labStatement()
				ids = append(ids, st.ID)
				So(client.Track(ctx, st), ShouldBeNil)
			}

			Convey("Then failed batches are requeued and resent until accepted", func() {
				delivered := waitFor(10*time.Second, func() bool {
					_, received := portal.counts()
					for _, id := range ids {
						if received[id] == 0 {
							return false
						}
					}
					return true
				})
				So(delivered, ShouldBeTrue)

				attempts, received := portal.counts()
				So(attempts, ShouldBeGreaterThanOrEqualTo, 3)
				for _, id := range ids {
					So(received[id], ShouldEqual, 1)
				}
			})
		})
	})
}

func TestClient_RestartRestoresJournal(t *testing.T) {
	Convey("Given statements tracked while the portal is down", t, func() {
		portal := newStubPortal()
		portal.failSends = 1 << 30
		srv := httptest.NewServer(portal.handler())
		defer srv.Close()

		ctx := context.Background()
		stateDir := t.TempDir()

		first := app.New(testConfig(srv.URL, stateDir))
		So(first.Start(ctx), ShouldBeNil)

		ids := make([]string, 0, 3)
		for i := 0; i < 3; i++ {
			st := labStatement()
			ids = append(ids, st.ID)
			So(first.Track(ctx, st), ShouldBeNil)
		}

		// The final drain attempt fails too, so everything stays journaled.
		So(first.Stop(ctx), ShouldBeNil)

		Convey("Then the statements survive in the journal", func() {
			store, err := journal.Open(filepath.Join(stateDir, "journal.db"))
			So(err, ShouldBeNil)
			n, err := store.Len(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 3)
			So(store.Close(), ShouldBeNil)

			Convey("And a restarted client delivers them once the portal heals", func() {
				portal.heal()

				second := app.New(testConfig(srv.URL, stateDir))
				So(second.Start(ctx), ShouldBeNil)
				defer func() { _ = second.Stop(ctx) }()

				delivered := waitFor(10*time.Second, func() bool {
					_, received := portal.counts()
					for _, id := range ids {
						if received[id] == 0 {
							return false
						}
					}
					return true
				})
				So(delivered, ShouldBeTrue)

				_, received := portal.counts()
				for _, id := range ids {
					So(received[id], ShouldEqual, 1)
				}
			})
		})
	})
}

func TestClient_SessionLifecycle(t *testing.T) {
	Convey("Given a running client", t, func() {
		portal := newStubPortal()
		srv := httptest.NewServer(portal.handler())
		defer srv.Close()

		ctx := context.Background()
		stateDir := t.TempDir()
		client := app.New(testConfig(srv.URL, stateDir))
		So(client.Start(ctx), ShouldBeNil)
		defer func() { _ = client.Stop(ctx) }()

		Convey("When logging in", func() {
			session, err := client.Login(ctx, "ada@hulab.polyu.edu.hk", "secret")

			Convey("Then a valid session is established", func() {
				So(err, ShouldBeNil)
				So(session.User.Email, ShouldEqual, "ada@hulab.polyu.edu.hk")
				So(client.Sessions().Valid(), ShouldBeTrue)
				So(client.GetStats()["loggedIn"], ShouldBeTrue)
			})

			Convey("Then the sign-in statement reaches the portal with the bearer token", func() {
				arrived := waitFor(5*time.Second, func() bool {
					return portal.verbCount(statement.LoggedIn.ID) > 0
				})
				So(arrived, ShouldBeTrue)
				So(portal.authHeader(), ShouldStartWith, "Bearer ")
			})

			Convey("And when logging out again", func() {
				So(client.Logout(ctx), ShouldBeNil)

				Convey("Then the session is gone", func() {
					So(client.Sessions().Valid(), ShouldBeFalse)
					_, err := os.Stat(filepath.Join(stateDir, "session.json"))
					So(os.IsNotExist(err), ShouldBeTrue)
				})

				Convey("Then the sign-out statement is delivered", func() {
					arrived := waitFor(5*time.Second, func() bool {
						return portal.verbCount(statement.LoggedOut.ID) > 0
					})
					So(arrived, ShouldBeTrue)
				})
			})
		})

		Convey("When the portal rejects the credentials", func() {
			portal.deny()
			_, err := client.Login(ctx, "ada@hulab.polyu.edu.hk", "wrong")

			Convey("Then the typed auth error surfaces", func() {
				So(errors.Is(err, auth.ErrAuthenticationFailed), ShouldBeTrue)
				So(client.Sessions().Valid(), ShouldBeFalse)
			})

			Convey("Then a notification explains the failure", func() {
				notices := client.Notifications().Recent()
				So(notices, ShouldNotBeEmpty)
				So(notices[len(notices)-1].Text, ShouldContainSubstring, "incorrect")
			})
		})
	})
}

func TestClient_ExpiredSessionTreatedAsLoggedOut(t *testing.T) {
	Convey("Given a persisted session whose token has expired", t, func() {
		portal := newStubPortal()
		srv := httptest.NewServer(portal.handler())
		defer srv.Close()

		ctx := context.Background()
		stateDir := t.TempDir()

		stale := auth.Session{
			Token:     signedToken(time.Now().Add(-time.Hour)),
			User:      portalUser(),
			IssuedAt:  time.Now().Add(-2 * time.Hour).UTC(),
			ExpiresAt: time.Now().Add(-time.Hour),
		}
		raw, err := json.Marshal(stale)
		So(err, ShouldBeNil)
		So(os.WriteFile(filepath.Join(stateDir, "session.json"), raw, 0o600), ShouldBeNil)

		client := app.New(testConfig(srv.URL, stateDir))
		So(client.Start(ctx), ShouldBeNil)
		defer func() { _ = client.Stop(ctx) }()

		Convey("Then the client treats the session as logged out", func() {
			So(client.Sessions().Valid(), ShouldBeFalse)
			So(client.GetStats()["loggedIn"], ShouldBeFalse)

			// The account is still known, just no longer authenticated.
			session, ok := client.Sessions().Current()
			So(ok, ShouldBeTrue)
			So(session.User.Email, ShouldEqual, "ada@hulab.polyu.edu.hk")
		})

		Convey("Then outgoing batches carry no stale bearer token", func() {
			So(client.Track(ctx, labStatement()), ShouldBeNil)

			arrived := waitFor(5*time.Second, func() bool {
				attempts, _ := portal.counts()
				return attempts > 0
			})
			So(arrived, ShouldBeTrue)
			So(portal.authHeader(), ShouldBeEmpty)
		})
	})
}
