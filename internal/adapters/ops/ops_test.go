package ops_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/ops"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestMux() (*http.ServeMux, *mockStatsProvider) {
	_ = logger.Init()

	stats := &mockStatsProvider{stats: map[string]interface{}{
		"started":     true,
		"queueLength": 3,
		"liveState":   "connected",
	}}
	mux := http.NewServeMux()
	ops.NewServer(stats).Register(context.Background(), mux)
	return mux, stats
}

func TestServer_Health(t *testing.T) {
	Convey("Given a registered ops server", t, func() {
		mux, _ := newTestMux()

		Convey("When probing /healthz", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			Convey("Then it reports ok as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

				var body struct {
					Status string `json:"status"`
					Uptime string `json:"uptime"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body.Status, ShouldEqual, "ok")
				So(body.Uptime, ShouldNotBeEmpty)
			})
		})

		Convey("When probing /healthz with the wrong method", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

			Convey("Then it is not found", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_Stats(t *testing.T) {
	Convey("Given a registered ops server", t, func() {
		mux, stats := newTestMux()

		Convey("When fetching /stats", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the provider snapshot comes back as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var body map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["started"], ShouldEqual, true)
				So(body["queueLength"], ShouldEqual, 3)
				So(body["liveState"], ShouldEqual, "connected")
			})
		})

		Convey("When the provider snapshot changes", func() {
			stats.stats["queueLength"] = 7

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

			Convey("Then the next fetch sees the new values", func() {
				var body map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &body), ShouldBeNil)
				So(body["queueLength"], ShouldEqual, 7)
			})
		})
	})
}

func TestServer_Metrics(t *testing.T) {
	Convey("Given a registered ops server", t, func() {
		mux, _ := newTestMux()

		Convey("When scraping /metrics", func() {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then Prometheus metrics are served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "hulab_client_")
			})

			Convey("Then the tracker metrics are among them", func() {
				body := rec.Body.String()
				So(strings.Contains(body, "hulab_client_statements_tracked_total") ||
					strings.Contains(body, "hulab_client_queue_size"), ShouldBeTrue)
			})
		})
	})
}
