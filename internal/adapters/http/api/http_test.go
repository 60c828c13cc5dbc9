package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/curvewatch/internal/adapters/http/api"
	"github.com/okian/curvewatch/internal/adapters/repository"
	"github.com/okian/curvewatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	store      *repository.MemoryStore
	rowsErr    error
	lastFilter repository.Filter
	inFlight   bool
	triggered  int
}

func newMockDeps() *mockDeps {
	return &mockDeps{store: repository.NewMemoryStore()}
}

func (m *mockDeps) Latest(ctx context.Context) (*model.Run, error) {
	return m.store.Latest(ctx)
}

func (m *mockDeps) Rows(ctx context.Context, f repository.Filter) ([]model.MetricRow, error) {
	m.lastFilter = f
	if m.rowsErr != nil {
		return nil, m.rowsErr
	}
	return m.store.Rows(ctx, f)
}

func (m *mockDeps) TriggerRun(context.Context) (string, bool) {
	if m.inFlight {
		return "", false
	}
	m.triggered++
	return "run-2", true
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} { return m.stats }

func sampleRun() *model.Run {
	row := func(series, segment string, age int, pbad float64) model.MetricRow {
		return model.MetricRow{
			Key:          model.DimensionalKey{Series: series, Segment: segment, RiskGroup: "5", UtilGroup: "3"},
			StatementAge: age,
			Source:       model.SourceActual,
			Pbad:         pbad,
			Utilization:  0.5,
		}
	}
	return &model.Run{
		RunID:   "run-1",
		Variant: model.Variant{PbadScale: 12, PvolDenominator: "credit_limit", ClampNegative: true},
		Stats:   model.RunStats{OutputRows: 3},
		Rows: []model.MetricRow{
			row("S1", "Y1", 1, -0.2),
			row("S1", "Y1", 2, 0.1),
			row("S2", "Y3+", 1, 0.3),
		},
		Profile:    &model.Profile{Skipped: []string{"dq30"}},
		Validation: []model.Validation{{Metric: "pbad", ActualCount: 3, HasAssumption: true}},
	}
}

func serve(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestServerRoutes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		stats := &mockStatsProvider{stats: map[string]interface{}{"runs": 1}}
		mux := http.NewServeMux()
		api.NewServer(deps, stats, 2).Register(context.Background(), mux)

		Convey("When no run has been published", func() {
			for _, path := range []string{"/runs/latest", "/metrics-rows", "/profile", "/validation"} {
				w := serve(mux, http.MethodGet, path)
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(w.Body.String(), ShouldContainSubstring, "not_found")
			}
		})

		Convey("When a run is published", func() {
			So(deps.store.Publish(context.Background(), sampleRun()), ShouldBeNil)

			Convey("Then /healthz serves Prometheus text", func() {
				w := serve(mux, http.MethodGet, "/healthz")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
			})

			Convey("Then /stats returns the provider's stats", func() {
				w := serve(mux, http.MethodGet, "/stats")
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["runs"], ShouldEqual, float64(1))
			})

			Convey("Then /runs/latest omits rows by default", func() {
				w := serve(mux, http.MethodGet, "/runs/latest")
				So(w.Code, ShouldEqual, http.StatusOK)
				var run model.Run
				So(json.Unmarshal(w.Body.Bytes(), &run), ShouldBeNil)
				So(run.RunID, ShouldEqual, "run-1")
				So(run.Stats.OutputRows, ShouldEqual, 3)
				So(run.Rows, ShouldBeEmpty)
			})

			Convey("Then /runs/latest?rows=true returns clamped rows", func() {
				w := serve(mux, http.MethodGet, "/runs/latest?rows=true")
				So(w.Code, ShouldEqual, http.StatusOK)
				var run model.Run
				So(json.Unmarshal(w.Body.Bytes(), &run), ShouldBeNil)
				So(run.Rows, ShouldHaveLength, 3)
				So(run.Rows[0].Pbad, ShouldEqual, 0.0)
				So(run.Rows[1].Pbad, ShouldEqual, 0.1)
			})

			Convey("Then /runs/latest rejects a malformed rows flag", func() {
				w := serve(mux, http.MethodGet, "/runs/latest?rows=maybe")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("Then /metrics-rows passes the filter through", func() {
				w := serve(mux, http.MethodGet, "/metrics-rows?series=s1&segment=Y1&risk_group=5&util_group=3&limit=1")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastFilter, ShouldResemble, repository.Filter{
					Series: "s1", Segment: "Y1", RiskGroup: "5", UtilGroup: "3", Limit: 1,
				})
				var body struct {
					Count int               `json:"count"`
					Rows  []model.MetricRow `json:"rows"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Count, ShouldEqual, 1)
				So(body.Rows[0].Key.Series, ShouldEqual, "S1")
			})

			Convey("Then /metrics-rows caps the limit", func() {
				w := serve(mux, http.MethodGet, "/metrics-rows?limit=500")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastFilter.Limit, ShouldEqual, 2)

				w = serve(mux, http.MethodGet, "/metrics-rows")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastFilter.Limit, ShouldEqual, 2)
			})

			Convey("Then /metrics-rows rejects a bad limit", func() {
				for _, limit := range []string{"0", "-3", "ten"} {
					w := serve(mux, http.MethodGet, "/metrics-rows?limit="+limit)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
				}
			})

			Convey("Then /metrics-rows reports store failures as 500", func() {
				deps.rowsErr = errors.New("redis down")
				w := serve(mux, http.MethodGet, "/metrics-rows")
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(w.Body.String(), ShouldContainSubstring, "redis down")
			})

			Convey("Then /profile and /validation return the reports", func() {
				w := serve(mux, http.MethodGet, "/profile")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"dq30"`)

				w = serve(mux, http.MethodGet, "/validation")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"metric":"pbad"`)
			})
		})

		Convey("When a run is triggered", func() {
			w := serve(mux, http.MethodPost, "/runs")

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, "run-2")
				So(deps.triggered, ShouldEqual, 1)
			})
		})

		Convey("When a run is triggered while one is in flight", func() {
			deps.inFlight = true
			w := serve(mux, http.MethodPost, "/runs")

			Convey("Then it conflicts", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(w.Body.String(), ShouldContainSubstring, "run_in_flight")
			})
		})

		Convey("When using the wrong method", func() {
			So(serve(mux, http.MethodGet, "/runs").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(serve(mux, http.MethodPost, "/stats").Code, ShouldEqual, http.StatusMethodNotAllowed)
			w := serve(mux, http.MethodDelete, "/metrics-rows")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped in the metrics middleware", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}, "teapot")

		Convey("Then the status and body pass through", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/teapot", http.NoBody))
			So(w.Code, ShouldEqual, http.StatusTeapot)
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "short and stout")
		})
	})
}
