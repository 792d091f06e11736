package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/okian/blackjack/internal/adapters/http/api"
	"github.com/okian/blackjack/internal/adapters/repository"
	service "github.com/okian/blackjack/internal/app"
	"github.com/okian/blackjack/internal/domain/card"
	"github.com/okian/blackjack/internal/domain/model"
	"github.com/okian/blackjack/internal/domain/strategy"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDependencies struct {
	mu             sync.Mutex
	seen           map[string]bool
	enqueueSuccess bool
	enqueued       []model.Frame
	analyzed       []model.Frame
	analyzeErr     error
	results        map[string]model.FrameResult
	latest         *model.FrameResult
	recentLimit    int
	recentErr      error
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		seen:           make(map[string]bool),
		enqueueSuccess: true,
		results:        make(map[string]model.FrameResult),
	}
}

func (m *mockDependencies) SeenAndRecord(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDependencies) Unrecord(_ context.Context, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, id)
}

func (m *mockDependencies) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.seen))
}

func (m *mockDependencies) Enqueue(_ context.Context, f model.Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enqueueSuccess {
		return false
	}
	m.enqueued = append(m.enqueued, f)
	return true
}

func (m *mockDependencies) Analyze(_ context.Context, f model.Frame) (model.FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyzeErr != nil {
		return model.FrameResult{}, m.analyzeErr
	}
	m.analyzed = append(m.analyzed, f)
	return model.FrameResult{FrameID: f.ID, Action: strategy.Stand, HasAction: true, PlayerTotal: 20}, nil
}

func (m *mockDependencies) Advise(_ context.Context, hand strategy.Hand, dealer card.Rank) (strategy.Action, error) {
	return strategy.AdviseStrict(hand, dealer)
}

func (m *mockDependencies) Result(_ context.Context, id string) (model.FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[id]
	if !ok {
		return model.FrameResult{}, fmt.Errorf("frame %q: %w", id, repository.ErrNotFound)
	}
	return res, nil
}

func (m *mockDependencies) Latest(_ context.Context) (model.FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return model.FrameResult{}, repository.ErrNotFound
	}
	return *m.latest, nil
}

func (m *mockDependencies) Recent(_ context.Context, n int) ([]model.FrameResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentLimit = n
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	out := make([]model.FrameResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	return out[:min(n, len(out))], nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newMux(deps *mockDependencies) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

const frameBody = `{"frame_id":"f1","height":720,"detections":[{"label":"KH","confidence":0.9,"bbox":[10,500,60,580]}]}`

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("Then health serves Prometheus metrics", func() {
			w := do(mux, "GET", "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "blackjack_advisor")
		})

		Convey("Then stats serves the provider's map", func() {
			w := do(mux, "GET", "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["started"], ShouldEqual, true)
		})

		Convey("Then unknown paths are not found", func() {
			w := do(mux, "GET", "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Then wrong methods are rejected", func() {
			So(do(mux, "DELETE", "/frames", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(do(mux, "GET", "/advice", "").Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(do(mux, "POST", "/healthz", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPostFrame(t *testing.T) {
	Convey("Given the frames endpoint", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When a valid frame is posted", func() {
			w := do(mux, "POST", "/frames", frameBody)

			Convey("Then it is accepted and queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				body := decode(w)
				So(body["status"], ShouldEqual, "accepted")
				So(body["frame_id"], ShouldEqual, "f1")
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].Height, ShouldEqual, 720)
				So(deps.enqueued[0].Detections[0].Label, ShouldEqual, "KH")
			})

			Convey("And posting it again is reported as a duplicate", func() {
				w := do(mux, "POST", "/frames", frameBody)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["duplicate"], ShouldEqual, true)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When the frame has no ID", func() {
			w := do(mux, "POST", "/frames", `{"height":100,"detections":[]}`)

			Convey("Then one is assigned", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				id, _ := decode(w)["frame_id"].(string)
				So(id, ShouldNotBeBlank)
				So(deps.enqueued[0].ID, ShouldEqual, id)
			})
		})

		Convey("When the queue is full", func() {
			deps.enqueueSuccess = false
			w := do(mux, "POST", "/frames", frameBody)

			Convey("Then it answers 429 and forgets the ID", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode(w)["code"], ShouldEqual, "backpressure")
				So(deps.Size(), ShouldEqual, 0)
			})
		})

		Convey("When the body is invalid", func() {
			cases := []string{
				`not json`,
				`{"frame_id":"x","height":0}`,
				`{"frame_id":"x","height":-5}`,
				`{"frame_id":"x","height":10,"detections":[{"label":" ","confidence":0.9,"bbox":[0,0,1,1]}]}`,
			}

			Convey("Then every case is a bad request", func() {
				for _, body := range cases {
					w := do(mux, "POST", "/frames", body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["code"], ShouldEqual, "bad_request")
				}
				So(deps.enqueued, ShouldBeEmpty)
			})
		})
	})
}

func TestAnalyzeFrame(t *testing.T) {
	Convey("Given the analyze endpoint", t, func() {
		deps := newMockDependencies()
		mux := newMux(deps)

		Convey("When a frame is analyzed", func() {
			w := do(mux, "POST", "/frames/analyze", frameBody)

			Convey("Then the result is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["frame_id"], ShouldEqual, "f1")
				So(body["action"], ShouldEqual, "Stand")
				So(body["has_action"], ShouldEqual, true)
				So(deps.analyzed, ShouldHaveLength, 1)
			})
		})

		Convey("When the service is not running", func() {
			deps.analyzeErr = service.ErrNotStarted
			w := do(mux, "POST", "/frames/analyze", frameBody)

			Convey("Then it answers 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(decode(w)["code"], ShouldEqual, "unavailable")
			})
		})

		Convey("When the pipeline fails unexpectedly", func() {
			deps.analyzeErr = fmt.Errorf("disk on fire")
			w := do(mux, "POST", "/frames/analyze", frameBody)

			Convey("Then it answers 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestReadResults(t *testing.T) {
	Convey("Given stored results", t, func() {
		deps := newMockDependencies()
		deps.results["f1"] = model.FrameResult{FrameID: "f1", SkipReason: model.SkipDealerEmpty}
		deps.results["f2"] = model.FrameResult{FrameID: "f2", Action: strategy.Hit, HasAction: true}
		mux := newMux(deps)

		Convey("Then a frame can be fetched by ID", func() {
			w := do(mux, "GET", "/frames/f1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["skip_reason"], ShouldEqual, model.SkipDealerEmpty)
		})

		Convey("Then an unknown frame is not found", func() {
			w := do(mux, "GET", "/frames/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decode(w)["code"], ShouldEqual, "not_found")
		})

		Convey("Then latest is not found until something is stored", func() {
			So(do(mux, "GET", "/latest", "").Code, ShouldEqual, http.StatusNotFound)

			res := deps.results["f2"]
			deps.latest = &res
			w := do(mux, "GET", "/latest", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["frame_id"], ShouldEqual, "f2")
		})

		Convey("Then the list uses the default limit", func() {
			w := do(mux, "GET", "/frames", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decode(w)["count"], ShouldEqual, 2.0)
			So(deps.recentLimit, ShouldEqual, 20)
		})

		Convey("Then large limits are capped", func() {
			So(do(mux, "GET", "/frames?limit=100000", "").Code, ShouldEqual, http.StatusOK)
			So(deps.recentLimit, ShouldEqual, 500)
		})

		Convey("Then bad limits are rejected", func() {
			for _, q := range []string{"0", "-1", "ten"} {
				So(do(mux, "GET", "/frames?limit="+q, "").Code, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("Then an empty store lists an empty array", func() {
			deps.results = map[string]model.FrameResult{}
			w := do(mux, "GET", "/frames?limit=5", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"results":[]`)
		})
	})
}

func TestAdvice(t *testing.T) {
	Convey("Given the advice endpoint", t, func() {
		mux := newMux(newMockDependencies())

		Convey("When a soft hand is posted", func() {
			w := do(mux, "POST", "/advice", `{"hand":["A","6"],"dealer":"9"}`)

			Convey("Then the action and total are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decode(w)
				So(body["action"], ShouldEqual, "Hit")
				So(body["sum"], ShouldEqual, 17.0)
				So(body["total"], ShouldEqual, 7.0)
				So(body["soft"], ShouldEqual, true)
				So(body["dealer"], ShouldEqual, 9.0)
			})
		})

		Convey("When a pair of eights is posted", func() {
			w := do(mux, "POST", "/advice", `{"hand":["8","8"],"dealer":"10"}`)

			Convey("Then the advice is Split", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode(w)["action"], ShouldEqual, "Split")
			})
		})

		Convey("When the input is invalid", func() {
			cases := []string{
				`{"hand":["K","6"],"dealer":"9"}`,
				`{"hand":["10","6"],"dealer":"Q"}`,
				`{"hand":[],"dealer":"9"}`,
				`{"hand":["10"]}`,
				`{"hand":["10","1"],"dealer":"9"}`,
				`{"hand":["10","6"],"dealer":"12"}`,
				`[1,2]`,
			}

			Convey("Then every case is a bad request", func() {
				for _, body := range cases {
					w := do(mux, "POST", "/advice", body)
					So(w.Code, ShouldEqual, http.StatusBadRequest)
					So(decode(w)["code"], ShouldEqual, "bad_request")
				}
			})
		})
	})
}

func TestIngestLimit(t *testing.T) {
	Convey("Given a server limited to one frame per burst", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps, &mockStatsProvider{}, api.WithIngestLimit(0.001, 1)).Register(context.Background(), mux)

		Convey("When frames arrive faster than the limit", func() {
			first := do(mux, "POST", "/frames", frameBody)
			second := do(mux, "POST", "/frames", strings.Replace(frameBody, `"f1"`, `"f2"`, 1))
			analyze := do(mux, "POST", "/frames/analyze", frameBody)

			Convey("Then only the first is accepted", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(second.Code, ShouldEqual, http.StatusTooManyRequests)
				So(second.Header().Get("Retry-After"), ShouldEqual, "1")
				So(decode(second)["code"], ShouldEqual, "rate_limited")
				So(analyze.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.enqueued, ShouldHaveLength, 1)
			})

			Convey("Then reads are not limited", func() {
				So(do(mux, "GET", "/frames", "").Code, ShouldEqual, http.StatusOK)
			})
		})
	})

	Convey("Given a zero limit", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps, &mockStatsProvider{}, api.WithIngestLimit(0, 0)).Register(context.Background(), mux)

		Convey("Then ingest is unlimited", func() {
			for i := range 5 {
				body := strings.Replace(frameBody, `"f1"`, fmt.Sprintf(`"f%d"`, i+10), 1)
				So(do(mux, "POST", "/frames", body).Code, ShouldEqual, http.StatusAccepted)
			}
		})
	})
}

func TestCORS(t *testing.T) {
	request := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/stats", http.NoBody)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	Convey("Given the API behind CORS", t, func() {
		mux := newMux(newMockDependencies())

		Convey("When origins are listed", func() {
			h := api.CORS(mux, []string{"http://table.test"})

			Convey("Then only listed origins are echoed", func() {
				So(request(h, "http://table.test").Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "http://table.test")
				So(request(h, "http://other.test").Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})

		Convey("When any origin is allowed", func() {
			h := api.CORS(mux, []string{"*"})

			Convey("Then the wildcard is returned", func() {
				So(request(h, "http://other.test").Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			})
		})

		Convey("When no origins are configured", func() {
			h := api.CORS(mux, nil)

			Convey("Then no CORS headers are added", func() {
				w := request(h, "http://table.test")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Access-Control-Allow-Origin"), ShouldBeEmpty)
			})
		})
	})
}
