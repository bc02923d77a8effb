package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"codesift.app/codesift/common/id"
	"codesift.app/codesift/internal/analysis"
	"codesift.app/codesift/internal/dispatch"
	"codesift.app/codesift/internal/http/handler"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/queue"
	"codesift.app/codesift/internal/service"
	"codesift.app/codesift/internal/snapshot"
	"codesift.app/codesift/internal/store"
)

type mockFetcher struct {
	snap snapshot.Snapshot
	err  error
}

func (m *mockFetcher) Fetch(ctx context.Context, repoRef, revision string) (snapshot.Snapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

type mockProducer struct{}

func (m *mockProducer) Publish(ctx context.Context, stream string, msg queue.ResultMessage) (string, error) {
	return "1700000000000-0", nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockRunStore struct {
	run *model.AnalysisRun
}

func (m *mockRunStore) Create(ctx context.Context, run *model.AnalysisRun) error { return nil }
func (m *mockRunStore) Finish(ctx context.Context, run *model.AnalysisRun) error { return nil }

func (m *mockRunStore) GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	if m.run == nil {
		return nil, store.ErrNotFound
	}
	return m.run, nil
}

func (m *mockRunStore) ListRecent(ctx context.Context, limit int32) ([]model.AnalysisRun, error) {
	if m.run == nil {
		return nil, nil
	}
	return []model.AnalysisRun{*m.run}, nil
}

const handlerResponse = `{
	"repository_analysis": {"overall_score": 55, "risk_level": "high", "deployment_ready": false},
	"issues": [{"type": "quality", "severity": "medium", "file": "a.py", "line": 1,
		"message": "long function", "rule": "Q-001", "suggestion": "split it", "confidence": 0.8}],
	"recommendations": [],
	"summary": "minor findings"
}`

var _ = Describe("AnalysisHandler", func() {
	var (
		router  *gin.Engine
		fetcher *mockFetcher
		invoker *analysis.FakeInvoker
		runs    *mockRunStore
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		Expect(id.Init(1)).To(Succeed())

		fetcher = &mockFetcher{snap: snapshot.Snapshot{"a.py": "pass"}}
		invoker = &analysis.FakeInvoker{Responses: []string{handlerResponse}}
		runs = &mockRunStore{}

		svc := service.NewAnalysisService(fetcher, invoker,
			dispatch.New(&mockProducer{}, "code-analysis-results"), nil)
		h := handler.NewAnalysisHandler(svc, runs)

		router = gin.New()
		router.POST("/analyses", h.Analyze)
		router.GET("/analyses", h.ListRuns)
		router.GET("/analyses/:id", h.GetRun)
	})

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/analyses", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("returns 200 with the analysis result", func() {
		w := post(`{"repoPath": "/repos/demo", "commitHash": "abc123", "analysisType": "comprehensive"}`)

		Expect(w.Code).To(Equal(http.StatusOK))

		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["status"]).To(Equal("success"))
		Expect(resp["message_id"]).To(Equal("1700000000000-0"))
		Expect(resp["issues"]).To(HaveLen(1))
	})

	It("returns 400 on invalid request body", func() {
		Expect(post(`{`).Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 when repoPath is missing", func() {
		Expect(post(`{"commitHash": "abc"}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects snake_case request keys", func() {
		Expect(post(`{"repo_path": "/repos/demo"}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 400 when the repository cannot be fetched", func() {
		fetcher.err = &snapshot.FetchError{RepoPath: "/repos/demo", Reason: "local path does not exist or is not a directory"}

		Expect(post(`{"repoPath": "/repos/demo"}`).Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 500 when invocation fails", func() {
		invoker.Err = errors.New("endpoint unavailable")

		Expect(post(`{"repoPath": "/repos/demo"}`).Code).To(Equal(http.StatusInternalServerError))
	})

	Describe("GetRun", func() {
		It("returns 404 for an unknown run", func() {
			req := httptest.NewRequest(http.MethodGet, "/analyses/123", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 for a non-numeric id", func() {
			req := httptest.NewRequest(http.MethodGet, "/analyses/abc", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns the run when it exists", func() {
			runs.run = &model.AnalysisRun{ID: 123, RepoPath: "/repos/demo", Status: model.RunStatusSucceeded}

			req := httptest.NewRequest(http.MethodGet, "/analyses/123", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))

			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			run := resp["run"].(map[string]any)
			Expect(run["repo_path"]).To(Equal("/repos/demo"))
		})
	})

	Describe("ListRuns", func() {
		It("returns an empty list rather than null", func() {
			req := httptest.NewRequest(http.MethodGet, "/analyses", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(`"runs":[]`))
		})

		It("rejects a bad limit", func() {
			req := httptest.NewRequest(http.MethodGet, "/analyses?limit=0", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
