package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"codesift.app/codesift/common/id"
	"codesift.app/codesift/internal/analysis"
	"codesift.app/codesift/internal/dispatch"
	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/queue"
	"codesift.app/codesift/internal/service"
	"codesift.app/codesift/internal/snapshot"
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

type mockProducer struct {
	err      error
	stream   string
	captured *queue.ResultMessage
}

func (m *mockProducer) Publish(ctx context.Context, stream string, msg queue.ResultMessage) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.stream = stream
	m.captured = &msg
	return "1700000000000-0", nil
}

func (m *mockProducer) Close() error {
	return nil
}

type mockRunStore struct {
	created  *model.AnalysisRun
	finished *model.AnalysisRun
}

func (m *mockRunStore) Create(ctx context.Context, run *model.AnalysisRun) error {
	copied := *run
	m.created = &copied
	return nil
}

func (m *mockRunStore) Finish(ctx context.Context, run *model.AnalysisRun) error {
	copied := *run
	m.finished = &copied
	return nil
}

func (m *mockRunStore) GetByID(ctx context.Context, id int64) (*model.AnalysisRun, error) {
	return nil, nil
}

func (m *mockRunStore) ListRecent(ctx context.Context, limit int32) ([]model.AnalysisRun, error) {
	return nil, nil
}

const responseWithIssues = `{
	"repository_analysis": {"overall_score": 55, "risk_level": "high", "deployment_ready": false},
	"issues": [{"type": "security", "severity": "critical", "file": "auth.py", "line": 7,
		"message": "sql injection", "rule": "SEC-002", "suggestion": "use placeholders", "confidence": 0.95}],
	"recommendations": ["parameterize queries"],
	"summary": "one critical finding"
}`

const cleanResponse = `{
	"repository_analysis": {"overall_score": 97, "risk_level": "low", "deployment_ready": true},
	"issues": [],
	"recommendations": [],
	"summary": "no findings"
}`

var _ = Describe("AnalysisService", func() {
	var (
		fetcher  *mockFetcher
		invoker  *analysis.FakeInvoker
		producer *mockProducer
		runs     *mockRunStore
		svc      *service.AnalysisService
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		fetcher = &mockFetcher{snap: snapshot.Snapshot{"main.py": "print('x')"}}
		invoker = &analysis.FakeInvoker{Responses: []string{responseWithIssues}}
		producer = &mockProducer{}
		runs = &mockRunStore{}

		svc = service.NewAnalysisService(fetcher, invoker,
			dispatch.New(producer, "code-analysis-results"), runs)
	})

	Describe("Analyze", func() {
		It("runs the whole pipeline and publishes the result", func() {
			result, err := svc.Analyze(ctx, service.AnalyzeParams{
				RepoPath: "/repos/demo",
				Revision: "abc123",
				Kind:     "comprehensive",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.MessageID).To(Equal("1700000000000-0"))
			Expect(result.PublishErr).To(BeNil())

			Expect(result.Result.Issues).To(HaveLen(1))
			Expect(result.Result.RepositoryAnalysis.TotalFiles).To(Equal(1))
			Expect(result.Result.Metadata).NotTo(BeNil())
			Expect(result.Result.Metadata.AIModel).To(Equal("fake-model"))

			Expect(producer.stream).To(Equal("code-analysis-results"))
			Expect(invoker.Calls).To(HaveLen(1))
			Expect(invoker.Calls[0]).To(ContainSubstring("print('x')"))
		})

		It("records the run on both ends", func() {
			result, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})
			Expect(err).NotTo(HaveOccurred())

			Expect(runs.created).NotTo(BeNil())
			Expect(runs.created.Status).To(Equal(model.RunStatusRunning))
			Expect(runs.created.RepoPath).To(Equal("/repos/demo"))

			Expect(runs.finished).NotTo(BeNil())
			Expect(runs.finished.Status).To(Equal(model.RunStatusSucceeded))
			Expect(runs.finished.IssueCount).To(Equal(1))
			Expect(runs.finished.FilesAnalyzed).To(Equal(1))
			Expect(runs.finished.FinishedAt).NotTo(BeNil())
			Expect(runs.finished.ID).To(Equal(result.Run.ID))
		})

		It("defaults revision and analysis type", func() {
			result, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Run.CommitHash).To(Equal("HEAD"))
			Expect(result.Run.AnalysisType).To(Equal("comprehensive"))
		})

		It("skips publication for a clean result", func() {
			invoker.Responses = []string{cleanResponse}

			result, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.MessageID).To(BeEmpty())
			Expect(producer.captured).To(BeNil())
			Expect(runs.finished.MessageID).To(BeNil())
		})

		It("absorbs unparseable model output via the fallback", func() {
			invoker.Responses = []string{"this is not JSON at all"}

			result, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})
			Expect(err).NotTo(HaveOccurred())

			Expect(result.Result.RawResponse).To(Equal("this is not JSON at all"))
			Expect(result.Result.Issues).To(HaveLen(1))
			Expect(result.Result.Issues[0].Rule).To(Equal("AI-PARSE-001"))
			// The fallback carries an issue, so it still gets published.
			Expect(result.MessageID).NotTo(BeEmpty())
		})

		Context("when the repository cannot be fetched", func() {
			BeforeEach(func() {
				fetcher.err = &snapshot.FetchError{RepoPath: "/repos/demo", Reason: "no source files found after filtering"}
			})

			It("fails the run with the fetch error", func() {
				_, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})
				Expect(snapshot.IsFetchError(err)).To(BeTrue())

				Expect(runs.finished).NotTo(BeNil())
				Expect(runs.finished.Status).To(Equal(model.RunStatusFailed))
				Expect(runs.finished.Error).NotTo(BeNil())
			})
		})

		Context("when invocation fails", func() {
			BeforeEach(func() {
				invoker.Err = errors.New("quota exceeded")
			})

			It("fails the run with the invocation error", func() {
				_, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})
				Expect(analysis.IsInvocationError(err)).To(BeTrue())

				Expect(runs.finished.Status).To(Equal(model.RunStatusFailed))
			})
		})

		Context("when publication fails", func() {
			BeforeEach(func() {
				producer.err = errors.New("connection refused")
			})

			It("returns the result with the publish error attached", func() {
				result, err := svc.Analyze(ctx, service.AnalyzeParams{RepoPath: "/repos/demo"})

				Expect(err).NotTo(HaveOccurred())
				Expect(result.Result).NotTo(BeNil())
				Expect(result.MessageID).To(BeEmpty())
				Expect(dispatch.IsPublishError(result.PublishErr)).To(BeTrue())

				// The analysis itself still counts as a success.
				Expect(runs.finished.Status).To(Equal(model.RunStatusSucceeded))
			})
		})
	})
})
