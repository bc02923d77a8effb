package agent_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"codesift.app/codesift/internal/agent"
	"codesift.app/codesift/internal/model"
)

var _ = Describe("DocAgent", func() {
	var (
		doc *agent.DocAgent
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		doc = agent.NewDocAgent("doc-agent-messages")
	})

	It("exposes its identity and stream", func() {
		Expect(doc.Name()).To(Equal("doc-agent"))
		Expect(doc.Stream()).To(Equal("doc-agent-messages"))
	})

	It("summarizes issues by type and echoes recommendations", func() {
		result := model.AnalysisResult{
			Issues: []model.Issue{
				{Type: model.IssueTypeSecurity, Severity: model.SeverityHigh},
				{Type: model.IssueTypeSecurity, Severity: model.SeverityLow},
				{Type: model.IssueTypeQuality, Severity: model.SeverityMedium},
			},
			Recommendations: []string{"split the module", "add input validation"},
			Summary:         "mixed findings",
			Metadata:        &model.Metadata{RepoPath: "/repos/demo"},
		}

		update, err := doc.Handle(ctx, result)
		Expect(err).NotTo(HaveOccurred())

		Expect(update.Agent).To(Equal("doc-agent"))
		Expect(update.RepoPath).To(Equal("/repos/demo"))
		Expect(update.Action).To(Equal("documentation_generated"))
		Expect(update.Summary).To(Equal("Generated documentation for 3 issues"))

		counts := update.Details["issue_counts"].(map[string]int)
		Expect(counts["security"]).To(Equal(2))
		Expect(counts["quality"]).To(Equal(1))
		Expect(counts["performance"]).To(Equal(0))

		Expect(update.Details["recommendations"]).To(Equal([]string{"split the module", "add input validation"}))
		Expect(update.Details["analysis_summary"]).To(Equal("mixed findings"))
	})

	It("falls back to an unknown repo path without metadata", func() {
		update, err := doc.Handle(ctx, model.AnalysisResult{})
		Expect(err).NotTo(HaveOccurred())
		Expect(update.RepoPath).To(Equal("unknown"))
	})
})

var _ = Describe("TestAgent", func() {
	var (
		tester *agent.TestAgent
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tester = agent.NewTestAgent("test-agent-messages")
	})

	It("exposes its identity and stream", func() {
		Expect(tester.Name()).To(Equal("test-agent"))
		Expect(tester.Stream()).To(Equal("test-agent-messages"))
	})

	It("proposes coverage only for reported issue types", func() {
		result := model.AnalysisResult{
			Issues: []model.Issue{
				{Type: model.IssueTypeSecurity, Severity: model.SeverityHigh},
				{Type: model.IssueTypePerformance, Severity: model.SeverityLow},
			},
		}

		update, err := tester.Handle(ctx, result)
		Expect(err).NotTo(HaveOccurred())

		Expect(update.Action).To(Equal("tests_proposed"))
		proposals := update.Details["coverage_proposals"].([]string)
		Expect(proposals).To(HaveLen(2))
		Expect(proposals[0]).To(ContainSubstring("negative-path"))
		Expect(proposals[1]).To(ContainSubstring("benchmarks"))
	})

	It("proposes nothing for a clean result", func() {
		update, err := tester.Handle(ctx, model.AnalysisResult{})
		Expect(err).NotTo(HaveOccurred())

		proposals := update.Details["coverage_proposals"].([]string)
		Expect(proposals).To(BeEmpty())
	})
})
