package agent

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"codesift.app/codesift/internal/model"
	"codesift.app/codesift/internal/queue"
)

type stubAgent struct {
	name    string
	update  model.AgentUpdate
	err     error
	panics  bool
	handled int
}

func (a *stubAgent) Name() string   { return a.name }
func (a *stubAgent) Stream() string { return a.name + "-messages" }

func (a *stubAgent) Handle(ctx context.Context, result model.AnalysisResult) (model.AgentUpdate, error) {
	a.handled++
	if a.panics {
		panic("agent exploded")
	}
	if a.err != nil {
		return model.AgentUpdate{}, a.err
	}
	return a.update, nil
}

type stubConsumer struct {
	group    string
	messages []queue.Message
	acked    []string
	requeued []queue.Message
	dlq      []queue.Message
}

func (c *stubConsumer) Group() string { return c.group }

func (c *stubConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	msgs := c.messages
	c.messages = nil
	return msgs, nil
}

func (c *stubConsumer) Ack(ctx context.Context, msg queue.Message) error {
	c.acked = append(c.acked, msg.ID)
	return nil
}

func (c *stubConsumer) Requeue(ctx context.Context, msg queue.Message, errMsg string) error {
	c.requeued = append(c.requeued, msg)
	return nil
}

func (c *stubConsumer) SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error {
	c.dlq = append(c.dlq, msg)
	return nil
}

type recordingProducer struct {
	streams []string
	bodies  []queue.ResultMessage
}

func (p *recordingProducer) Publish(ctx context.Context, stream string, msg queue.ResultMessage) (string, error) {
	p.streams = append(p.streams, stream)
	p.bodies = append(p.bodies, msg)
	return "1700000000000-0", nil
}

func (p *recordingProducer) Close() error { return nil }

type recordingUpdates struct {
	created []model.AgentUpdate
}

func (s *recordingUpdates) Create(ctx context.Context, runID int64, messageID string, update model.AgentUpdate) error {
	s.created = append(s.created, update)
	return nil
}

func (s *recordingUpdates) ListByRun(ctx context.Context, runID int64) ([]model.AgentUpdate, error) {
	return nil, nil
}

var _ = Describe("Runner", func() {
	var (
		docAgent *stubAgent
		consumer *stubConsumer
		producer *recordingProducer
		updates  *recordingUpdates
		runner   *Runner
	)

	resultMsg := func() queue.Message {
		payload, err := json.Marshal(model.AnalysisResult{
			RepositoryAnalysis: model.RepositoryAnalysis{OverallScore: 80, RiskLevel: model.RiskLow},
			Issues:             []model.Issue{{Type: model.IssueTypeQuality, Severity: model.SeverityLow}},
			Summary:            "minor findings",
		})
		Expect(err).NotTo(HaveOccurred())
		return queue.Message{
			ID:       "1700000000000-1",
			RunID:    42,
			RepoPath: "/repos/demo",
			Attempt:  1,
			Payload:  payload,
		}
	}

	BeforeEach(func() {
		docAgent = &stubAgent{
			name:   "doc-agent",
			update: model.AgentUpdate{Agent: "doc-agent", Action: "documentation_generated"},
		}
		consumer = &stubConsumer{group: "doc-agent"}
		producer = &recordingProducer{}
		updates = &recordingUpdates{}
		runner = NewRunner(docAgent, consumer, producer, updates, RunnerConfig{MaxAttempts: 3})
	})

	It("publishes the agent update, persists it, and acks", func() {
		msg := resultMsg()

		Expect(runner.ProcessMessage(context.Background(), msg)).To(Succeed())

		Expect(producer.streams).To(Equal([]string{"doc-agent-messages"}))
		Expect(producer.bodies[0].RunID).To(Equal(int64(42)))
		Expect(updates.created).To(HaveLen(1))
		Expect(updates.created[0].Action).To(Equal("documentation_generated"))
		Expect(consumer.acked).To(Equal([]string{"1700000000000-1"}))
	})

	It("acks and skips a retry copy tagged for a sibling group", func() {
		msg := resultMsg()
		msg.RetryGroup = "qa-agent"

		Expect(runner.ProcessMessage(context.Background(), msg)).To(Succeed())

		Expect(docAgent.handled).To(BeZero())
		Expect(producer.streams).To(BeEmpty())
		Expect(consumer.acked).To(Equal([]string{"1700000000000-1"}))
	})

	It("processes a retry copy tagged for its own group", func() {
		msg := resultMsg()
		msg.RetryGroup = "doc-agent"
		msg.Attempt = 2

		Expect(runner.ProcessMessage(context.Background(), msg)).To(Succeed())

		Expect(docAgent.handled).To(Equal(1))
		Expect(producer.streams).To(Equal([]string{"doc-agent-messages"}))
	})

	It("acks an undecodable payload without retrying", func() {
		msg := resultMsg()
		msg.Payload = []byte("not json")

		Expect(runner.ProcessMessage(context.Background(), msg)).To(Succeed())

		Expect(docAgent.handled).To(BeZero())
		Expect(producer.streams).To(BeEmpty())
		Expect(consumer.acked).To(Equal([]string{"1700000000000-1"}))
		Expect(consumer.requeued).To(BeEmpty())
		Expect(consumer.dlq).To(BeEmpty())
	})

	It("requeues a failed message below the attempt limit", func() {
		docAgent.err = errors.New("doc generation failed")
		consumer.messages = []queue.Message{resultMsg()}

		Expect(runner.processOneBatch(context.Background())).To(Succeed())

		Expect(consumer.requeued).To(HaveLen(1))
		Expect(consumer.dlq).To(BeEmpty())
		Expect(producer.streams).To(BeEmpty())
	})

	It("dead-letters a failed message at the attempt limit", func() {
		docAgent.err = errors.New("doc generation failed")
		msg := resultMsg()
		msg.Attempt = 3
		consumer.messages = []queue.Message{msg}

		Expect(runner.processOneBatch(context.Background())).To(Succeed())

		Expect(consumer.dlq).To(HaveLen(1))
		Expect(consumer.requeued).To(BeEmpty())
	})

	It("recovers a panicking agent and requeues the message", func() {
		docAgent.panics = true
		consumer.messages = []queue.Message{resultMsg()}

		Expect(runner.processOneBatch(context.Background())).To(Succeed())

		Expect(consumer.requeued).To(HaveLen(1))
	})

	It("keeps a sibling agent's updates intact when one agent fails", func() {
		docAgent.err = errors.New("doc generation failed")

		qaAgent := &stubAgent{
			name:   "qa-agent",
			update: model.AgentUpdate{Agent: "qa-agent", Action: "quality_check_completed"},
		}
		qaConsumer := &stubConsumer{group: "qa-agent"}
		qaProducer := &recordingProducer{}
		qaRunner := NewRunner(qaAgent, qaConsumer, qaProducer, &recordingUpdates{}, RunnerConfig{MaxAttempts: 3})

		msg := resultMsg()
		consumer.messages = []queue.Message{msg}
		qaConsumer.messages = []queue.Message{msg}

		Expect(runner.processOneBatch(context.Background())).To(Succeed())
		Expect(qaRunner.processOneBatch(context.Background())).To(Succeed())

		Expect(consumer.requeued).To(HaveLen(1))
		Expect(qaProducer.streams).To(Equal([]string{"qa-agent-messages"}))
		Expect(qaConsumer.requeued).To(BeEmpty())
	})
})
