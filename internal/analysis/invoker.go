package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"codesift.app/codesift/internal/model"
)

// InvocationError wraps a failure of the inference capability itself:
// transport, auth, or quota. It is distinct from a malformed-but-delivered
// response, which the normalizer absorbs.
type InvocationError struct {
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invoking analysis model: %v", e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsInvocationError reports whether err is (or wraps) an InvocationError.
func IsInvocationError(err error) bool {
	var ie *InvocationError
	return errors.As(err, &ie)
}

// Invoker sends a prompt to an opaque inference capability and returns the
// raw response text. Implementations own the sampling knobs.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	Model() string
}

// InvokerConfig holds endpoint identity plus the determinism/coverage knobs.
type InvokerConfig struct {
	APIKey  string
	BaseURL string
	Model   string

	MaxOutputTokens int
	Temperature     float64
	TopP            float64
}

const systemPrompt = "You are a static analysis assistant. You respond with a single JSON object and nothing else."

type openAIInvoker struct {
	client openai.Client
	cfg    InvokerConfig
	schema any
}

// NewInvoker creates an OpenAI-backed Invoker. The response format carries a
// JSON schema generated from the AnalysisResult type, nudging the model
// toward parseable output; the normalizer still defends against the cases
// where that fails.
func NewInvoker(cfg InvokerConfig) (Invoker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 4096
	}

	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	return &openAIInvoker{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		schema: reflector.Reflect(&model.AnalysisResult{}),
	}, nil
}

func (i *openAIInvoker) Model() string {
	return i.cfg.Model
}

func (i *openAIInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: i.cfg.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(i.cfg.MaxOutputTokens)),
		Temperature: openai.Float(i.cfg.Temperature),
		TopP:        openai.Float(i.cfg.TopP),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        "analysis_result",
					Description: openai.String("Repository analysis findings"),
					Schema:      i.schema,
					Strict:      openai.Bool(false),
				},
			},
		},
	}

	start := time.Now()
	resp, err := i.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", &InvocationError{Err: err}
	}

	slog.DebugContext(ctx, "analysis invocation completed",
		"model", i.cfg.Model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return "", &InvocationError{Err: fmt.Errorf("no choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// FakeInvoker returns canned responses; used in tests and local development.
type FakeInvoker struct {
	Responses []string
	Err       error
	Calls     []string

	next int
}

func (f *FakeInvoker) Model() string {
	return "fake-model"
}

func (f *FakeInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	f.Calls = append(f.Calls, prompt)
	if f.Err != nil {
		return "", &InvocationError{Err: f.Err}
	}
	if len(f.Responses) == 0 {
		return "", nil
	}
	resp := f.Responses[f.next%len(f.Responses)]
	f.next++
	return resp, nil
}
