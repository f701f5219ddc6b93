// Package chain 提供基于 eino compose 的 LLM 调用链
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	llmctx "ideaforge-api/internal/domain/service"
	wfmodel "ideaforge-api/internal/workflow/model"
	wfnode "ideaforge-api/internal/workflow/node"
	workflowport "ideaforge-api/internal/workflow/port"
	"ideaforge-api/pkg/logger"
	"ideaforge-api/pkg/metrics"
	"ideaforge-api/pkg/tracer"
)

// ParseError 结构化调用的输出不是合法 JSON
type ParseError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stage %s returned malformed structured output: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// agentTemplate 角色提示词作为 system 消息，项目上下文作为 user 消息
var agentTemplate = einoprompt.FromMessages(
	schema.FString,
	schema.SystemMessage("{role_prompt}"),
	schema.UserMessage("{context}"),
)

// AgentChain 单次、无重试、无缓存的 agent 调用
type AgentChain struct {
	factory         workflowport.ChatModelFactory
	defaultProvider string

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.AgentInput, *schema.Message]
	chainErr  error
}

// NewAgentChain 创建 agent 调用链，defaultProvider 用于指标标签与未指定提供商的调用
func NewAgentChain(factory workflowport.ChatModelFactory, defaultProvider string) *AgentChain {
	return &AgentChain{factory: factory, defaultProvider: strings.TrimSpace(defaultProvider)}
}

// Invoke 调用模型；ExpectStructured 时校验并返回 JSON，不合法时返回 *ParseError
func (c *AgentChain) Invoke(ctx context.Context, in *wfmodel.AgentInput) (*wfmodel.AgentOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.RolePrompt) == "" {
		return nil, fmt.Errorf("role prompt is empty")
	}

	provider := c.providerFor(in)
	providerLabel := provider
	if providerLabel == "" {
		providerLabel = "default"
	}
	stage := in.Stage
	if stage == "" {
		stage = "unknown"
	}

	ctx = llmctx.WithProvider(llmctx.WithStage(ctx, stage), providerLabel)
	ctx, span := tracer.Start(ctx, "chain.AgentChain.Invoke", trace.WithAttributes(
		attribute.String("llm.stage", stage),
		attribute.String("llm.provider", providerLabel),
		attribute.Bool("llm.structured", in.ExpectStructured),
	))
	defer span.End()

	runnable, err := c.getChain()
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	start := time.Now()
	msg, err := runnable.Invoke(ctx, in)
	elapsed := time.Since(start)
	metrics.LLMCallDuration.WithLabelValues(providerLabel, stage).Observe(elapsed.Seconds())
	if err != nil {
		metrics.LLMCallTotal.WithLabelValues(providerLabel, stage, "error").Inc()
		tracer.RecordError(span, err)
		return nil, err
	}

	out := &wfmodel.AgentOutput{
		Text: msg.Content,
		Usage: wfmodel.LLMUsageMeta{
			Provider:    providerLabel,
			Duration:    elapsed,
			GeneratedAt: time.Now(),
		},
	}
	if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
		out.Usage.PromptTokens = msg.ResponseMeta.Usage.PromptTokens
		out.Usage.CompletionTokens = msg.ResponseMeta.Usage.CompletionTokens
		metrics.LLMTokensUsed.WithLabelValues(providerLabel, stage, "prompt").Add(float64(out.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(providerLabel, stage, "completion").Add(float64(out.Usage.CompletionTokens))
	}

	if in.ExpectStructured {
		raw := wfnode.ExtractJSONObject(msg.Content)
		if perr := checkJSON(raw); perr != nil {
			metrics.LLMCallTotal.WithLabelValues(providerLabel, stage, "parse_error").Inc()
			parseErr := &ParseError{Stage: stage, Raw: msg.Content, Err: perr}
			tracer.RecordError(span, parseErr)
			return nil, parseErr
		}
		out.Text = raw
		out.JSON = json.RawMessage(raw)
	}

	metrics.LLMCallTotal.WithLabelValues(providerLabel, stage, "success").Inc()
	return out, nil
}

func (c *AgentChain) providerFor(in *wfmodel.AgentInput) string {
	if p := strings.TrimSpace(in.Provider); p != "" {
		return p
	}
	return c.defaultProvider
}

func checkJSON(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty output")
	}
	if raw[0] != '{' {
		return fmt.Errorf("output is not a JSON object")
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return err
	}
	return nil
}

type agentChainState struct {
	In       *wfmodel.AgentInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *AgentChain) getChain() (compose.Runnable[*wfmodel.AgentInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *AgentChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.AgentInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.AgentInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.AgentInput) (*agentChainState, error) {
			msgs, err := agentTemplate.Format(ctx, map[string]any{
				"role_prompt": in.RolePrompt,
				"context":     in.ContextText,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to format agent prompt: %w", err)
			}
			return &agentChainState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("agent.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *agentChainState) (*agentChainState, error) {
			provider := c.providerFor(st.In)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, modelOptions(st.In, true)...)
			if err != nil && st.In.ExpectStructured && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm response_format not supported, fallback to prompt-only",
					"stage", st.In.Stage,
					"provider", provider,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, modelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("agent.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *agentChainState) (*schema.Message, error) {
			return st.OutMsg, nil
		}),
		compose.WithNodeName("agent.finalize"),
	)

	return chain.Compile(ctx)
}

func modelOptions(in *wfmodel.AgentInput, enableJSONMode bool) []model.Option {
	if !in.ExpectStructured || !enableJSONMode {
		return nil
	}
	return []model.Option{
		openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}),
	}
}
