package eino

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	llmctx "ideaforge-api/internal/domain/service"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestChatModelCallback_RecordsTokenUsage(t *testing.T) {
	rec := withRecorder(t)
	h := newChatModelCallbackHandler()

	info := &einocb.RunInfo{Name: "agent", Type: "OpenAI"}
	ctx := llmctx.WithProvider(llmctx.WithStage(context.Background(), "prd"), "openai")
	ctx = h.OnStart(ctx, info, &model.CallbackInput{Config: &model.Config{Model: "gpt-4o"}})
	h.OnEnd(ctx, info, &model.CallbackOutput{TokenUsage: &model.TokenUsage{PromptTokens: 12, CompletionTokens: 30}})

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.generate", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "gpt-4o", attrs["llm.model"].AsString())
	assert.Equal(t, "prd", attrs["generation.stage"].AsString())
	assert.Equal(t, "openai", attrs["llm.provider"].AsString())
	assert.Equal(t, "agent", attrs["eino.node_name"].AsString())
	assert.Equal(t, int64(12), attrs["llm.prompt_tokens"].AsInt64())
	assert.Equal(t, int64(30), attrs["llm.completion_tokens"].AsInt64())
}

func TestChatModelCallback_RecordsError(t *testing.T) {
	rec := withRecorder(t)
	h := newChatModelCallbackHandler()

	ctx := h.OnStart(context.Background(), nil, nil)
	h.OnError(ctx, nil, errors.New("rate limited"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "rate limited", spans[0].Status().Description)
}

func TestElapsed_WithoutStart(t *testing.T) {
	assert.Zero(t, elapsed(context.Background()))
}
