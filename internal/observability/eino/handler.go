// Package eino 为 Eino embedding 组件挂载指标与追踪回调
package eino

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/embedding"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"media-search-api/pkg/logger"
	"media-search-api/pkg/metrics"
)

// startTimeKey 记录调用开始时间，OnEnd/OnError 时计算耗时
type startTimeKey struct{}

// modelKey OnStart 时记录模型名，OnError 拿不到输入
type modelKey struct{}

func newEmbeddingCallbackHandler() *cbtemplate.EmbeddingCallbackHandler {
	return &cbtemplate.EmbeddingCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *embedding.CallbackInput) context.Context {
			component := componentName(info)
			modelName := modelNameFromInput(input)

			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())
			ctx = context.WithValue(ctx, modelKey{}, modelName)

			texts := 0
			if input != nil {
				texts = len(input.Texts)
			}
			metrics.EmbeddingTextsTotal.WithLabelValues(component).Add(float64(texts))

			ctx, _ = otel.Tracer("eino").Start(ctx, "embedding.embed", trace.WithAttributes(
				attribute.String("eino.component", component),
				attribute.String("embedding.model", modelName),
				attribute.Int("embedding.texts", texts),
			))
			return ctx
		},

		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *embedding.CallbackOutput) context.Context {
			component := componentName(info)
			modelName := modelFromContext(ctx)

			metrics.EmbeddingCallTotal.WithLabelValues(component, modelName, "success").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.EmbeddingCallDuration.WithLabelValues(component, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			if output != nil && output.TokenUsage != nil {
				span.SetAttributes(attribute.Int("embedding.prompt_tokens", output.TokenUsage.PromptTokens))
			}
			span.End()
			return ctx
		},

		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			component := componentName(info)
			modelName := modelFromContext(ctx)

			metrics.EmbeddingCallTotal.WithLabelValues(component, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.EmbeddingCallDuration.WithLabelValues(component, modelName).Observe(d)
			}
			logger.Warn(ctx, "embedding call failed", "component", component, "model", modelName, "error", err.Error())

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

func componentName(info *einocb.RunInfo) string {
	if info == nil || info.Type == "" {
		return "unknown"
	}
	return info.Type
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *embedding.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelFromContext(ctx context.Context) string {
	m, _ := ctx.Value(modelKey{}).(string)
	return m
}
