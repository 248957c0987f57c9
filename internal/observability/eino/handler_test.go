package eino

import (
	"context"
	"errors"
	"testing"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-search-api/pkg/metrics"
)

func runInfo() *einocb.RunInfo {
	return &einocb.RunInfo{Name: "query", Type: "TestEmbedder", Component: components.ComponentOfEmbedding}
}

func TestEmbeddingCallbacksRecordSuccess(t *testing.T) {
	success := metrics.EmbeddingCallTotal.WithLabelValues("TestEmbedder", "clip-vit", "success")
	texts := metrics.EmbeddingTextsTotal.WithLabelValues("TestEmbedder")
	beforeCalls, beforeTexts := testutil.ToFloat64(success), testutil.ToFloat64(texts)

	ctx := einocb.InitCallbacks(context.Background(), runInfo(), Handler())
	ctx = einocb.OnStart(ctx, &embedding.CallbackInput{
		Texts:  []string{"a cat", "a dog"},
		Config: &embedding.Config{Model: "clip-vit"},
	})
	einocb.OnEnd(ctx, &embedding.CallbackOutput{Embeddings: [][]float64{{1}, {0}}})

	if got := testutil.ToFloat64(success) - beforeCalls; got != 1 {
		t.Errorf("success calls delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(texts) - beforeTexts; got != 2 {
		t.Errorf("texts delta = %v, want 2", got)
	}
}

func TestEmbeddingCallbacksRecordError(t *testing.T) {
	failed := metrics.EmbeddingCallTotal.WithLabelValues("TestEmbedder", "clip-vit", "error")
	before := testutil.ToFloat64(failed)

	ctx := einocb.InitCallbacks(context.Background(), runInfo(), Handler())
	ctx = einocb.OnStart(ctx, &embedding.CallbackInput{
		Texts:  []string{"a cat"},
		Config: &embedding.Config{Model: "clip-vit"},
	})
	einocb.OnError(ctx, errors.New("service unavailable"))

	if got := testutil.ToFloat64(failed) - before; got != 1 {
		t.Errorf("error calls delta = %v, want 1", got)
	}
}
