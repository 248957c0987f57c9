package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"media-search-api/pkg/logger"
	"media-search-api/pkg/metrics"
)

// StageKind 阶段类型
type StageKind string

const (
	StageProbe      StageKind = "probe"
	StageTranscribe StageKind = "transcribe"
	StageKeyframes  StageKind = "keyframes"
	StageEmbed      StageKind = "embed"
)

// ErrStageTimeout 阶段超时
var ErrStageTimeout = errors.New("stage timed out")

// StageResult 单个阶段的执行结果
type StageResult[T any] struct {
	Kind    StageKind
	Value   T
	Elapsed time.Duration
	Err     error
}

// OK 阶段是否成功
func (r StageResult[T]) OK() bool {
	return r.Err == nil
}

// Report 转换为汇总报告
func (r StageResult[T]) Report(count int) StageReport {
	rep := StageReport{OK: r.OK(), Count: count, ElapsedSeconds: r.Elapsed.Seconds()}
	if r.Err != nil {
		rep.Error = r.Err.Error()
	}
	return rep
}

type stageOutcome[T any] struct {
	value T
	err   error
}

// minStageDrain 保存索引前等待超时阶段退出的最短时间
const minStageDrain = time.Second

// stageTracker 跟踪一次摄取中启动的阶段 goroutine
// 超时后阶段函数可能仍在运行，保存索引前需等待其退出
type stageTracker struct {
	wg      sync.WaitGroup
	running atomic.Int64
}

func (t *stageTracker) begin() {
	t.wg.Add(1)
	t.running.Add(1)
}

func (t *stageTracker) end() {
	t.running.Add(-1)
	t.wg.Done()
}

// drain 最多等待 grace，返回仍未退出的阶段数
func (t *stageTracker) drain(grace time.Duration) int {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return 0
	case <-time.After(max(grace, minStageDrain)):
		return int(t.running.Load())
	}
}

// RunStage 执行一个阶段：timeout>0 时限时执行，panic 转为错误，失败不向上中断
func RunStage[T any](ctx context.Context, kind StageKind, timeout time.Duration, fn func(ctx context.Context) (T, error)) StageResult[T] {
	return runStage(ctx, nil, kind, timeout, fn)
}

func runStage[T any](ctx context.Context, tracker *stageTracker, kind StageKind, timeout time.Duration, fn func(ctx context.Context) (T, error)) StageResult[T] {
	start := time.Now()

	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan stageOutcome[T], 1)
	if tracker != nil {
		tracker.begin()
	}
	go func() {
		if tracker != nil {
			defer tracker.end()
		}
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "ingest stage panicked", fmt.Errorf("%v", r),
					"stage", string(kind),
					"stack", string(debug.Stack()),
				)
				var zero T
				done <- stageOutcome[T]{value: zero, err: fmt.Errorf("%s stage panicked: %v", kind, r)}
			}
		}()
		v, err := fn(stageCtx)
		done <- stageOutcome[T]{value: v, err: err}
	}()

	res := StageResult[T]{Kind: kind}
	select {
	case out := <-done:
		res.Value = out.value
		res.Err = out.err
		// 阶段内部因超时返回的错误统一归为超时
		if res.Err != nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.Err = fmt.Errorf("%w: %s after %s: %w", ErrStageTimeout, kind, timeout, res.Err)
		}
	case <-stageCtx.Done():
		if ctx.Err() != nil {
			res.Err = ctx.Err()
		} else {
			res.Err = fmt.Errorf("%w: %s after %s", ErrStageTimeout, kind, timeout)
		}
		logger.Warn(ctx, "ingest stage abandoned, still running in background", "stage", string(kind))
	}
	res.Elapsed = time.Since(start)

	status := "ok"
	if res.Err != nil {
		status = "failed"
	}
	metrics.IngestStageDuration.WithLabelValues(string(kind)).Observe(res.Elapsed.Seconds())
	metrics.IngestStageTotal.WithLabelValues(string(kind), status).Inc()
	return res
}
