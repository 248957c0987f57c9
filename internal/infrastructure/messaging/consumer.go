package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "media-search-api/pkg/errors"
	"media-search-api/pkg/logger"
	"media-search-api/pkg/metrics"
)

// ErrMalformedJob 消息无法解析为摄取任务
var ErrMalformedJob = errors.New("malformed ingest job")

// JobHandler 摄取任务处理函数
type JobHandler func(ctx context.Context, job *IngestJobMessage) error

// Consumer 摄取任务消费者
// 处理失败的任务留在 pending 中按退避重投，超过次数或不可重试时进入死信队列
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	mu      sync.RWMutex
	handler JobHandler
	running bool
	stopCh  chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// NewConsumer 创建摄取任务消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   max(5*time.Minute, cfg.Backoff.Max*2),
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		stopCh:        make(chan struct{}),
	}
}

// Handle 设置任务处理器
func (c *Consumer) Handle(h JobHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

// Start 创建消费者组并启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	if c.handler == nil {
		c.mu.Unlock()
		return fmt.Errorf("no ingest job handler registered")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Consumer) run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("ingest consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumerName,
	)

	lastReclaim := time.Now().Add(-c.claimInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("ingest consumer stopped due to context cancellation")
			return
		case <-c.stopCh:
			log.Info("ingest consumer stopped")
			return
		default:
		}

		// 自己名下到期的重试
		c.sweepPending(ctx, true)
		// 其他消费者长时间未确认的任务
		if time.Since(lastReclaim) >= c.claimInterval {
			c.sweepPending(ctx, false)
			lastReclaim = time.Now()
		}

		// 摄取任务耗时长，每次只取一条
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    1,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, xmsg := range stream.Messages {
				c.process(ctx, xmsg)
			}
		}
	}
}

// process 解码并执行一条任务
func (c *Consumer) process(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.process",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, job, err := decodeJob(xmsg)
	if err != nil {
		span.RecordError(err)
		logger.FromContext(ctx).Error("dropping malformed ingest job", "error", err, "message_id", xmsg.ID)
		c.deadLetter(ctx, xmsg.ID, newDeadLetter(c.stream, xmsg.ID, msg, job, err))
		return
	}

	ctx = jobContext(ctx, msg, job)
	span.SetAttributes(
		attribute.String("job.id", job.JobID),
		attribute.String("job.folder", job.Folder),
	)

	c.mu.RLock()
	handler := c.handler
	c.mu.RUnlock()

	if err := handler(ctx, job); err != nil {
		span.RecordError(err)
		metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "failed").Inc()
		c.handleFailure(ctx, xmsg.ID, msg, job, err)
		return
	}

	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "ok").Inc()
	c.ack(ctx, xmsg.ID)
}

// handleFailure 不可重试或重试耗尽时进入死信队列，否则留在 pending 等待重投
func (c *Consumer) handleFailure(ctx context.Context, id string, msg *Message, job *IngestJobMessage, err error) {
	log := logger.FromContext(ctx)

	if permanentFailure(err) {
		log.Warn("ingest job failed permanently", "error", err.Error(), "folder", job.Folder)
		c.deadLetter(ctx, id, newDeadLetter(c.stream, id, msg, job, err))
		return
	}

	retries := c.retryCount(ctx, id)
	if retries >= c.retryLimit {
		log.Warn("ingest job moved to DLQ after max retries", "retry_count", retries, "error", err.Error())
		c.deadLetter(ctx, id, newDeadLetter(c.stream, id, msg, job, err))
		return
	}
	log.Info("ingest job left pending for retry", "retry_count", retries, "error", err.Error())
}

// permanentFailure 目录不存在或参数错误，重试无意义
func permanentFailure(err error) bool {
	return apperrors.HasCode(err, apperrors.CodeFileNotFound) ||
		apperrors.HasCode(err, apperrors.CodeInvalidParam)
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to ack message", "error", err, "message_id", id)
	}
}

func (c *Consumer) retryCount(ctx context.Context, id string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// deadLetter 写入死信队列后确认原消息
func (c *Consumer) deadLetter(ctx context.Context, id string, dl DeadLetter) {
	data, _ := json.Marshal(dl)
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to write DLQ", "error", err, "message_id", id)
	}
	metrics.RedisStreamProcessed.WithLabelValues(string(c.stream), "dead_letter").Inc()
	c.ack(ctx, id)
}

// sweepPending 认领 pending 任务：own 为 true 时处理自己名下已过退避期的任务，
// 否则接管其他消费者闲置超过 reclaimIdle 的任务
func (c *Consumer) sweepPending(ctx context.Context, own bool) {
	args := &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  "-",
		End:    "+",
		Count:  20,
	}
	if own {
		args.Consumer = c.consumerName
	}
	pending, err := c.client.XPendingExt(ctx, args).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Error("failed to query pending messages", "error", err, "own", own)
		}
		return
	}

	for _, p := range pending {
		minIdle := c.reclaimIdle
		if own {
			minIdle = c.backoff.CalculateBackoff(int(p.RetryCount))
		} else if p.Consumer == c.consumerName {
			continue
		}
		exhausted := int(p.RetryCount) >= c.retryLimit
		if exhausted && own {
			minIdle = 0
		}
		if p.Idle < minIdle {
			continue
		}

		claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   string(c.stream),
			Group:    string(c.group),
			Consumer: c.consumerName,
			MinIdle:  minIdle,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			logger.FromContext(ctx).Error("failed to claim pending message", "error", err, "message_id", p.ID)
			continue
		}

		for _, xmsg := range claimed {
			if !exhausted {
				c.process(ctx, xmsg)
				continue
			}
			msg, job, _ := decodeJob(xmsg)
			c.deadLetter(ctx, xmsg.ID, newDeadLetter(c.stream, xmsg.ID, msg, job, fmt.Errorf("ingest job exceeded %d retries", c.retryLimit)))
		}
	}
}

// MonitorDLQ 定期检查死信队列长度，超过阈值时告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			dlq := c.stream.DLQStream()
			n, err := c.client.XLen(ctx, dlq).Result()
			if err != nil {
				continue
			}
			if n > alertThreshold {
				log.Warn("failed ingest jobs waiting in DLQ", "stream", dlq, "count", n)
			}
		}
	}
}

// decodeJob 解析 stream 条目；解析出的部分在出错时也会返回，便于写入死信
func decodeJob(xmsg redis.XMessage) (*Message, *IngestJobMessage, error) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing data field", ErrMalformedJob)
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if msg.Type != MessageTypeIngestFolder {
		return &msg, nil, fmt.Errorf("%w: unexpected message type %q", ErrMalformedJob, msg.Type)
	}

	var job IngestJobMessage
	if err := msg.UnmarshalPayload(&job); err != nil {
		return &msg, nil, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if job.JobID == "" {
		job.JobID = msg.ID
	}
	if strings.TrimSpace(job.Folder) == "" {
		return &msg, &job, fmt.Errorf("%w: folder is empty", ErrMalformedJob)
	}
	return &msg, &job, nil
}

// jobContext 把任务 ID 与请求链路写入日志上下文
func jobContext(ctx context.Context, msg *Message, job *IngestJobMessage) context.Context {
	ctx = logger.WithContext(ctx, logger.JobIDKey, job.JobID)

	reqID := job.RequestID
	if reqID == "" {
		reqID = msg.GetMetadata("request_id")
	}
	if reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	return ctx
}

// DeadLetter 死信队列条目
type DeadLetter struct {
	OriginalStream string   `json:"original_stream"`
	MessageID      string   `json:"message_id"`
	JobID          string   `json:"job_id,omitempty"`
	Folder         string   `json:"folder,omitempty"`
	Error          string   `json:"error"`
	FailedAt       int64    `json:"failed_at"`
	Message        *Message `json:"data,omitempty"`
}

func newDeadLetter(stream Stream, id string, msg *Message, job *IngestJobMessage, err error) DeadLetter {
	dl := DeadLetter{
		OriginalStream: string(stream),
		MessageID:      id,
		Error:          err.Error(),
		FailedAt:       time.Now().Unix(),
		Message:        msg,
	}
	if job != nil {
		dl.JobID = job.JobID
		dl.Folder = job.Folder
	}
	return dl
}
