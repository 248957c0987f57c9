package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-search-api/internal/domain/entity"
	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/messaging"
	apperrors "media-search-api/pkg/errors"
	"media-search-api/pkg/logger"
)

// JobPublisher 摄取任务投递（Redis Streams）
type JobPublisher interface {
	PublishIngestJob(ctx context.Context, job *messaging.IngestJobMessage) (string, error)
}

// Request 摄取请求
type Request struct {
	JobID            string
	Folder           string
	Workers          int
	KeyframeInterval float64
	MaxFrames        int
	RequestID        string
}

func (r Request) options() Options {
	return Options{
		Workers:          r.Workers,
		KeyframeInterval: r.KeyframeInterval,
		MaxFrames:        r.MaxFrames,
	}
}

// RequestFromMessage 由队列消息构造请求
func RequestFromMessage(job *messaging.IngestJobMessage) Request {
	return Request{
		JobID:            job.JobID,
		Folder:           job.Folder,
		Workers:          job.Workers,
		KeyframeInterval: job.KeyframeInterval,
		MaxFrames:        job.MaxFrames,
		RequestID:        job.RequestID,
	}
}

// Service 摄取服务：同一时刻只允许一个运行，状态写入 StatusStore
type Service struct {
	pipeline  *Pipeline
	status    repository.IngestStatusStore
	publisher JobPublisher

	wg sync.WaitGroup
}

// NewService 创建摄取服务；publisher 为 nil 时在进程内异步执行
func NewService(pipeline *Pipeline, status repository.IngestStatusStore, publisher JobPublisher) *Service {
	return &Service{pipeline: pipeline, status: status, publisher: publisher}
}

// Submit 登记并异步启动摄取，已有运行中任务时返回 CodeIngestBusy
func (s *Service) Submit(ctx context.Context, req Request) (*entity.IngestStatus, error) {
	req.Folder = strings.TrimSpace(req.Folder)
	if req.Folder == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "folder is required")
	}
	// 由队列投递时 worker 可能运行在其他主机，只在本地执行时校验目录
	if s.publisher == nil {
		if info, err := os.Stat(req.Folder); err != nil || !info.IsDir() {
			return nil, apperrors.New(apperrors.CodeFileNotFound, "folder not found").WithDetail(req.Folder)
		}
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	st, err := s.begin(ctx, req, "queued")
	if err != nil {
		return nil, err
	}
	snapshot := *st

	if s.publisher != nil {
		if _, err := s.publisher.PublishIngestJob(ctx, &messaging.IngestJobMessage{
			JobID:            req.JobID,
			Folder:           req.Folder,
			Workers:          req.Workers,
			KeyframeInterval: req.KeyframeInterval,
			MaxFrames:        req.MaxFrames,
			RequestID:        req.RequestID,
		}); err != nil {
			s.finish(ctx, st, nil, err)
			return nil, apperrors.Wrap(err, apperrors.CodeIngestFailed, "failed to enqueue ingest job")
		}
		logger.Info(ctx, "ingest job enqueued", "job_id", req.JobID, "folder", req.Folder)
		return &snapshot, nil
	}

	bg := logger.WithContext(context.WithoutCancel(ctx), logger.JobIDKey, req.JobID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(bg, req, st)
	}()
	return &snapshot, nil
}

// Run 同步执行摄取（CLI 使用）
func (s *Service) Run(ctx context.Context, req Request) (*RunSummary, error) {
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	st, err := s.begin(ctx, req, "running")
	if err != nil {
		return nil, err
	}
	return s.execute(logger.WithContext(ctx, logger.JobIDKey, req.JobID), req, st)
}

// Execute 执行已由网关登记的任务（worker 使用）
func (s *Service) Execute(ctx context.Context, req Request) (*RunSummary, error) {
	st, err := s.status.Get(ctx)
	if err != nil || st.JobID != req.JobID {
		// 状态丢失或被覆盖时重新登记
		now := time.Now()
		st = &entity.IngestStatus{JobID: req.JobID, Running: true, Folder: req.Folder, StartedAt: &now}
	}
	return s.execute(ctx, req, st)
}

// Status 当前状态
func (s *Service) Status(ctx context.Context) (*entity.IngestStatus, error) {
	st, err := s.status.Get(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to read ingest status")
	}
	return st, nil
}

// Wait 等待进程内任务结束
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) begin(ctx context.Context, req Request, message string) (*entity.IngestStatus, error) {
	now := time.Now()
	st := &entity.IngestStatus{
		JobID:     req.JobID,
		Running:   true,
		Folder:    req.Folder,
		Message:   message,
		StartedAt: &now,
	}
	ok, err := s.status.TryBegin(ctx, st)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to acquire ingest lock")
	}
	if !ok {
		return nil, apperrors.New(apperrors.CodeIngestBusy, "ingestion already in progress")
	}
	return st, nil
}

func (s *Service) execute(ctx context.Context, req Request, st *entity.IngestStatus) (*RunSummary, error) {
	st.Message = "running"
	s.update(ctx, st)

	opts := req.options()
	opts.OnProgress = func(done, total int, current string) {
		st.Progress = done
		st.Total = total
		st.CurrentItem = current
		s.update(ctx, st)
	}

	summary, err := s.pipeline.IngestFolder(ctx, req.Folder, opts)
	s.finish(ctx, st, summary, err)
	return summary, err
}

func (s *Service) finish(ctx context.Context, st *entity.IngestStatus, summary *RunSummary, err error) {
	now := time.Now()
	st.Running = false
	st.CurrentItem = ""
	st.FinishedAt = &now
	if summary != nil {
		st.Message = summary.Message
		st.Progress = summary.ItemCount
		st.Total = summary.ItemCount
	}
	if err != nil {
		st.Error = err.Error()
		if st.Message == "" {
			st.Message = "failed"
		}
		logger.Error(ctx, "ingest run failed", err, "job_id", st.JobID)
	}
	s.update(ctx, st)
}

func (s *Service) update(ctx context.Context, st *entity.IngestStatus) {
	if err := s.status.Update(ctx, st); err != nil {
		logger.Warn(ctx, "failed to update ingest status", "error", fmt.Sprint(err))
	}
}
