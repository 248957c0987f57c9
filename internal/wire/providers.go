// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"
	"os"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"media-search-api/internal/application/ingest"
	"media-search-api/internal/application/retrieval"
	"media-search-api/internal/config"
	"media-search-api/internal/domain/repository"
	"media-search-api/internal/infrastructure/embedding"
	"media-search-api/internal/infrastructure/media"
	"media-search-api/internal/infrastructure/messaging"
	"media-search-api/internal/infrastructure/persistence/milvus"
	"media-search-api/internal/infrastructure/persistence/postgres"
	"media-search-api/internal/infrastructure/persistence/redis"
	"media-search-api/internal/infrastructure/persistence/sqlite"
	"media-search-api/internal/infrastructure/storage"
	"media-search-api/internal/infrastructure/transcribe"
	"media-search-api/internal/infrastructure/vectorindex"
	"media-search-api/internal/interfaces/http/handler"
	"media-search-api/internal/interfaces/http/middleware"
	"media-search-api/internal/interfaces/http/router"
	"media-search-api/pkg/logger"
)

// Store 关系库：按 database.driver 选择 sqlite 或 postgres
type Store struct {
	Repo     repository.MediaRepository
	Health   handler.HealthChecker
	Postgres *postgres.Client
	SQLite   *sqlite.Client
}

// App API 网关依赖
type App struct {
	Router *router.Router
	Ingest *ingest.Service
	Index  *vectorindex.Manager
}

// Worker 摄取 worker 依赖
type Worker struct {
	Consumer *messaging.Consumer
	Ingest   *ingest.Service
	Index    *vectorindex.Manager
}

// Toolkit 命令行工具依赖
type Toolkit struct {
	Config   *config.Config
	Store    *Store
	Index    *vectorindex.Manager
	Engine   *retrieval.Engine
	Pipeline *ingest.Pipeline
	Status   repository.IngestStatusStore
	Clip     *embedding.Client
	Prober   *media.Prober
}

// Bootstrap 初始化依赖
type Bootstrap struct {
	Store      *Store
	Backend    vectorindex.Backend
	Thumbnails *storage.ThumbnailStore
}

// ProvideStore 提供关系库
func ProvideStore(cfg *config.Config) (*Store, func(), error) {
	switch cfg.Database.Driver {
	case "", "sqlite":
		client, err := sqlite.NewClient(&cfg.Database.SQLite)
		if err != nil {
			return nil, nil, err
		}
		store := &Store{Repo: sqlite.NewMediaRepository(client), Health: client, SQLite: client}
		return store, func() { _ = client.Close() }, nil
	case "postgres":
		client, err := postgres.NewClient(&cfg.Database.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := &Store{Repo: postgres.NewMediaRepository(client), Health: client, Postgres: client}
		return store, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// ProvideMediaRepository 提供媒体仓储
func ProvideMediaRepository(store *Store) repository.MediaRepository {
	return store.Repo
}

// ProvideRedisClientOptional Redis 未启用或不可达时返回 nil，依赖它的组件退化为进程内实现
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, falling back to in-process state", "error", err.Error())
		return nil, func() {}, nil
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideRedisClient worker 必须连上 Redis
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideVectorBackend 按 vector.backend 选择 flat / milvus / pgvector
func ProvideVectorBackend(ctx context.Context, cfg *config.Config, store *Store) (vectorindex.Backend, func(), error) {
	dim := cfg.Vector.Dimension
	switch cfg.Vector.Backend {
	case "", "flat":
		return vectorindex.NewFlatBackend(cfg.Vector.SnapshotPath, dim), func() {}, nil
	case "milvus":
		client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			return nil, nil, err
		}
		return milvus.NewBackend(client, dim), func() { _ = client.Close() }, nil
	case "pgvector":
		if store.Postgres == nil {
			return nil, nil, fmt.Errorf("pgvector backend requires database.driver=postgres")
		}
		return postgres.NewVectorBackend(store.Postgres, dim), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}

// ProvideClipClient 提供图文编码客户端
func ProvideClipClient(cfg *config.Config) *embedding.Client {
	return embedding.NewClient(&cfg.Embedding)
}

// ProvideTextEmbedderOptional 文本编码器不可用时返回 nil，检索退化为纯文本
func ProvideTextEmbedderOptional(ctx context.Context, cfg *config.Config, clip *embedding.Client) einoembedding.Embedder {
	embedder, err := embedding.NewTextEmbedder(ctx, &cfg.Embedding, clip)
	if err != nil {
		logger.Warn(ctx, "text embedder not available, visual search disabled", "error", err.Error())
		return nil
	}
	return embedder
}

// ProvideQueryCache Redis 可用且 TTL > 0 时缓存查询向量
func ProvideQueryCache(cfg *config.Config, rc *redis.Client) retrieval.QueryCache {
	if rc == nil || cfg.Cache.QueryEmbeddingTTL <= 0 {
		return nil
	}
	return redis.NewQueryVectorCache(redis.NewCache(rc), cfg.Embedding.Model, cfg.Cache.QueryEmbeddingTTL)
}

// ProvideRetrievalEngine 提供检索引擎
func ProvideRetrievalEngine(cfg *config.Config, embedder einoembedding.Embedder, index *vectorindex.Manager, repo repository.MediaRepository, cache retrieval.QueryCache) *retrieval.Engine {
	return retrieval.NewEngine(embedder, index, repo, cache, retrieval.Defaults{
		TopK:         cfg.Retrieval.DefaultTopK,
		MaxTopK:      cfg.Retrieval.MaxTopK,
		VisualWeight: cfg.Retrieval.VisualWeight,
		TextWeight:   cfg.Retrieval.TextWeight,
	})
}

// ProvideThumbnailStoreOptional 未启用或初始化失败时返回 nil，缩略图只保留在本地
func ProvideThumbnailStoreOptional(ctx context.Context, cfg *config.Config) *storage.ThumbnailStore {
	if !cfg.Storage.S3.Enabled {
		return nil
	}
	store, err := storage.NewThumbnailStore(&cfg.Storage.S3)
	if err != nil {
		logger.Warn(ctx, "object store not available, thumbnails kept locally", "error", err.Error())
		return nil
	}
	return store
}

// ProvideProber 提供媒体探测器
func ProvideProber(cfg *config.Config) *media.Prober {
	return media.NewProber(cfg.Ingest.FFprobePath)
}

// ProvideTranscriber 旁挂字幕优先，其次 Whisper；两者都未启用时不转写
func ProvideTranscriber(cfg *config.Config) ingest.Transcriber {
	var next transcribe.Transcriber
	if cfg.Transcription.Enabled {
		next = transcribe.NewWhisper(&cfg.Transcription, media.NewAudioExtractor(cfg.Ingest.FFmpegPath))
	}
	if cfg.Transcription.UseSidecarSRT {
		return transcribe.NewSidecar(next)
	}
	if next == nil {
		return nil
	}
	return next
}

// ProvidePipeline 提供摄取流水线
func ProvidePipeline(cfg *config.Config, repo repository.MediaRepository, index *vectorindex.Manager, prober *media.Prober, clip *embedding.Client, transcriber ingest.Transcriber, thumbs *storage.ThumbnailStore) *ingest.Pipeline {
	deps := ingest.Deps{
		Repo:        repo,
		Index:       index,
		Prober:      prober,
		Transcriber: transcriber,
		Extractor:   media.NewKeyframeExtractor(cfg.Ingest.FFmpegPath, prober),
		Embedder:    clip,
	}
	if thumbs != nil {
		deps.Thumbnails = thumbs
	}
	return ingest.NewPipeline(deps, ingest.Options{
		Workers:          cfg.Ingest.Workers,
		KeyframeInterval: cfg.Ingest.KeyframeInterval,
		MaxFrames:        cfg.Ingest.MaxFrames,
		EmbedBatchSize:   cfg.Ingest.EmbedBatchSize,
		StageTimeout:     cfg.Ingest.StageTimeout,
		ThumbnailDir:     cfg.Storage.ThumbnailDir,
	})
}

// ProvideStatusStore Redis 可用时跨进程共享摄取状态
func ProvideStatusStore(rc *redis.Client) repository.IngestStatusStore {
	if rc == nil {
		return ingest.NewMemoryStatusStore()
	}
	return redis.NewIngestStatusStore(rc)
}

// ProvideJobPublisher 启用消息队列时由 worker 执行摄取
func ProvideJobPublisher(cfg *config.Config, rc *redis.Client) ingest.JobPublisher {
	if !cfg.Messaging.Enabled || rc == nil {
		return nil
	}
	return messaging.NewProducer(rc.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

// ProvideIngestService 网关侧摄取服务
func ProvideIngestService(pipeline *ingest.Pipeline, status repository.IngestStatusStore, publisher ingest.JobPublisher) *ingest.Service {
	return ingest.NewService(pipeline, status, publisher)
}

// ProvideLocalIngestService 进程内执行的摄取服务（worker / CLI）
func ProvideLocalIngestService(pipeline *ingest.Pipeline, status repository.IngestStatusStore) *ingest.Service {
	return ingest.NewService(pipeline, status, nil)
}

// ProvideRateLimiter Redis 不可用时不限流
func ProvideRateLimiter(rc *redis.Client) middleware.RateLimiter {
	if rc == nil {
		return nil
	}
	return redis.NewRateLimiter(rc)
}

// ProvideConsumer 提供摄取任务消费者
func ProvideConsumer(cfg *config.Config, rc *redis.Client) *messaging.Consumer {
	rs := cfg.Messaging.RedisStream
	return messaging.NewConsumer(rc.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamIngest,
		Group:         messaging.ConsumerGroupIngestWorker,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  rs.BlockTimeout,
		ClaimInterval: rs.ClaimInterval,
		RetryLimit:    rs.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    rs.RetryBackoff.Initial,
			Max:        rs.RetryBackoff.Max,
			Multiplier: rs.RetryBackoff.Multiplier,
		},
	})
}

// ProvideHealthHandler 关系库为必需项，其余依赖失败只标记 degraded
func ProvideHealthHandler(cfg *config.Config, store *Store, rc *redis.Client, thumbs *storage.ThumbnailStore, clip *embedding.Client, index *vectorindex.Manager) *handler.HealthHandler {
	deps := []handler.Dependency{
		{Name: "database", Checker: store.Health, Required: true},
		{Name: "vector_index", Checker: handler.HealthCheckFunc(func(ctx context.Context) error {
			_, err := index.Get(ctx)
			return err
		})},
		{Name: "embedding", Checker: handler.HealthCheckFunc(clip.Ping)},
	}
	if rc != nil {
		deps = append(deps, handler.Dependency{Name: "redis", Checker: rc})
	} else {
		deps = append(deps, handler.Dependency{Name: "redis"})
	}
	if thumbs != nil {
		deps = append(deps, handler.Dependency{Name: "object_store", Checker: thumbs})
	} else {
		deps = append(deps, handler.Dependency{Name: "object_store"})
	}
	return handler.NewHealthHandler(cfg.App.Version, deps...)
}

// ProvideSearchHandler 提供检索处理器
func ProvideSearchHandler(cfg *config.Config, engine *retrieval.Engine) *handler.SearchHandler {
	return handler.NewSearchHandler(engine, cfg.Storage.ThumbnailDir)
}

// ProvideThumbnailHandler 提供缩略图处理器
func ProvideThumbnailHandler(cfg *config.Config) *handler.ThumbnailHandler {
	return handler.NewThumbnailHandler(cfg.Storage.ThumbnailDir)
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "ingest-worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
