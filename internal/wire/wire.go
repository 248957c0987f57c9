//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"media-search-api/internal/application/ingest"
	"media-search-api/internal/config"
	"media-search-api/internal/infrastructure/vectorindex"
	"media-search-api/internal/interfaces/http/handler"
	"media-search-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 API 网关
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		StoreSet,
		OptionalRedisSet,
		IndexSet,
		RetrievalSet,
		IngestSet,
		ProvideJobPublisher,
		ProvideIngestService,
		RouterSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化摄取 worker（必须连上 Redis）
func InitializeWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		StoreSet,
		ProvideRedisClient,
		IndexSet,
		IngestSet,
		ProvideLocalIngestService,
		ProvideConsumer,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// InitializeToolkit 初始化命令行工具依赖
func InitializeToolkit(ctx context.Context, cfg *config.Config) (*Toolkit, func(), error) {
	wire.Build(
		StoreSet,
		OptionalRedisSet,
		IndexSet,
		RetrievalSet,
		IngestSet,
		wire.Struct(new(Toolkit), "*"),
	)
	return nil, nil, nil
}

// InitializeBootstrap 初始化表结构与向量集合所需依赖
func InitializeBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, func(), error) {
	wire.Build(
		StoreSet,
		ProvideVectorBackend,
		ProvideThumbnailStoreOptional,
		wire.Struct(new(Bootstrap), "*"),
	)
	return nil, nil, nil
}

// StoreSet 关系库
var StoreSet = wire.NewSet(
	ProvideStore,
	ProvideMediaRepository,
)

// OptionalRedisSet 可选 Redis 及其派生组件
var OptionalRedisSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideQueryCache,
	ProvideRateLimiter,
)

// IndexSet 向量索引
var IndexSet = wire.NewSet(
	ProvideVectorBackend,
	vectorindex.NewManager,
	ProvideClipClient,
)

// RetrievalSet 检索引擎
var RetrievalSet = wire.NewSet(
	ProvideTextEmbedderOptional,
	ProvideRetrievalEngine,
)

// IngestSet 摄取流水线与状态
var IngestSet = wire.NewSet(
	ProvideProber,
	ProvideTranscriber,
	ProvideThumbnailStoreOptional,
	ProvidePipeline,
	ProvideStatusStore,
)

// RouterSet HTTP 路由
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	ProvideSearchHandler,
	ProvideThumbnailHandler,
	handler.NewIngestHandler,
	handler.NewMediaHandler,
	wire.Bind(new(handler.IngestService), new(*ingest.Service)),
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)
