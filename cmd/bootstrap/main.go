package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"media-search-api/internal/config"
	"media-search-api/internal/wire"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	// 2. 初始化关系库与向量后端
	boot, cleanup, err := wire.InitializeBootstrap(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 3. 关系库表结构（SQLite 打开时已迁移）
	if boot.Store.Postgres != nil {
		fmt.Println("Migrating postgres schema...")
		if err := boot.Store.Postgres.AutoMigrate(ctx); err != nil {
			log.Fatalf("failed to migrate postgres: %v", err)
		}
	}

	// 4. 向量后端：milvus 建集合，pgvector 建表，flat 校验或创建快照
	fmt.Printf("Opening %s vector index at %s...\n", boot.Backend.Name(), boot.Backend.Location())
	idx, err := boot.Backend.Open(ctx)
	if err != nil {
		log.Fatalf("failed to open vector index: %v", err)
	}
	if boot.Backend.Name() == "flat" {
		if _, err := os.Stat(boot.Backend.Location()); errors.Is(err, os.ErrNotExist) {
			if err := boot.Backend.Persist(ctx, idx); err != nil {
				log.Fatalf("failed to write empty snapshot: %v", err)
			}
			fmt.Println("Empty snapshot created.")
		}
	}
	fmt.Printf("Vector index ready: %d vectors, dimension %d\n", idx.Size(), idx.Dimension())

	// 5. 缩略图目录与对象存储桶
	if err := os.MkdirAll(cfg.Storage.ThumbnailDir, 0o755); err != nil {
		log.Fatalf("failed to create thumbnail dir: %v", err)
	}
	if boot.Thumbnails != nil {
		fmt.Println("Ensuring thumbnail bucket...")
		if err := boot.Thumbnails.EnsureBucket(ctx); err != nil {
			log.Fatalf("failed to ensure bucket: %v", err)
		}
	}

	fmt.Println("Bootstrap completed successfully.")
}
