// Package sqlite 提供基于嵌入式 SQLite 的关系存储实现
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	_ "modernc.org/sqlite"

	"media-search-api/internal/config"
)

//go:embed schema.sql
var schemaSQL string

var tracer = otel.Tracer("sqlite")

// Client SQLite 客户端
type Client struct {
	db   *sql.DB
	path string
}

// NewClient 打开数据库文件并应用表结构
func NewClient(cfg *config.SQLiteConfig) (*Client, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 单写者，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	client, err := NewClientFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	client.path = cfg.Path
	return client, nil
}

// NewClientFromDB 基于已打开的连接创建客户端
func NewClientFromDB(db *sql.DB) (*Client, error) {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := Migrate(context.Background(), db); err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Migrate 应用表结构（幂等）
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DB 获取底层 sql.DB
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path 数据库文件路径
func (c *Client) Path() string {
	return c.path
}

// Close 关闭数据库连接
func (c *Client) Close() error {
	return c.db.Close()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sqlite.HealthCheck")
	defer span.End()

	var result int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		span.RecordError(err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
