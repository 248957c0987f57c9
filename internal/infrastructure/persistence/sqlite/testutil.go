package sqlite

import (
	"database/sql"
	"testing"
)

// OpenTestDB 创建内存数据库并应用表结构
func OpenTestDB(t testing.TB) *Client {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// 内存库每个连接独立，必须固定为单连接
	db.SetMaxOpenConns(1)

	client, err := NewClientFromDB(db)
	if err != nil {
		db.Close()
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
