package eino

import (
	"sync"

	einocallbacks "github.com/cloudwego/eino/callbacks"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
)

var initOnce sync.Once

// Init 注册 Eino 全局 callbacks（进程级一次）。
func Init() {
	initOnce.Do(func() {
		einocallbacks.AppendGlobalHandlers(Handler())
	})
}

// Handler 返回 embedding 回调处理器，测试中可直接挂到 context 上
func Handler() einocallbacks.Handler {
	return cbtemplate.NewHandlerHelper().
		Embedding(newEmbeddingCallbackHandler()).
		Handler()
}
