package provider

import "context"

// ChatPayload 单轮对话请求。
type ChatPayload struct {
	System     string
	User       string
	ExpectJSON bool
	MaxTokens  int
}

// ModelProvider 抽象一个可调用的模型后端。
type ModelProvider interface {
	ID() string
	Enabled() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
