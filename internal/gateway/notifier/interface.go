package notifier

import "context"

// Message is a rendered notification ready for delivery.
type Message struct {
	Subject string
	Body    string
}

// Channel defines a minimal delivery interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. the email or SMS gateways).
type Channel interface {
	// Name 渠道标识，写入 notification 记录的 channels 字段。
	Name() string
	// Send 向单个收件人投递；收件人为空时返回错误。
	Send(ctx context.Context, recipient string, msg Message) error
}
