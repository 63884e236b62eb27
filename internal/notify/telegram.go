package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notifier 向外部聊天发送文本消息
type Notifier interface {
	Send(ctx context.Context, chatID, text string) error
}

// Nop 丢弃所有消息，未配置 Bot Token 时使用
type Nop struct{}

// Send 实现 Notifier
func (Nop) Send(context.Context, string, string) error { return nil }

// ErrTelegramRejected 表示 Bot API 返回 ok=false
var ErrTelegramRejected = errors.New("telegram rejected message")

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Telegram 通过 Bot API sendMessage 发送通知
type Telegram struct {
	client *resty.Client
	token  string
	logger *zap.Logger
}

// NewTelegram 构造 Telegram 客户端，baseURL 通常为 https://api.telegram.org
func NewTelegram(baseURL, token string, logger *zap.Logger) *Telegram {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &Telegram{client: client, token: token, logger: logger}
}

// New 根据 token 选择 Telegram 或 Nop
func New(baseURL, token string, logger *zap.Logger) Notifier {
	if strings.TrimSpace(token) == "" {
		logger.Info("telegram token not configured, notifications disabled")
		return Nop{}
	}
	return NewTelegram(baseURL, token, logger)
}

// Send 实现 Notifier，空 chatID 直接忽略
func (t *Telegram) Send(ctx context.Context, chatID, text string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil
	}

	var result sendMessageResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(sendMessageRequest{ChatID: chatID, Text: text}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + t.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	if resp.IsError() || !result.OK {
		t.logger.Warn("telegram sendMessage failed",
			zap.String("chat_id", chatID),
			zap.Int("status", resp.StatusCode()),
			zap.String("description", result.Description),
		)
		return fmt.Errorf("%w: %s", ErrTelegramRejected, result.Description)
	}

	t.logger.Debug("telegram message sent", zap.String("chat_id", chatID))
	return nil
}
