package notifier

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram 通知器：成交、异常与回测摘要推送到指定会话。
type Telegram struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	retries int
	sleep   func(time.Duration)
}

func NewTelegram(botToken string, chatID int64) (*Telegram, error) {
	return newTelegram(botToken, chatID, tgbotapi.APIEndpoint, &http.Client{Timeout: 15 * time.Second})
}

func newTelegram(botToken string, chatID int64, endpoint string, client *http.Client) (*Telegram, error) {
	if strings.TrimSpace(botToken) == "" || chatID == 0 {
		return nil, fmt.Errorf("Telegram 配置不完整")
	}
	api, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, retries: 3, sleep: time.Sleep}, nil
}

// SendText 发送纯文本消息（最多重试 3 次）。
func (t *Telegram) SendText(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	var lastErr error
	for i := 0; i < t.retries; i++ {
		if _, err := t.api.Send(msg); err != nil {
			lastErr = err
			t.sleep(time.Duration(i+1) * time.Second)
			continue
		}
		return nil
	}
	return fmt.Errorf("telegram send failed after %d attempts: %w", t.retries, lastErr)
}
