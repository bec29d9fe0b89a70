package notifier

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so the engine and backtester can depend on it
// without importing the Telegram implementation.
type TextNotifier interface {
	SendText(text string) error
}

// Nop 丢弃所有消息。
type Nop struct{}

func (Nop) SendText(string) error { return nil }
