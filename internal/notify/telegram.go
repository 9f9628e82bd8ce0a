package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot"
)

// Telegram sends the batch summary to a configured chat.
type Telegram struct {
	log    *slog.Logger
	bot    *bot.Bot
	chatID string
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram creates the Telegram notifier. The token is not verified
// against the API here; a bad one surfaces on the first send.
func NewTelegram(log *slog.Logger, token, chatID string) (*Telegram, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	return &Telegram{
		log:    log.With(slog.String("package", "notify")),
		bot:    b,
		chatID: chatID,
	}, nil
}

// Notify sends one message with the title and summary body.
func (t *Telegram) Notify(ctx context.Context, title, body string) error {
	text := title
	if body != "" {
		text = title + "\n\n" + body
	}

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	t.log.DebugContext(ctx, "telegram notification sent", slog.String("chat_id", t.chatID))

	return nil
}
