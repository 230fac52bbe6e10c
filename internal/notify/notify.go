// Package notify delivers run outcomes to a Telegram chat. Delivery is
// best-effort: failures are logged and swallowed, and a missing token or
// chat id turns the whole notifier into a no-op so jobs run fine without
// any bot configured.
package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Notifier posts messages and screenshots to one chat.
type Notifier struct {
	bot    *bot.Bot
	chatID string
	log    *zap.Logger
}

// Option tweaks notifier construction; used by tests to point the bot
// at a local server.
type Option func(*options)

type options struct {
	botOpts []bot.Option
}

// WithServerURL routes Telegram API calls to url.
func WithServerURL(url string) Option {
	return func(o *options) {
		o.botOpts = append(o.botOpts, bot.WithServerURL(url))
	}
}

// New builds a Notifier. Empty token or chatID yields a disabled
// notifier that performs no network calls.
func New(token, chatID string, log *zap.Logger, opts ...Option) (*Notifier, error) {
	n := &Notifier{chatID: chatID, log: log}
	if token == "" || chatID == "" {
		log.Info("telegram notifications disabled: no bot token or chat id")
		return n, nil
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	b, err := bot.New(token, o.botOpts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	n.bot = b
	return n, nil
}

// Enabled reports whether notifications will actually be sent.
func (n *Notifier) Enabled() bool { return n.bot != nil }

// Send posts a text message. Errors are logged, never returned.
func (n *Notifier) Send(ctx context.Context, text string) {
	if n.bot == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   text,
	})
	if err != nil {
		n.log.Warn("telegram sendMessage failed", zap.Error(err))
	}
}

// SendWithPhoto posts text with a screenshot attached as the caption
// photo. Falls back to a plain message when the file is unreadable or
// the photo upload fails.
func (n *Notifier) SendWithPhoto(ctx context.Context, text, photoPath string) {
	if n.bot == nil {
		return
	}
	if photoPath == "" {
		n.Send(ctx, text)
		return
	}
	f, err := os.Open(photoPath)
	if err != nil {
		n.log.Warn("screenshot unreadable, sending text only", zap.String("path", photoPath), zap.Error(err))
		n.Send(ctx, text)
		return
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	caption := text
	if len(caption) > 1024 {
		caption = caption[:1024]
	}
	_, err = n.bot.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  n.chatID,
		Photo:   &models.InputFileUpload{Filename: "screenshot.png", Data: f},
		Caption: caption,
	})
	if err != nil {
		n.log.Warn("telegram sendPhoto failed, falling back to text", zap.Error(err))
		n.Send(ctx, text)
	}
}
