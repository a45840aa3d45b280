package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"lingbot/internal/config"
)

// Telegram sends messages (and log files as documents) to a single chat.
type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
}

func NewTelegram(cfg config.TelegramNotifyConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	// No poller: this bot only sends.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: false,
		Client:  nil,
	})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

func (t *Telegram) Send(ctx context.Context, text string, attachments []string) error {
	// telebot has no context plumbing; bound the call ourselves.
	done := make(chan error, 1)
	go func() {
		var err error
		if text != "" {
			_, err = t.bot.Send(t.chat, text)
		}
		for _, path := range attachments {
			if err != nil {
				break
			}
			doc := &tele.Document{File: tele.FromDisk(path)}
			_, err = t.bot.Send(t.chat, doc)
		}
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	case <-time.After(45 * time.Second):
		return errors.New("telegram send timed out")
	}
}
