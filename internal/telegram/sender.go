// Package telegram delivers reminder messages through the Bot API.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Sender sends HTML-formatted messages to individual chats.
type Sender struct {
	bot    *tele.Bot
	logger *slog.Logger
}

// NewSender constructs the bot client. The bot is used in send-only mode;
// no update poller is started.
func NewSender(token string, logger *slog.Logger) (*Sender, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &Sender{bot: b, logger: logger}, nil
}

// Send delivers text to the chat identified by userID. Telegram chat IDs
// for private chats equal the user ID.
func (s *Sender) Send(ctx context.Context, userID int64, text string) error {
	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, err := s.bot.Send(&tele.User{ID: userID}, text, tele.ModeHTML)
		done <- result{err: err}
	}()
	select {
	case r := <-done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Me reports the bot's own username, used at startup to confirm the token.
func (s *Sender) Me(ctx context.Context) (string, error) {
	_ = ctx
	if s.bot.Me == nil {
		return "", errors.New("bot identity unavailable")
	}
	return s.bot.Me.Username, nil
}
