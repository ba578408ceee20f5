package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/rs/zerolog/log"
)

const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram sends messages through the Bot API. The user id is the chat id of
// the private chat with the bot.
type Telegram struct {
	b *bot.Bot
}

// NewTelegram builds a send-only client; it never polls for updates and does
// not call getMe, so a wrong token only surfaces on the first Notify.
func NewTelegram(apiURL, token string) (*Telegram, error) {
	if token == "" {
		return nil, errors.New("telegram: empty token")
	}
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	b, err := bot.New(token,
		bot.WithServerURL(strings.TrimRight(apiURL, "/")),
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(10*time.Second, &http.Client{Timeout: 10 * time.Second}),
		bot.WithErrorsHandler(func(err error) {
			log.Warn().Err(err).Str("module", "notify").Msg("telegram client")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Telegram{b: b}, nil
}

func (t *Telegram) Notify(ctx context.Context, userID int64, text string) error {
	_, err := t.b.SendMessage(ctx, &bot.SendMessageParams{ChatID: userID, Text: text})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	log.Debug().Str("module", "notify").Int64("user", userID).Msg("telegram message sent")
	return nil
}
