// internal/telegram/sender.go
package telegram

import (
	"context"
	"fmt"

	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender delivers dispatcher messages through the Telegram Bot API.
type Sender struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

func NewSender(token string, logger *zap.Logger) (*Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))
	return &Sender{bot: bot, logger: logger.Named("telegram")}, nil
}

// Send implements dispatch.Sender. The Bot API client has no context support;
// the dispatcher's pacing keeps calls short, so a cancelled context only skips
// recipients not yet attempted.
func (s *Sender) Send(ctx context.Context, sub dispatch.Subscriber, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(int64(sub), message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", int64(sub), err)
	}
	return nil
}
