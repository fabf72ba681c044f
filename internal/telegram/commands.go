// internal/telegram/commands.go
package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kai-0601/TelegramBot/internal/dispatch"
	"github.com/Kai-0601/TelegramBot/internal/watch"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Engine is the command surface the handler drives. Implemented by the bot service.
type Engine interface {
	AddWhale(address, displayName string) (bool, error)
	RemoveWhale(address string) (bool, error)
	ListWhales() []watch.MonitoredEntity
	AddFeedAccount(account string) (bool, error)
	RemoveFeedAccount(account string) (bool, error)
	Subscribe(chatID int64) (bool, error)
	Unsubscribe(chatID int64) (bool, error)
}

// Commands long-polls Telegram updates and translates commands into engine calls.
type Commands struct {
	sender *Sender
	engine Engine
	logger *zap.Logger
}

func NewCommands(sender *Sender, engine Engine, logger *zap.Logger) *Commands {
	return &Commands{sender: sender, engine: engine, logger: logger.Named("commands")}
}

// Run blocks until ctx is cancelled.
func (c *Commands) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := c.sender.bot.GetUpdatesChan(updateCfg)
	defer c.sender.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			c.handle(update.Message)
		}
	}
}

func (c *Commands) handle(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())

	var reply string
	var err error

	switch msg.Command() {
	case "start":
		var added bool
		added, err = c.engine.Subscribe(chatID)
		if added {
			reply = "✅ 已訂閱通知"
		} else {
			reply = "ℹ️ 已經訂閱過了"
		}
	case "stop":
		var removed bool
		removed, err = c.engine.Unsubscribe(chatID)
		if removed {
			reply = "👋 已取消訂閱"
		} else {
			reply = "ℹ️ 尚未訂閱"
		}
	case "add":
		if len(args) == 0 {
			reply = "用法: /add <地址> [名稱]"
			break
		}
		name := ""
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		var added bool
		added, err = c.engine.AddWhale(args[0], name)
		if added {
			reply = "🐋 已加入追蹤"
		} else {
			reply = "ℹ️ 已在追蹤清單中"
		}
	case "remove":
		if len(args) == 0 {
			reply = "用法: /remove <地址>"
			break
		}
		var removed bool
		removed, err = c.engine.RemoveWhale(args[0])
		if removed {
			reply = "🗑 已移除追蹤"
		} else {
			reply = "ℹ️ 不在追蹤清單中"
		}
	case "list":
		reply = formatWhaleList(c.engine.ListWhales())
	case "track":
		if len(args) == 0 {
			reply = "用法: /track <帳號>"
			break
		}
		var added bool
		added, err = c.engine.AddFeedAccount(args[0])
		if added {
			reply = "📝 已加入貼文追蹤"
		} else {
			reply = "ℹ️ 已在追蹤清單中"
		}
	case "untrack":
		if len(args) == 0 {
			reply = "用法: /untrack <帳號>"
			break
		}
		var removed bool
		removed, err = c.engine.RemoveFeedAccount(args[0])
		if removed {
			reply = "🗑 已移除貼文追蹤"
		} else {
			reply = "ℹ️ 不在追蹤清單中"
		}
	default:
		reply = "未知指令。可用: /start /stop /add /remove /list /track /untrack"
	}

	if err != nil {
		c.logger.Error("Command failed",
			zap.String("command", msg.Command()),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		reply = "⚠️ 指令執行失敗，請稍後再試"
	}

	if sendErr := c.sender.Send(context.Background(), dispatch.Subscriber(chatID), reply); sendErr != nil {
		c.logger.Warn("Reply failed", zap.Int64("chat_id", chatID), zap.Error(sendErr))
	}
}

func formatWhaleList(whales []watch.MonitoredEntity) string {
	if len(whales) == 0 {
		return "📭 追蹤清單是空的"
	}
	var b strings.Builder
	b.WriteString("🐋 <b>追蹤清單</b>\n")
	for _, w := range whales {
		fmt.Fprintf(&b, "• %s (<code>%s</code>)\n", w.Name(), w.ID)
	}
	return b.String()
}
