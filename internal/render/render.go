// internal/render/render.go
package render

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Kai-0601/TelegramBot/internal/watch"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Renderer turns change events and slot summaries into the Telegram HTML messages
// the bot has always sent. Clock lines use the configured timezone.
type Renderer struct {
	loc     *time.Location
	printer *message.Printer
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc, printer: message.NewPrinter(language.English)}
}

// Render implements the dispatcher's Renderer contract.
func (r *Renderer) Render(ev watch.ChangeEvent) (string, error) {
	switch ev.Domain {
	case watch.DomainPositions:
		return r.renderPosition(ev), nil
	case watch.DomainMintLedger:
		return r.renderLedger(ev), nil
	case watch.DomainPostFeed:
		return r.renderPost(ev), nil
	default:
		return "", fmt.Errorf("render: unknown domain %q", ev.Domain)
	}
}

func (r *Renderer) renderPosition(ev watch.ChangeEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🐋 <b>%s</b>\n🔔 持倉變動通知\n%s\n", ev.EntityName, r.clockLine(ev.At))
	fmt.Fprintf(&b, "🪙 幣種: <b>%s</b>\n", ev.SubKey)

	switch ev.Kind {
	case watch.ChangeOpened:
		fmt.Fprintf(&b, "🟢 新開倉 | %s\n", direction(ev.Curr.Size))
		b.WriteString(r.positionLines(ev.Curr))
	case watch.ChangeClosed:
		fmt.Fprintf(&b, "⚪ 已平倉\n💵 原保證金: $%s USDT\n", r.amount(ev.Prev.Margin))
	case watch.ChangeIncreased:
		fmt.Fprintf(&b, "📈 加倉: $%s → $%s USDT\n", r.amount(ev.Prev.Margin), r.amount(ev.Curr.Margin))
		b.WriteString(r.positionLines(ev.Curr))
	case watch.ChangeDecreased:
		fmt.Fprintf(&b, "📉 減倉: $%s → $%s USDT\n", r.amount(ev.Prev.Margin), r.amount(ev.Curr.Margin))
		b.WriteString(r.positionLines(ev.Curr))
	}
	return b.String()
}

func (r *Renderer) renderLedger(ev watch.ChangeEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌱 <b>新鑄造交易</b>\n%s\n", r.clockLine(ev.At))
	fmt.Fprintf(&b, "🔖 交易: <code>%s</code>\n", ev.Curr.TxID)
	if ev.Curr.Amount != 0 {
		fmt.Fprintf(&b, "📦 數量: %s\n", r.amount(ev.Curr.Amount))
	}
	return b.String()
}

func (r *Renderer) renderPost(ev watch.ChangeEvent) string {
	if ev.Kind == watch.ChangeClosed || ev.Curr.LastPostID == "" {
		return fmt.Sprintf("📭 <b>@%s 的貼文已不可見</b>\n%s\n", ev.SubKey, r.clockLine(ev.At))
	}
	return fmt.Sprintf("📝 <b>@%s 發布新貼文</b>\n%s\n🔖 貼文 ID: %s\n",
		ev.SubKey, r.clockLine(ev.At), ev.Curr.LastPostID)
}

// RenderSummary formats the slot-aligned full position report sent at the top and
// bottom of each hour whether or not anything changed.
func (r *Renderer) RenderSummary(entity watch.MonitoredEntity, snap watch.Snapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🐋 <b>%s</b>\n🔔 固定通知\n%s\n", entity.Name(), r.clockLine(now))

	if len(snap.Records) == 0 {
		b.WriteString("📭 目前無持倉\n")
		return b.String()
	}

	symbols := make([]string, 0, len(snap.Records))
	for sym := range snap.Records {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		rec := snap.Records[sym]
		b.WriteString(strings.Repeat("═", 30) + "\n")
		fmt.Fprintf(&b, "🪙 幣種: <b>%s</b>\n", sym)
		fmt.Fprintf(&b, "📊 方向: %s | 槓桿: <b>%.1fx</b>\n", direction(rec.Size), rec.Leverage)
		b.WriteString(r.positionLines(rec))
	}
	return b.String()
}

func (r *Renderer) positionLines(rec watch.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 持倉量: $%s USDT\n", r.amount(math.Abs(rec.Size*rec.EntryPrice)))
	fmt.Fprintf(&b, "💵 保證金: $%s USDT\n", r.amount(rec.Margin))
	fmt.Fprintf(&b, "📍 開倉價: $%s\n", r.price(rec.EntryPrice))
	if rec.PnL != 0 {
		emoji := "🟢"
		if rec.PnL < 0 {
			emoji = "🔴"
		}
		fmt.Fprintf(&b, "%s 未實現盈虧: $%s USDT\n", emoji, r.amount(rec.PnL))
	}
	if rec.LiqPrice != 0 {
		fmt.Fprintf(&b, "⚠️ 清算價: $%s\n", r.price(rec.LiqPrice))
	}
	return b.String()
}

func (r *Renderer) clockLine(t time.Time) string {
	local := t.In(r.loc)
	zone, _ := local.Zone()
	return fmt.Sprintf("🕐 %s (%s)", local.Format("01-02 15:04:05"), zone)
}

func (r *Renderer) amount(v float64) string {
	return r.printer.Sprintf("%.2f", v)
}

func (r *Renderer) price(v float64) string {
	return r.printer.Sprintf("%.4f", v)
}

func direction(size float64) string {
	if size >= 0 {
		return "🟢 做多"
	}
	return "🔴 做空"
}
