// Package telegram sends a short summary of each scored dataset to a Telegram
// chat. Delivery is retried with a linear backoff.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/risk"
	"github.com/rewired-gh/churnwatch/internal/view"
)

// DefaultTopCustomers is how many highest-risk customers a message lists.
const DefaultTopCustomers = 5

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	topCustomers   int
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newClient(bot, chatID, maxRetries, retryDelayBase)
}

func newClient(bot sender, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		topCustomers:   DefaultTopCustomers,
	}, nil
}

// NotifyResult sends a summary of r.
func (c *Client) NotifyResult(r *models.PredictionResult) error {
	msg := tgbotapi.NewMessage(c.chatID, formatMessage(r, c.topCustomers))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelayBase * time.Duration(i+1))
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

var levelEmoji = map[risk.Level]string{
	risk.Critical: "🔴",
	risk.AtRisk:   "🟠",
	risk.Stable:   "🟡",
	risk.Loyal:    "🟢",
}

// formatMessage renders the summary counts and the top n customers by churn probability.
func formatMessage(r *models.PredictionResult, n int) string {
	m := view.New(r, view.WithDefaultLimit(n))
	s := m.Summary()

	var b strings.Builder
	b.WriteString("📊 *Churn Analysis Complete*\n\n")
	if !r.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "📅 Scored: %s\n", escapeMarkdownV2(r.ReceivedAt.Format("2006-01-02 15:04:05")))
	}
	fmt.Fprintf(&b, "👥 Customers: *%s*\n", escapeMarkdownV2(humanize.Comma(int64(s.TotalCustomers))))
	for _, l := range risk.Levels {
		fmt.Fprintf(&b, "%s %s: %s\n", levelEmoji[l], escapeMarkdownV2(string(l)), escapeMarkdownV2(humanize.Comma(int64(s.CountOf(l)))))
	}

	rows := m.VisibleRows()
	if len(rows) == 0 {
		return b.String()
	}

	b.WriteString("\n*Highest Risk*\n")
	for i, p := range rows {
		fmt.Fprintf(&b, "%d\\. %s %s *%s*",
			i+1,
			levelEmoji[p.RiskLevel],
			escapeMarkdownV2(p.CustomerID),
			escapeMarkdownV2(fmt.Sprintf("%.1f%%", p.ChurnProbability)),
		)
		if p.PrimaryReason != "" {
			fmt.Fprintf(&b, " \\- %s", escapeMarkdownV2(p.PrimaryReason))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
