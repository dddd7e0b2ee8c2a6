// Package telegram sends report digests and refresh alerts through the
// Telegram Bot API.
//
// Messages use MarkdownV2. Delivery is retried with a linear backoff that
// stops early when the context is cancelled.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/openmedicaid/claimlens/internal/analysis"
	"github.com/openmedicaid/claimlens/internal/insight"
	"github.com/openmedicaid/claimlens/internal/models"
	"github.com/openmedicaid/claimlens/internal/outlier"
)

// insightsPerCategory bounds the digest length.
const insightsPerCategory = 1

// sender is the part of tgbotapi.BotAPI the client uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration

	mu           sync.Mutex
	failingSince time.Time
	now          func() time.Time
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
		now:            time.Now,
	}, nil
}

// SendDigest announces a new report.
func (c *Client) SendDigest(ctx context.Context, r *analysis.Report) error {
	return c.send(ctx, formatDigest(r))
}

// SendError reports a failed refresh and starts the outage clock.
func (c *Client) SendError(ctx context.Context, err error) error {
	c.mu.Lock()
	if c.failingSince.IsZero() {
		c.failingSince = c.now()
	}
	c.mu.Unlock()

	message := "⚠️ *Report refresh failed*\n\n" + escapeMarkdownV2(err.Error())
	return c.send(ctx, message)
}

// SendRecovery reports that refreshes succeed again after failures.
func (c *Client) SendRecovery(ctx context.Context, failures int) error {
	c.mu.Lock()
	var outage time.Duration
	if !c.failingSince.IsZero() {
		outage = c.now().Sub(c.failingSince)
		c.failingSince = time.Time{}
	}
	c.mu.Unlock()

	return c.send(ctx, formatRecovery(failures, outage))
}

func (c *Client) send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to send message: %w", ctx.Err())
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatDigest renders the headline numbers, the leading insight of every
// category and the strongest computed outlier of every population.
func formatDigest(r *analysis.Report) string {
	var b strings.Builder

	b.WriteString("📊 *Medicaid spending report*\n\n")
	fmt.Fprintf(&b, "📅 Data as of %s\n", escapeMarkdownV2(r.ComputedAt.UTC().Format("2006-01-02")))
	fmt.Fprintf(&b, "💰 Total spending: *%s*\n", escapeMarkdownV2(insight.FormatCurrency(r.Totals.Spending)))
	fmt.Fprintf(&b, "🏥 Providers: %s\n\n", escapeMarkdownV2(strconv.Itoa(r.Totals.Providers)))

	for _, category := range models.InsightCategories {
		for _, in := range r.TopInsights(category, insightsPerCategory) {
			fmt.Fprintf(&b, "• *%s* \\(%s\\)\n   %s\n",
				escapeMarkdownV2(in.Title), escapeMarkdownV2(string(category)), escapeMarkdownV2(in.Finding))
		}
	}

	var outliers []string
	for _, name := range outlier.Populations {
		entries := r.Outliers[name]
		if len(entries) == 0 {
			continue
		}
		top := entries[0]
		label := top.Label
		if label == "" {
			label = top.ID
		}
		outliers = append(outliers, fmt.Sprintf("• %s: %s, z\\=%s, %s",
			escapeMarkdownV2(name),
			escapeMarkdownV2(label),
			escapeMarkdownV2(strconv.FormatFloat(top.Score.ZScore, 'f', 2, 64)),
			escapeMarkdownV2(top.Analogy.Probability)))
	}
	if len(outliers) > 0 {
		b.WriteString("\n🔎 *Top outliers*\n")
		b.WriteString(strings.Join(outliers, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

func formatRecovery(failures int, outage time.Duration) string {
	message := fmt.Sprintf("✅ *Report refresh recovered* after %d failed attempt", failures)
	if failures != 1 {
		message += "s"
	}
	if outage > 0 {
		message += " " + escapeMarkdownV2("("+formatDuration(outage)+")")
	}
	return message
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if hours := int(d.Hours()); hours >= 1 {
		return fmt.Sprintf("%dh", hours)
	}
	if mins := int(d.Minutes()); mins >= 1 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}
