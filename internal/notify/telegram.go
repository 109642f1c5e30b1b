package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// sender is the subset of *tgbotapi.BotAPI used for delivery.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramEmitter posts admin-audience events to an operator chat.
// User-audience events are ignored.
type TelegramEmitter struct {
	api    sender
	chatID int64
	logger zerolog.Logger
}

// NewTelegramEmitter authorizes the bot token and returns an emitter for chatID.
func NewTelegramEmitter(token string, chatID int64, logger zerolog.Logger) (*TelegramEmitter, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	logger.Info().Str("bot", api.Self.UserName).Msg("Telegram bot authorized")
	return newTelegramEmitter(api, chatID, logger), nil
}

func newTelegramEmitter(api sender, chatID int64, logger zerolog.Logger) *TelegramEmitter {
	return &TelegramEmitter{
		api:    api,
		chatID: chatID,
		logger: logger.With().Str("emitter", "telegram").Logger(),
	}
}

// Emit sends the rendered event as a plain text message.
func (t *TelegramEmitter) Emit(ctx context.Context, event Event) error {
	if event.Audience != AudienceAdmin {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, renderAdminText(event))
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	t.logger.Debug().Str("event", string(event.Name)).Msg("Telegram message sent")
	return nil
}

func renderAdminText(event Event) string {
	p := event.Payload
	var b strings.Builder

	switch event.Name {
	case EventAdminNewRequest:
		b.WriteString("New request")
	case EventAdminPaymentReceived:
		if p.PaymentStatus == "FULL" {
			b.WriteString("Final payment received")
		} else {
			b.WriteString("Deposit received")
		}
	default:
		b.WriteString(string(event.Name))
	}

	fmt.Fprintf(&b, ": %s", p.RequestTitle)
	if p.Username != "" {
		fmt.Fprintf(&b, "\nUser: %s", p.Username)
	}
	if p.Amount != nil {
		fmt.Fprintf(&b, "\nAmount: %s %s", p.Amount.StringFixed(2), p.Currency)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "\n%s", p.URL)
	}
	return b.String()
}
