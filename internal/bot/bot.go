package bot

import (
	"context"
	"errors"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"kassabot/internal/dispatch"
	"kassabot/internal/domain"
	"kassabot/internal/metrics"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bot is the Telegram front end: it maps chat commands onto the shared
// command dispatcher and never lets a bad command take the process down.
type Bot struct {
	tgService  domain.TelegramSender
	dispatcher domain.Dispatcher
	managers   map[int64]bool
	metrics    *metrics.Metrics
	logger     *zerolog.Logger
}

// NewBot wires the front end. An empty managers list leaves the bot open to
// every chat.
func NewBot(
	tgService domain.TelegramSender,
	dispatcher domain.Dispatcher,
	managers []int64,
	m *metrics.Metrics,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	allowed := make(map[int64]bool, len(managers))
	for _, id := range managers {
		allowed[id] = true
	}

	return &Bot{
		tgService:  tgService,
		dispatcher: dispatcher,
		managers:   allowed,
		metrics:    m,
		logger:     logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			b.tgService.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	updateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		userID := update.Message.From.ID
		if !b.isAllowed(userID) {
			b.logger.Warn().Int64("user_id", userID).Msg("Команда от постороннего пользователя")
			return
		}
		b.handleCommand(updateCtx, update)
	})
}

func (b *Bot) handleCommand(ctx context.Context, update tgbotapi.Update) {
	name := update.Message.Command()
	args := parseArgs(update.Message.CommandArguments())

	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(name, "telegram").Inc()
	}

	result, err := b.dispatcher.Handle(ctx, domain.Command{Name: name, Args: args})
	if err != nil {
		var usage *dispatch.UsageError
		switch {
		case errors.As(err, &usage):
			result = usage.Message
		case errors.Is(err, dispatch.ErrUnknownCommand):
			result = "Неизвестная команда. Список команд: /help"
		default:
			b.logger.Error().Err(err).Str("command", name).Msg("Ошибка обработки команды")
			result = "Произошла ошибка при обработке команды"
		}
	}

	b.sendMessage(update.Message.Chat.ID, result)
}

// SendMessage delivers plain text to a chat; used for scheduler
// notifications as well as command replies.
func (b *Bot) SendMessage(chatID int64, text string) {
	b.sendMessage(chatID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tgService.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Ошибка отправки сообщения")
	}
}

func (b *Bot) isAllowed(userID int64) bool {
	if len(b.managers) == 0 {
		return true
	}
	return b.managers[userID]
}

// withRecovery keeps a panicking handler from killing the update loop.
func (b *Bot) withRecovery(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in update handler")
		}
	}()
	fn()
}

func parseArgs(raw string) []string {
	return strings.Fields(raw)
}
