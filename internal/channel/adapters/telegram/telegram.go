// Package telegram connects the dispatcher to the Telegram Bot API via
// long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gemrelay/gemrelay/internal/channel"
	"github.com/gemrelay/gemrelay/internal/config"
)

// Type is the Telegram channel identifier.
const Type = channel.ChannelType("telegram")

const (
	updateTimeoutSeconds  = 30
	typingRefreshInterval = 4 * time.Second
)

// Adapter wraps a Telegram bot connection.
type Adapter struct {
	logger *slog.Logger
	bot    *tgbotapi.BotAPI
	cancel context.CancelFunc
}

// New creates a Telegram adapter from the configured bot token.
func New(log *slog.Logger, cfg config.TelegramConfig) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	return &Adapter{
		logger: log.With(slog.String("adapter", "telegram")),
		bot:    bot,
	}, nil
}

// Type returns the Telegram channel type.
func (a *Adapter) Type() channel.ChannelType {
	return Type
}

// Connect starts long-polling for updates and forwards messages to the
// handler until the context is cancelled.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = updateTimeoutSeconds
	updates := a.bot.GetUpdatesChan(updateConfig)

	connCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		for {
			select {
			case <-connCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				if update.Message == nil || update.Message.From == nil {
					continue
				}
				handler(connCtx, a.toInbound(update.Message))
			}
		}
	}()

	a.logger.Info("connected", slog.String("bot", a.bot.Self.UserName))
	return nil
}

// Close stops the update loop.
func (a *Adapter) Close() error {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.bot.StopReceivingUpdates()
	return nil
}

// Send delivers one chunk of text to the chat.
func (a *Adapter) Send(ctx context.Context, target, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram target must be a chat id: %w", err)
	}
	_, err = a.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// React is a no-op; the Bot API long-polling surface has no reaction
// endpoint in this client.
func (a *Adapter) React(ctx context.Context, target, messageID, emoji string) error {
	return nil
}

// Typing keeps the chat action indicator active until the returned stop
// func is called; Telegram expires a chat action after about five seconds.
func (a *Adapter) Typing(ctx context.Context, target string) func() {
	chatID, err := strconv.ParseInt(strings.TrimSpace(target), 10, 64)
	if err != nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			if _, err := a.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
				a.logger.Debug("chat action failed", slog.Any("error", err))
			}
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() { close(done) }
}

func (a *Adapter) toInbound(m *tgbotapi.Message) channel.InboundMessage {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		text = strings.TrimSpace(m.Caption)
	}

	botMention := "@" + a.bot.Self.UserName
	mentioned := strings.Contains(text, botMention)
	if mentioned {
		text = strings.TrimSpace(strings.ReplaceAll(text, botMention, ""))
	}

	displayName := strings.TrimSpace(m.From.UserName)
	if displayName == "" {
		displayName = strings.TrimSpace(m.From.FirstName + " " + m.From.LastName)
	}

	return channel.InboundMessage{
		Channel: Type,
		ID:      strconv.Itoa(m.MessageID),
		Text:    text,
		Sender: channel.Identity{
			SubjectID:   strconv.FormatInt(m.From.ID, 10),
			DisplayName: displayName,
		},
		BotName:      a.bot.Self.UserName,
		ReplyTarget:  strconv.FormatInt(m.Chat.ID, 10),
		Direct:       m.Chat.IsPrivate(),
		BotMentioned: mentioned,
		FromSelf:     m.From.ID == a.bot.Self.ID,
		ReceivedAt:   time.Now().UTC(),
		Attachments:  a.collectAttachments(m),
	}
}

func (a *Adapter) collectAttachments(m *tgbotapi.Message) []channel.Attachment {
	var attachments []channel.Attachment

	if m.Document != nil {
		if url, err := a.bot.GetFileDirectURL(m.Document.FileID); err == nil {
			attachments = append(attachments, channel.Attachment{
				URL:  url,
				Name: m.Document.FileName,
				Size: int64(m.Document.FileSize),
			})
		} else {
			a.logger.Warn("resolve document url failed", slog.Any("error", err))
		}
	}

	if len(m.Photo) > 0 {
		// Telegram sends multiple sizes; take the largest rendition.
		photo := m.Photo[len(m.Photo)-1]
		if url, err := a.bot.GetFileDirectURL(photo.FileID); err == nil {
			attachments = append(attachments, channel.Attachment{
				URL:  url,
				Name: photo.FileUniqueID + ".jpg",
				Size: int64(photo.FileSize),
			})
		} else {
			a.logger.Warn("resolve photo url failed", slog.Any("error", err))
		}
	}

	return attachments
}
