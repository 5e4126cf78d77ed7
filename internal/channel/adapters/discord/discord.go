// Package discord connects the dispatcher to the Discord gateway.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gemrelay/gemrelay/internal/channel"
	"github.com/gemrelay/gemrelay/internal/config"
)

// Type is the Discord channel identifier.
const Type = channel.ChannelType("discord")

// typingRefreshInterval keeps the indicator alive; Discord expires a
// typing event after roughly ten seconds.
const typingRefreshInterval = 8 * time.Second

// Adapter wraps a discordgo gateway session.
type Adapter struct {
	logger  *slog.Logger
	session *discordgo.Session
	remove  func()
}

// New creates a Discord adapter from the configured bot token.
func New(log *slog.Logger, cfg config.DiscordConfig) (*Adapter, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Adapter{
		logger:  log.With(slog.String("adapter", "discord")),
		session: session,
	}, nil
}

// Type returns the Discord channel type.
func (a *Adapter) Type() channel.ChannelType {
	return Type
}

// Connect registers the message handler and opens the gateway connection.
func (a *Adapter) Connect(ctx context.Context, handler channel.InboundHandler) error {
	a.remove = a.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if ctx.Err() != nil {
			return
		}
		if m.Author == nil {
			return
		}

		botID := s.State.User.ID
		msg := channel.InboundMessage{
			Channel: Type,
			ID:      m.ID,
			Text:    m.Content,
			Sender: channel.Identity{
				SubjectID:   m.Author.ID,
				DisplayName: m.Author.Username,
			},
			BotName:          s.State.User.Username,
			ReplyTarget:      m.ChannelID,
			Direct:           m.GuildID == "",
			BotMentioned:     isBotMentioned(m.Message, botID),
			BroadcastMention: m.MentionEveryone,
			FromSelf:         m.Author.ID == botID,
			ReceivedAt:       time.Now().UTC(),
		}
		msg.Attachments = collectAttachments(m.Message)

		a.logger.Debug("inbound received",
			slog.String("message_id", m.ID),
			slog.String("user_id", m.Author.ID),
			slog.Int("attachments", len(msg.Attachments)))

		handler(ctx, msg)
	})

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord open connection: %w", err)
	}
	a.logger.Info("connected", slog.String("bot", a.session.State.User.Username))
	return nil
}

// Close removes the handler and closes the gateway connection.
func (a *Adapter) Close() error {
	if a.remove != nil {
		a.remove()
		a.remove = nil
	}
	return a.session.Close()
}

// Send delivers one chunk of text to the channel.
func (a *Adapter) Send(ctx context.Context, target, text string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("discord target is required")
	}
	_, err := a.session.ChannelMessageSend(target, text)
	return err
}

// React adds an emoji reaction to the message.
func (a *Adapter) React(ctx context.Context, target, messageID, emoji string) error {
	return a.session.MessageReactionAdd(target, messageID, emoji)
}

// Typing keeps the typing indicator active until the returned stop func is
// called.
func (a *Adapter) Typing(ctx context.Context, target string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			if err := a.session.ChannelTyping(target); err != nil {
				a.logger.Debug("typing indicator failed", slog.Any("error", err))
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

func collectAttachments(msg *discordgo.Message) []channel.Attachment {
	if msg == nil || len(msg.Attachments) == 0 {
		return nil
	}
	attachments := make([]channel.Attachment, 0, len(msg.Attachments))
	for _, att := range msg.Attachments {
		attachments = append(attachments, channel.Attachment{
			URL:  att.URL,
			Name: att.Filename,
			Size: int64(att.Size),
		})
	}
	return attachments
}

func isBotMentioned(msg *discordgo.Message, botID string) bool {
	if msg == nil {
		return false
	}
	for _, mention := range msg.Mentions {
		if mention != nil && mention.ID == botID {
			return true
		}
	}
	content := strings.ToLower(msg.Content)
	return strings.Contains(content, strings.ToLower("<@"+botID+">")) ||
		strings.Contains(content, strings.ToLower("<@!"+botID+">"))
}
