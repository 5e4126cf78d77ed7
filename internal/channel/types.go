// Package channel defines the platform-neutral boundary between chat
// platform adapters and the dispatcher.
package channel

import (
	"context"
	"strings"
	"time"
)

// ChannelType identifies a messaging platform (e.g., "discord", "telegram").
type ChannelType string

// String returns the channel type as a plain string.
func (c ChannelType) String() string {
	return string(c)
}

// Identity represents a sender's identity on a channel.
type Identity struct {
	SubjectID   string
	DisplayName string
}

// Attachment references a file attached to an inbound message.
type Attachment struct {
	URL  string
	Name string
	Size int64
}

// InboundMessage is a message received from a platform adapter.
type InboundMessage struct {
	Channel          ChannelType
	ID               string
	Text             string
	Attachments      []Attachment
	Sender           Identity
	BotName          string
	ReplyTarget      string
	Direct           bool
	BotMentioned     bool
	BroadcastMention bool
	FromSelf         bool
	ReceivedAt       time.Time
}

// UserKey returns a stable per-user identifier scoped by platform, used to
// key sessions and per-user work queues.
func (m InboundMessage) UserKey() string {
	return strings.Join([]string{m.Channel.String(), m.Sender.SubjectID}, ":")
}

// InboundHandler consumes inbound messages. Implementations must return
// quickly; the adapter event loop is not a place to block.
type InboundHandler func(ctx context.Context, msg InboundMessage)

// Outbound is the delivery surface an adapter exposes to the dispatcher.
type Outbound interface {
	// Send delivers one already-bounded chunk of text to the target.
	Send(ctx context.Context, target, text string) error
	// React adds an emoji reaction to a message.
	React(ctx context.Context, target, messageID, emoji string) error
	// Typing starts a typing indicator scoped to the returned stop func.
	Typing(ctx context.Context, target string) (stop func())
}

// Adapter is a connected platform integration.
type Adapter interface {
	Outbound
	Type() ChannelType
	// Connect starts receiving events and forwards them to the handler
	// until ctx is cancelled or Close is called.
	Connect(ctx context.Context, handler InboundHandler) error
	Close() error
}
