// Package dispatch routes inbound chat events through session state, the
// attachment pipeline, the AI backend, and chunked delivery.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gemrelay/gemrelay/internal/attach"
	"github.com/gemrelay/gemrelay/internal/backend"
	"github.com/gemrelay/gemrelay/internal/channel"
	"github.com/gemrelay/gemrelay/internal/chunker"
	"github.com/gemrelay/gemrelay/internal/media"
	"github.com/gemrelay/gemrelay/internal/session"
)

const (
	// NoResponseSentinel is delivered when the backend returns no candidate
	// text. Not an error.
	NoResponseSentinel = "No valid response received."
	// fallbackMessage is sent when the backend call itself fails.
	fallbackMessage = "An error occurred while generating the response."
	// defaultAttachmentPrompt accompanies attachments sent without text.
	defaultAttachmentPrompt = "What is this?"

	reactionAttachment = "📄"
	reactionText       = "💬"
	resetConfirmation  = "🧹 History reset for user: "
)

// bracketed inline mention/tag markup, stripped before any processing.
var markupPattern = regexp.MustCompile(`<[^>]+>`)

// Backend is the generative-AI collaborator.
type Backend interface {
	NewChat(ctx context.Context) (any, error)
	Send(ctx context.Context, handle any, parts []backend.Part) (backend.Reply, error)
	Generate(ctx context.Context, parts []backend.Part) (backend.Reply, error)
}

// Ingestor turns an attachment URL into a backend-ready payload.
type Ingestor interface {
	Ingest(ctx context.Context, url, filename string) (attach.Payload, error)
}

// Options configures dispatcher behavior shared across channels.
type Options struct {
	ResetKeyword string
	HistoryDepth int
}

type binding struct {
	out    channel.Outbound
	maxLen int
}

// Dispatcher is the per-event entry point. Events for one user run in
// arrival order; events for different users run concurrently.
type Dispatcher struct {
	logger   *slog.Logger
	sessions *session.Store
	backend  Backend
	pipeline Ingestor
	opts     Options

	mu       sync.RWMutex
	channels map[channel.ChannelType]binding

	queues *queueSet
}

// New creates a Dispatcher. Channels are attached with Register before
// their adapters connect.
func New(log *slog.Logger, sessions *session.Store, be Backend, pipeline Ingestor, opts Options) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if opts.ResetKeyword == "" {
		opts.ResetKeyword = "RESET"
	}
	return &Dispatcher{
		logger:   log.With(slog.String("component", "dispatch")),
		sessions: sessions,
		backend:  be,
		pipeline: pipeline,
		opts:     opts,
		channels: make(map[channel.ChannelType]binding),
		queues:   newQueueSet(),
	}
}

// Register attaches a channel's outbound surface and its per-message
// length limit.
func (d *Dispatcher) Register(t channel.ChannelType, out channel.Outbound, maxLen int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[t] = binding{out: out, maxLen: maxLen}
}

func (d *Dispatcher) binding(t channel.ChannelType) (binding, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.channels[t]
	return b, ok
}

// HandleInbound classifies the event and enqueues it on the sender's
// queue. Safe to call from adapter event loops; never blocks on network
// I/O.
func (d *Dispatcher) HandleInbound(ctx context.Context, msg channel.InboundMessage) {
	if msg.FromSelf {
		return
	}

	b, ok := d.binding(msg.Channel)
	if !ok {
		d.logger.Warn("inbound for unregistered channel", slog.String("channel", msg.Channel.String()))
		return
	}

	if msg.BroadcastMention {
		d.queues.enqueue(msg.UserKey(), func() {
			if err := b.out.Send(ctx, msg.ReplyTarget, "This is "+msg.BotName); err != nil {
				d.logger.Error("send identity reply failed", slog.Any("error", err))
			}
		})
		return
	}

	if !msg.BotMentioned && !msg.Direct {
		return
	}

	d.queues.enqueue(msg.UserKey(), func() {
		d.process(ctx, b, msg)
	})
}

func (d *Dispatcher) process(ctx context.Context, b binding, msg channel.InboundMessage) {
	eventID := uuid.NewString()
	log := d.logger.With(
		slog.String("event_id", eventID),
		slog.String("channel", msg.Channel.String()),
		slog.String("user_id", msg.Sender.SubjectID),
	)

	cleaned := strings.TrimSpace(markupPattern.ReplaceAllString(msg.Text, ""))

	if strings.EqualFold(cleaned, d.opts.ResetKeyword) {
		d.sessions.Reset(msg.UserKey())
		log.Info("session reset")
		if err := b.out.Send(ctx, msg.ReplyTarget, resetConfirmation+msg.Sender.DisplayName); err != nil {
			log.Error("send reset confirmation failed", slog.Any("error", err))
		}
		return
	}

	stopTyping := b.out.Typing(ctx, msg.ReplyTarget)
	defer stopTyping()

	if len(msg.Attachments) > 0 {
		d.processAttachment(ctx, log, b, msg, cleaned)
		return
	}
	d.processText(ctx, log, b, msg, cleaned)
}

func (d *Dispatcher) processText(ctx context.Context, log *slog.Logger, b binding, msg channel.InboundMessage, cleaned string) {
	d.react(ctx, log, b, msg, reactionText)

	parts := []backend.Part{backend.TextPart(cleaned)}
	d.invokeAndDeliver(ctx, log, b, msg, cleaned, parts)
}

func (d *Dispatcher) processAttachment(ctx context.Context, log *slog.Logger, b binding, msg channel.InboundMessage, cleaned string) {
	d.react(ctx, log, b, msg, reactionAttachment)

	att := msg.Attachments[0]
	payload, err := d.pipeline.Ingest(ctx, att.URL, att.Name)
	if err != nil {
		log.Warn("attachment ingest failed", slog.String("url", att.URL), slog.Any("error", err))
		d.sendUserError(ctx, log, b, msg.ReplyTarget, err)
		return
	}

	text := cleaned
	if text == "" {
		text = defaultAttachmentPrompt
	}
	parts := []backend.Part{
		backend.TextPart(text),
		backend.DataPart(payload.Bytes, payload.ContentType),
	}
	d.invokeAndDeliver(ctx, log, b, msg, text, parts)
}

// invokeAndDeliver appends the user turn, calls the backend, appends the
// model turn, and delivers the chunked reply. The user turn stays in
// history even when the backend call fails.
func (d *Dispatcher) invokeAndDeliver(ctx context.Context, log *slog.Logger, b binding, msg channel.InboundMessage, userText string, parts []backend.Part) {
	userKey := msg.UserKey()

	var (
		reply backend.Reply
		err   error
	)
	if d.opts.HistoryDepth > 0 {
		handle := d.sessions.Handle(userKey)
		if handle == nil {
			handle, err = d.backend.NewChat(ctx)
			if err != nil {
				log.Error("create chat failed", slog.Any("error", err))
				d.send(ctx, log, b, msg.ReplyTarget, fallbackMessage)
				return
			}
			d.sessions.SetHandle(userKey, handle)
			// A fresh backend chat is primed with the local history render;
			// on a user's first message this is the no-history sentinel.
			parts = append([]backend.Part{backend.TextPart(d.sessions.FormatHistory(userKey))}, parts...)
		}
		d.sessions.AppendTurn(userKey, session.RoleUser, userText)
		reply, err = d.backend.Send(ctx, handle, parts)
	} else {
		reply, err = d.backend.Generate(ctx, parts)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("backend call timed out", slog.Any("error", err))
		} else {
			log.Error("backend call failed", slog.Any("error", err))
		}
		d.send(ctx, log, b, msg.ReplyTarget, fallbackMessage)
		return
	}

	text := reply.Text
	if reply.Empty {
		text = NoResponseSentinel
	}

	if d.opts.HistoryDepth > 0 {
		d.sessions.AppendTurn(userKey, session.RoleModel, text)
	}

	for _, chunk := range chunker.Split(text, b.maxLen) {
		if err := b.out.Send(ctx, msg.ReplyTarget, chunk); err != nil {
			log.Error("send chunk failed", slog.Any("error", err))
			return
		}
	}
}

// sendUserError maps pipeline failures onto user-visible messages.
func (d *Dispatcher) sendUserError(ctx context.Context, log *slog.Logger, b binding, target string, err error) {
	var text string
	switch {
	case errors.Is(err, attach.ErrUnsupportedAttachment):
		text = err.Error()
	case errors.Is(err, media.ErrNormalizationFailed):
		text = "Unable to shrink the image under the size limit."
	case errors.Is(err, media.ErrAttachmentTooLarge):
		text = "The file is too large to process."
	case errors.Is(err, attach.ErrFetchFailed):
		text = "Unable to download the file."
	default:
		text = "Unable to process the file."
	}
	d.send(ctx, log, b, target, text)
}

func (d *Dispatcher) send(ctx context.Context, log *slog.Logger, b binding, target, text string) {
	if err := b.out.Send(ctx, target, text); err != nil {
		log.Error("send failed", slog.Any("error", err))
	}
}

func (d *Dispatcher) react(ctx context.Context, log *slog.Logger, b binding, msg channel.InboundMessage, emoji string) {
	if err := b.out.React(ctx, msg.ReplyTarget, msg.ID, emoji); err != nil {
		log.Debug("add reaction failed", slog.Any("error", err))
	}
}
