// Package bot wires the messaging channel, admin directory, conversation
// engine, and catalog store into the dealership's WhatsApp command bot.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fusioncars/dealerbot/internal/flow"
	"github.com/fusioncars/dealerbot/internal/messaging"
	"github.com/fusioncars/dealerbot/internal/models"
	"github.com/fusioncars/dealerbot/internal/store"
)

// DefaultRosterReloadInterval is how often the admin roster is refreshed from
// the store while the bot is running.
const DefaultRosterReloadInterval = 5 * time.Minute

// Describer produces a marketing description for a listing. Satisfied by
// genai.Client; nil disables the /describe command.
type Describer interface {
	DescribeCar(ctx context.Context, car models.Car) (string, error)
}

// Opts holds configuration options for the bot.
type Opts struct {
	ConversationTTL      time.Duration
	RosterReloadInterval time.Duration
	Describer            Describer
}

// Option defines a configuration option for the bot.
type Option func(*Opts)

// WithConversationTTL sets how long an idle conversation survives.
func WithConversationTTL(ttl time.Duration) Option {
	return func(o *Opts) {
		o.ConversationTTL = ttl
	}
}

// WithRosterReloadInterval sets the admin roster refresh period.
func WithRosterReloadInterval(interval time.Duration) Option {
	return func(o *Opts) {
		o.RosterReloadInterval = interval
	}
}

// WithDescriber enables the /describe command with the given generator.
func WithDescriber(d Describer) Option {
	return func(o *Opts) {
		o.Describer = d
	}
}

// Bot is the dealership's conversational command engine. All inbound messages
// are handled on the single Run goroutine, which is what lets the conversation
// store go without locks.
type Bot struct {
	store         store.Store
	messenger     messaging.Service
	directory     *AdminDirectory
	conversations *flow.ConversationStore
	engine        *flow.Engine
	describer     Describer
	rosterReload  time.Duration
}

// NewBot creates a bot over the given store and messaging service.
func NewBot(st store.Store, messenger messaging.Service, opts ...Option) *Bot {
	cfg := Opts{
		ConversationTTL:      flow.DefaultConversationTTL,
		RosterReloadInterval: DefaultRosterReloadInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Bot{
		store:         st,
		messenger:     messenger,
		directory:     NewAdminDirectory(),
		conversations: flow.NewConversationStore(cfg.ConversationTTL),
		engine:        flow.NewEngine(flow.NewCreateCarFlow(), flow.NewUpdateCarFlow()),
		describer:     cfg.Describer,
		rosterReload:  cfg.RosterReloadInterval,
	}
}

// Run loads the admin roster and processes inbound messages until ctx is
// cancelled or the messaging service closes its response channel.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.directory.Load(b.store); err != nil {
		return fmt.Errorf("failed to start bot: %w", err)
	}

	ticker := time.NewTicker(b.rosterReload)
	defer ticker.Stop()

	slog.Info("Bot running", "admins", b.directory.Len())
	for {
		select {
		case <-ctx.Done():
			slog.Info("Bot stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if err := b.directory.Load(b.store); err != nil {
				slog.Warn("Bot roster refresh failed, keeping previous roster", "error", err)
			}
		case resp, ok := <-b.messenger.Responses():
			if !ok {
				slog.Info("Bot response channel closed, stopping")
				return nil
			}
			b.handleMessage(ctx, resp)
		}
	}
}

// handleMessage processes one inbound message. A panic in a handler is
// contained to that message: it is logged and the sender gets a generic
// failure reply, and the loop keeps serving other senders.
func (b *Bot) handleMessage(ctx context.Context, resp models.Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Bot recovered from panic while handling message", "from", resp.From, "panic", r)
			if canonical, err := messaging.CanonicalizePhone(resp.From); err == nil {
				b.reply(ctx, canonical, "⚠️ Something went wrong processing your message. Please try again.")
			}
		}
	}()

	canonical, err := messaging.CanonicalizePhone(resp.From)
	if err != nil {
		slog.Debug("Bot ignoring message with invalid sender", "from", resp.From, "error", err)
		return
	}

	text := strings.TrimSpace(resp.Body)
	if text == "" {
		return
	}

	admin, authorized := b.directory.Resolve(canonical)
	isCommand := strings.HasPrefix(text, "/")

	if !authorized {
		if _, ok := b.conversations.Get(canonical); ok {
			// The sender was removed from the roster mid-conversation.
			b.conversations.Delete(canonical)
			b.reply(ctx, canonical, unauthorizedText)
			return
		}
		if isCommand {
			slog.Info("Bot denied unauthorized command", "from", canonical)
			b.reply(ctx, canonical, unauthorizedText)
		}
		return
	}

	// Commands always dispatch, even mid-conversation: /help answers, /cancel
	// aborts the active flow, and /create or /update starts over.
	if isCommand {
		b.dispatchCommand(ctx, admin, canonical, text)
		return
	}

	if state, ok := b.conversations.Get(canonical); ok {
		b.advanceConversation(ctx, admin, state, text)
		return
	}

	// Free-form chatter from an admin with no active conversation.
}

// advanceConversation feeds one message into the sender's active flow and
// commits, cancels, or re-prompts based on the result.
func (b *Bot) advanceConversation(ctx context.Context, admin models.Admin, state *flow.State, text string) {
	res, err := b.engine.Advance(state, text)
	if err != nil {
		slog.Error("Bot conversation failed", "sender", state.Sender, "kind", state.Kind, "error", err)
		b.conversations.Delete(state.Sender)
		b.reply(ctx, state.Sender, "⚠️ Something went wrong with this conversation. Please start over.")
		return
	}

	switch {
	case res.Cancelled:
		b.conversations.Delete(state.Sender)
		b.reply(ctx, state.Sender, res.Reply)
	case res.Completed:
		b.conversations.Delete(state.Sender)
		b.commitConversation(ctx, admin, state, res.Fields)
	default:
		b.conversations.Touch(state)
		b.reply(ctx, state.Sender, res.Reply)
	}
}

// commitConversation applies a completed flow's collected fields to the store.
func (b *Bot) commitConversation(ctx context.Context, admin models.Admin, state *flow.State, fields map[string]string) {
	switch state.Kind {
	case flow.KindCreateCar:
		b.commitCreateCar(ctx, admin, state.Sender, fields)
	case flow.KindUpdateCar:
		b.commitUpdateCar(ctx, admin, state.Sender, fields)
	default:
		slog.Error("Bot completed conversation of unknown kind", "kind", state.Kind, "sender", state.Sender)
		b.reply(ctx, state.Sender, "⚠️ Something went wrong. Please start over.")
	}
}

// reply sends a single outbound message, truncating oversized bodies on a rune
// boundary and logging (not propagating) delivery failures.
func (b *Bot) reply(ctx context.Context, to, body string) {
	if len(body) > models.MaxReplyLength {
		cut := models.MaxReplyLength
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	if err := b.messenger.SendMessage(ctx, to, body); err != nil {
		slog.Error("Bot failed to send reply", "to", to, "error", err)
	}
}

// Notify broadcasts a message to every admin in the roster. Used by the wider
// platform to push events (new booking, low inventory) into the admin chat.
func (b *Bot) Notify(ctx context.Context, body string) {
	for _, number := range b.directory.Numbers() {
		b.reply(ctx, number, body)
	}
}

// SendDailyDigest pushes the inventory and pending-booking summary to every
// admin. Wired to a cron schedule in main.
func (b *Bot) SendDailyDigest(ctx context.Context) {
	counts, err := b.store.CarCounts()
	if err != nil {
		slog.Error("Bot daily digest failed to load car counts", "error", err)
		return
	}
	bookings, err := b.store.ListPendingBookings(bookingsLimit)
	if err != nil {
		slog.Error("Bot daily digest failed to load bookings", "error", err)
		return
	}

	b.Notify(ctx, fmt.Sprintf(
		"🌅 *Daily Digest*\n\nInventory: %d total · %d available · %d sold\nPending bookings: %d\n\nSend */stats* or */bookings* for details.",
		counts.Total, counts.Available, counts.Sold, len(bookings)))
}
