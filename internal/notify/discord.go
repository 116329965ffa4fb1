package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"ffarm/internal/farm"
)

// discordAPI is the part of *discordgo.Session the sink uses.
type discordAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink sends each notification as a direct message. Chat ids are
// Discord user ids.
type DiscordSink struct {
	api discordAPI
	log *slog.Logger

	mu       sync.Mutex
	channels map[string]string
}

func NewDiscordSink(token string, logger *slog.Logger) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return newDiscordSink(session, logger), nil
}

func newDiscordSink(api discordAPI, logger *slog.Logger) *DiscordSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordSink{api: api, log: logger, channels: make(map[string]string)}
}

func (d *DiscordSink) channelFor(userID string) (string, error) {
	d.mu.Lock()
	id, ok := d.channels[userID]
	d.mu.Unlock()
	if ok {
		return id, nil
	}
	ch, err := d.api.UserChannelCreate(userID)
	if err != nil {
		return "", err
	}
	d.mu.Lock()
	d.channels[userID] = ch.ID
	d.mu.Unlock()
	return ch.ID, nil
}

func (d *DiscordSink) Notify(ctx context.Context, n farm.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.ChatID == "" {
		return fmt.Errorf("account %d has no chat id", n.AccountID)
	}
	channelID, err := d.channelFor(n.ChatID)
	if err != nil {
		return fmt.Errorf("open dm for account %d: %w", n.AccountID, err)
	}
	if _, err := d.api.ChannelMessageSend(channelID, Render(n), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm for account %d: %w", n.AccountID, err)
	}
	d.log.Debug("discord message sent", "account_id", n.AccountID, "kind", n.Kind)
	return nil
}
