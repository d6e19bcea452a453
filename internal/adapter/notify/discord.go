package notify

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

// discordTextLimit is Discord's message length cap.
const discordTextLimit = 2000

var _ domain.Notifier = (*DiscordNotifier)(nil)

// DiscordNotifier posts reports to one Discord channel through the REST
// API. It never opens a gateway connection.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	logger    *slog.Logger
}

// NewDiscordNotifier creates a Discord notifier.
func NewDiscordNotifier(cfg config.DiscordConfig, logger *slog.Logger) (*DiscordNotifier, error) {
	if err := requireField("discord", "token", cfg.Token); err != nil {
		return nil, err
	}
	if err := requireField("discord", "channel_id", cfg.ChannelID); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, domain.NewSubSystemError("notify", "NewDiscordNotifier", domain.ErrInvalidInput, err.Error())
	}
	return &DiscordNotifier{session: dg, channelID: cfg.ChannelID, logger: logger}, nil
}

// SetHTTPClient replaces the client used for REST calls.
func (d *DiscordNotifier) SetHTTPClient(c *http.Client) { d.session.Client = c }

func (d *DiscordNotifier) Name() string { return "discord" }

// Notify sends the report, with the attachment in the same message.
func (d *DiscordNotifier) Notify(ctx context.Context, n domain.Notification) error {
	msg := &discordgo.MessageSend{Content: format(n, "**", discordTextLimit)}

	if n.FilePath != "" {
		f, err := os.Open(n.FilePath)
		if err != nil {
			return domain.NewSubSystemError("notify", "DiscordNotifier.Notify", domain.ErrNotifyFailed, err.Error())
		}
		defer f.Close()
		msg.Files = []*discordgo.File{{
			Name:        filepath.Base(n.FilePath),
			ContentType: "application/pdf",
			Reader:      f,
		}}
	}

	sent, err := d.session.ChannelMessageSendComplex(d.channelID, msg, discordgo.WithContext(ctx))
	if err != nil {
		return domain.NewSubSystemError("notify", "DiscordNotifier.Notify", domain.ErrNotifyFailed, err.Error())
	}
	d.logger.Debug("discord report posted", "channel", d.channelID, "message_id", sent.ID)
	return nil
}
