package notify

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/slack-go/slack"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

// slackTextLimit keeps messages well under Slack's 40k character cap.
const slackTextLimit = 3900

var _ domain.Notifier = (*SlackNotifier)(nil)

// SlackOption configures the Slack notifier.
type SlackOption func(*slackOptions)

type slackOptions struct {
	apiURL string
}

// WithSlackAPIURL points the client at a different Web API base URL.
func WithSlackAPIURL(url string) SlackOption {
	return func(o *slackOptions) { o.apiURL = url }
}

// SlackNotifier posts reports to one Slack channel with a bot token.
type SlackNotifier struct {
	api       *slack.Client
	channelID string
	logger    *slog.Logger
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(cfg config.SlackConfig, logger *slog.Logger, opts ...SlackOption) (*SlackNotifier, error) {
	if err := requireField("slack", "bot_token", cfg.BotToken); err != nil {
		return nil, err
	}
	if err := requireField("slack", "channel_id", cfg.ChannelID); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var o slackOptions
	for _, opt := range opts {
		opt(&o)
	}
	var clientOpts []slack.Option
	if o.apiURL != "" {
		clientOpts = append(clientOpts, slack.OptionAPIURL(o.apiURL))
	}

	return &SlackNotifier{
		api:       slack.New(cfg.BotToken, clientOpts...),
		channelID: cfg.ChannelID,
		logger:    logger,
	}, nil
}

func (s *SlackNotifier) Name() string { return "slack" }

// Notify posts the report text, then uploads the attachment when present.
func (s *SlackNotifier) Notify(ctx context.Context, n domain.Notification) error {
	_, ts, err := s.api.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(format(n, "*", slackTextLimit), false),
	)
	if err != nil {
		return domain.NewSubSystemError("notify", "SlackNotifier.Notify", domain.ErrNotifyFailed, err.Error())
	}
	s.logger.Debug("slack report posted", "channel", s.channelID, "ts", ts)

	if n.FilePath == "" {
		return nil
	}
	info, err := os.Stat(n.FilePath)
	if err != nil {
		return domain.NewSubSystemError("notify", "SlackNotifier.Notify", domain.ErrNotifyFailed, err.Error())
	}
	_, err = s.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:         s.channelID,
		File:            n.FilePath,
		Filename:        filepath.Base(n.FilePath),
		FileSize:        int(info.Size()),
		Title:           n.Title,
		ThreadTimestamp: ts,
	})
	if err != nil {
		return domain.NewSubSystemError("notify", "SlackNotifier.Notify", domain.ErrNotifyFailed, "upload: "+err.Error())
	}
	return nil
}
