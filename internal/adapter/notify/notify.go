// Package notify delivers scheduled attendance reports to chat channels.
package notify

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/infra/config"
)

// FromConfig builds the notifiers enabled in cfg.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) ([]domain.Notifier, error) {
	var out []domain.Notifier
	if cfg.Slack != nil {
		n, err := NewSlackNotifier(*cfg.Slack, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if cfg.Discord != nil {
		n, err := NewDiscordNotifier(*cfg.Discord, logger)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// format renders a notification as a title line followed by the body in a
// code block, cut to limit runes.
func format(n domain.Notification, bold string, limit int) string {
	head := bold + n.Title + bold
	if n.Body == "" {
		return head
	}

	const fence = "```"
	open := "\n" + fence + "json\n"
	closing := "\n" + fence
	body := strings.TrimSpace(n.Body)

	room := limit - utf8.RuneCountInString(head+open+closing)
	if room <= 0 {
		return truncateRunes(head, limit)
	}
	if utf8.RuneCountInString(body) > room {
		body = truncateRunes(body, room-1) + "…"
	}
	return head + open + body + closing
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func requireField(notifier, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewSubSystemError("notify", notifier, domain.ErrInvalidInput, fmt.Sprintf("%s is required", field))
	}
	return nil
}
