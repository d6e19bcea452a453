package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"absensi-ai/internal/domain"
	"absensi-ai/internal/usecase"
)

// askCmd runs the agent off the update loop. Tool events reach the
// program through send when it is set.
func askCmd(ctx context.Context, agent Agent, question string, history []domain.Message, model string, send func(tea.Msg), gen uint64) tea.Cmd {
	return func() tea.Msg {
		var opts []usecase.RunOption
		if model != "" {
			opts = append(opts, usecase.WithModel(model))
		}
		if send != nil {
			opts = append(opts, usecase.WithObserver(func(ev usecase.ToolEvent) {
				send(ToolEventMsg{Event: ev, Gen: gen})
			}))
		}

		start := time.Now()
		answer := agent.Run(ctx, question, history, opts...)
		return AnswerMsg{Question: question, Answer: answer, Elapsed: time.Since(start), Gen: gen}
	}
}

func streamTickCmd(rate time.Duration) tea.Cmd {
	if rate <= 0 {
		rate = 16 * time.Millisecond
	}
	return tea.Tick(rate, func(time.Time) tea.Msg {
		return StreamTickMsg{}
	})
}
