package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat in the terminal and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, deps ModelDeps, opts ...tea.ProgramOption) error {
	var program *tea.Program
	deps.Send = func(msg tea.Msg) { program.Send(msg) }

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	program = tea.NewProgram(NewModel(deps), opts...)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			program.Send(QuitMsg{})
		case <-done:
		}
	}()

	_, err := program.Run()
	return err
}
