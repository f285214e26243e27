package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"gotolower/internal/driver"
	"gotolower/internal/ui"
)

type runOutcome struct {
	batch *driver.Batch
	err   error
}

// runWithUI runs the driver while a progress view consumes its events.
// Quitting the view cancels the run.
func runWithUI(ctx context.Context, title string, paths []string, opts driver.Options) (*driver.Batch, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan driver.Event, 256)
	outcomeCh := make(chan runOutcome, 1)
	go func() {
		o := opts
		o.Events = events
		batch, err := driver.Run(ctx, paths, o)
		outcomeCh <- runOutcome{batch: batch, err: err}
	}()

	model := ui.NewProgressModel(title, paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout), tea.WithContext(ctx))
	final, uiErr := program.Run()
	if uiErr != nil || !ui.Finished(final) {
		cancel()
	}
	// Run закрывает канал сам; дочитываем, чтобы воркеры не ждали
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil {
		return outcome.batch, uiErr
	}
	return outcome.batch, outcome.err
}
