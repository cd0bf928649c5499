package main

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"clifmatch/internal/pipeline"
	"clifmatch/internal/ui"
)

type batchOutcome struct {
	summary *pipeline.Summary
	err     error
}

// runBatchWithUI runs the batch while a progress view renders its events.
func runBatchWithUI(ctx context.Context, out io.Writer, title string, req *pipeline.Request) (*pipeline.Summary, error) {
	if req == nil {
		return nil, fmt.Errorf("missing pipeline request")
	}
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan batchOutcome, 1)

	go func() {
		reqCopy := *req
		reqCopy.Progress = pipeline.ChannelSink{Ch: events}
		sum, err := pipeline.Run(ctx, &reqCopy)
		outcomeCh <- batchOutcome{summary: sum, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, req.Inputs, events)
	program := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	_, uiErr := program.Run()
	// the view may quit early; keep the batch from blocking on a full channel
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil && outcome.err == nil && ctx.Err() == nil {
		return outcome.summary, uiErr
	}
	return outcome.summary, outcome.err
}
