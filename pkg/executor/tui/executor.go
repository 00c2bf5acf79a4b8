// Package tui provides a terminal user interface for browsing, searching,
// editing and dictating memos.
//
// The TUI codebase is split into multiple files:
// - executor.go: Executor and program lifecycle
// - model.go: Core model structure and messages
// - commands.go: Commands wrapping cache and dictation calls
// - update.go: Bubble Tea Update function and key handling
// - view.go: Bubble Tea View function and rendering
// - styles.go: Color schemes and styling
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/memos/pkg/cache"
	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/speech"
)

// Executor runs the interactive memo browser.
type Executor struct {
	cache     *cache.Cache
	dictation *speech.Dictation
	log       *logging.Logger
	program   *tea.Program
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDictation enables speech input in the editor.
func WithDictation(d *speech.Dictation) ExecutorOption {
	return func(e *Executor) {
		e.dictation = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		e.log = l
	}
}

// NewExecutor creates a TUI executor over c. The cache is activated when
// the program starts.
func NewExecutor(c *cache.Cache, opts ...ExecutorOption) *Executor {
	e := &Executor{
		cache: c,
		log:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the TUI and blocks until the user exits or ctx is canceled.
func (e *Executor) Run(ctx context.Context) error {
	e.log.Infof("TUI starting")

	m := newModel(ctx, e.cache, e.dictation, e.log)
	e.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	// Forward external state changes to the event loop.
	unsubscribe := e.cache.Subscribe(func(s cache.State) {
		e.program.Send(stateMsg{state: s})
	})
	defer unsubscribe()

	if e.dictation != nil {
		stop := e.dictation.OnChange(func(s speech.Snapshot) {
			e.program.Send(dictationMsg{snap: s})
		})
		defer stop()
	}

	if _, err := e.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI program: %w", err)
	}

	e.log.Infof("TUI exited")
	return nil
}
