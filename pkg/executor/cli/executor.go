// Package cli provides a line-oriented executor for managing memos from a
// terminal or a script.
//
// Example usage:
//
//	store := sqlite.New("voice-memos.db")
//	c := cache.New(store)
//	if err := c.Activate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	executor := cli.NewExecutor(c)
//	if err := executor.Exec(ctx, []string{"add", "Buy milk"}); err != nil {
//	    log.Fatal(err)
//	}
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/memos/pkg/cache"
	"github.com/entrhq/memos/pkg/memo"
	"github.com/entrhq/memos/pkg/speech"
)

// ErrUsage reports a malformed command.
var ErrUsage = errors.New("usage")

const (
	// previewLength is the number of runes shown per memo in listings.
	previewLength = 72

	// defaultStopTimeout bounds the wait for a stopped dictation session to end.
	defaultStopTimeout = 5 * time.Second
)

// Executor runs memo commands against a cache.
type Executor struct {
	cache     *cache.Cache
	dictation *speech.Dictation
	reader    *bufio.Reader
	writer    io.Writer
	sort      memo.SortOption

	stopTimeout time.Duration
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = bufio.NewReader(r)
	}
}

// WithDictation enables the dictate command.
func WithDictation(d *speech.Dictation) ExecutorOption {
	return func(e *Executor) {
		e.dictation = d
	}
}

// WithStopTimeout bounds how long dictate waits for the recognizer to
// deliver its last results after being stopped.
func WithStopTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.stopTimeout = d
	}
}

// WithSort sets the listing order.
func WithSort(opt memo.SortOption) ExecutorOption {
	return func(e *Executor) {
		e.sort = opt
	}
}

// NewExecutor creates a CLI executor over an activated cache.
func NewExecutor(c *cache.Cache, opts ...ExecutorOption) *Executor {
	e := &Executor{
		cache:  c,
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
		sort:   memo.DefaultSort,

		stopTimeout: defaultStopTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	// Dictation output arrives from the recognizer goroutine.
	e.writer = &lockedWriter{w: e.writer}
	return e
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Run reads commands line by line until EOF, "exit" or "quit".
func (e *Executor) Run(ctx context.Context) error {
	fmt.Fprintln(e.writer, "memos")
	fmt.Fprintln(e.writer, "Type 'help' for commands, 'exit' or 'quit' to leave.")
	fmt.Fprintln(e.writer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(e.writer, "> ")
		line, err := e.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		line = strings.TrimSpace(line)
		switch {
		case line == "exit" || line == "quit":
			return nil
		case line != "":
			name, rest := splitCommand(line)
			if cerr := e.dispatch(ctx, name, rest); cerr != nil {
				fmt.Fprintf(e.writer, "❌ Error: %v\n", cerr)
			}
		}

		if eof {
			fmt.Fprintln(e.writer)
			return nil
		}
	}
}

// Exec runs a single command given as arguments, e.g. ["add", "Buy", "milk"].
func (e *Executor) Exec(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", ErrUsage)
	}
	return e.dispatch(ctx, args[0], strings.Join(args[1:], " "))
}

func (e *Executor) dispatch(ctx context.Context, name, rest string) error {
	switch name {
	case "list", "ls":
		return e.list(rest)
	case "add", "new":
		return e.add(ctx, rest)
	case "show", "get":
		return e.show(ctx, rest)
	case "edit", "update":
		id, text := splitCommand(rest)
		return e.edit(ctx, id, text)
	case "delete", "rm":
		return e.delete(ctx, rest)
	case "sort":
		return e.setSort(rest)
	case "reload":
		e.cache.GetAllMemos(ctx)
		if err := e.cache.State().Error; err != nil {
			return err
		}
		fmt.Fprintf(e.writer, "Loaded %d memos\n", len(e.cache.State().Memos))
		return nil
	case "dictate":
		return e.dictate(ctx)
	case "help":
		e.help()
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q (try 'help')", ErrUsage, name)
	}
}

func (e *Executor) list(query string) error {
	state := e.cache.State()
	if state.Error != nil {
		return state.Error
	}

	memos := memo.Sort(memo.Filter(state.Memos, query), e.sort)
	if len(memos) == 0 {
		fmt.Fprintln(e.writer, "No memos found.")
		return nil
	}
	for _, m := range memos {
		preview := memo.Truncate(strings.Join(strings.Fields(m.Text), " "), previewLength)
		fmt.Fprintf(e.writer, "%s  %s  %s\n", m.ID, memo.FormatDate(m.UpdatedAt), preview)
	}
	return nil
}

func (e *Executor) add(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: add <text>", ErrUsage)
	}
	created, err := e.cache.CreateMemo(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.writer, "Created %s\n", created.ID)
	return nil
}

func (e *Executor) show(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: show <id>", ErrUsage)
	}
	m := e.cache.GetMemoByID(ctx, id)
	if m == nil {
		return e.missing(id)
	}
	fmt.Fprintf(e.writer, "ID:      %s\n", m.ID)
	fmt.Fprintf(e.writer, "Created: %s\n", memo.FormatDate(m.CreatedAt))
	fmt.Fprintf(e.writer, "Updated: %s\n", memo.FormatDate(m.UpdatedAt))
	fmt.Fprintln(e.writer)
	fmt.Fprintln(e.writer, m.Text)
	return nil
}

func (e *Executor) edit(ctx context.Context, id, text string) error {
	if id == "" || strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: edit <id> <text>", ErrUsage)
	}
	if e.cache.UpdateMemo(ctx, id, text) == nil {
		return e.missing(id)
	}
	fmt.Fprintf(e.writer, "Updated %s\n", id)
	return nil
}

func (e *Executor) delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: delete <id>", ErrUsage)
	}
	if !e.cache.DeleteMemo(ctx, id) {
		return e.missing(id)
	}
	fmt.Fprintf(e.writer, "Deleted %s\n", id)
	return nil
}

// missing distinguishes a failed operation from an absent memo.
func (e *Executor) missing(id string) error {
	if err := e.cache.State().Error; err != nil {
		return err
	}
	return fmt.Errorf("memo not found: %s", id)
}

func (e *Executor) setSort(arg string) error {
	field, dir := splitCommand(arg)
	opt := memo.SortOption{Field: memo.SortField(field)}
	switch field {
	case string(memo.SortByCreated), string(memo.SortByUpdated), string(memo.SortByText):
	default:
		return fmt.Errorf("%w: sort createdAt|updatedAt|text [asc|desc]", ErrUsage)
	}
	switch dir {
	case "", "asc":
	case "desc":
		opt.Descending = true
	default:
		return fmt.Errorf("%w: sort direction must be asc or desc", ErrUsage)
	}
	e.sort = opt
	fmt.Fprintf(e.writer, "Sorting by %s\n", opt)
	return nil
}

// dictate listens until the user presses Enter, then saves the transcript
// as a new memo.
func (e *Executor) dictate(ctx context.Context) error {
	if e.dictation == nil {
		return fmt.Errorf("dictation is not configured")
	}
	if snap := e.dictation.Snapshot(); !snap.Supported {
		return fmt.Errorf("dictation unavailable: %s", snap.Error)
	}

	var (
		mu   sync.Mutex
		last string
	)
	ended := make(chan struct{}, 1)
	unsubscribe := e.dictation.OnChange(func(s speech.Snapshot) {
		if !s.IsListening {
			select {
			case ended <- struct{}{}:
			default:
			}
		}

		mu.Lock()
		defer mu.Unlock()
		if s.Transcript != "" && s.Transcript != last {
			last = s.Transcript
			fmt.Fprintf(e.writer, "… %s\n", s.Transcript)
		}
	})
	defer unsubscribe()

	e.dictation.Reset()
	e.dictation.Start()
	fmt.Fprintln(e.writer, "Listening. Press Enter to stop.")

	_, err := e.reader.ReadString('\n')
	e.dictation.Stop()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read input: %w", err)
	}
	e.awaitEnd(ctx, ended)

	snap := e.dictation.Snapshot()
	if snap.Error != "" && strings.TrimSpace(snap.Transcript) == "" {
		return fmt.Errorf("dictation failed: %s", snap.Error)
	}
	text := strings.TrimSpace(snap.Transcript)
	if text == "" {
		fmt.Fprintln(e.writer, "Nothing was heard.")
		return nil
	}
	return e.add(ctx, text)
}

// awaitEnd waits until the recognizer reports the session over, so results
// it flushes while stopping are part of the transcript.
func (e *Executor) awaitEnd(ctx context.Context, ended <-chan struct{}) {
	timer := time.NewTimer(e.stopTimeout)
	defer timer.Stop()

	for e.dictation.Snapshot().IsListening {
		select {
		case <-ended:
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		}
	}
}

func (e *Executor) help() {
	fmt.Fprintln(e.writer, `Commands:
  list [query]                       list memos, optionally filtered (substring or glob)
  add <text>                         create a memo
  show <id>                          show a memo
  edit <id> <text>                   replace a memo's text
  delete <id>                        delete a memo
  sort createdAt|updatedAt|text [asc|desc]
  reload                             reload memos from storage
  dictate                            dictate a new memo
  exit | quit                        leave`)
}

// splitCommand splits "name rest of line" at the first whitespace.
func splitCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return line, ""
}
