package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/entrhq/memos/pkg/cache"
	"github.com/entrhq/memos/pkg/logging"
	"github.com/entrhq/memos/pkg/memo"
	"github.com/entrhq/memos/pkg/speech"
)

// mode selects which screen handles input.
type mode int

const (
	modeList mode = iota
	modeSearch
	modeDetail
	modeEdit
	modeConfirmDelete
)

// listPreviewLength is the number of runes of memo text shown per row.
const listPreviewLength = 60

// model represents the state of the TUI application.
type model struct {
	ctx       context.Context
	cache     *cache.Cache
	dictation *speech.Dictation
	log       *logging.Logger

	// Bubble Tea components
	spinner  spinner.Model
	search   textinput.Model
	editor   textarea.Model
	viewport viewport.Model

	// Mirrors of external state
	state cache.State
	dict  speech.Snapshot

	// UI state
	mode      mode
	sort      memo.SortOption
	cursor    int
	current   *memo.Memo // memo shown in detail or being edited
	editingID string     // empty when composing a new memo
	returnTo  mode       // screen to go back to from delete confirmation
	dictating bool
	dictBase  string // editor text when dictation started
	toast     string

	// Window dimensions
	width  int
	height int
	ready  bool
}

// stateMsg carries a cache snapshot.
type stateMsg struct{ state cache.State }

// dictationMsg carries a dictation snapshot.
type dictationMsg struct{ snap speech.Snapshot }

// memoLoadedMsg carries a memo read for the detail view.
type memoLoadedMsg struct {
	id   string
	memo *memo.Memo
}

// savedMsg reports a completed create or update.
type savedMsg struct {
	memo *memo.Memo
	err  error
}

// deletedMsg reports a completed delete.
type deletedMsg struct {
	id string
	ok bool
}

// toastMsg shows a transient status line.
type toastMsg struct{ text string }

func newModel(ctx context.Context, c *cache.Cache, d *speech.Dictation, log *logging.Logger) *model {
	if log == nil {
		log = logging.Discard()
	}

	search := textinput.New()
	search.Placeholder = "Search memos (glob patterns like buy*milk work too)"
	search.Prompt = "/ "
	search.CharLimit = 256

	editor := textarea.New()
	editor.Placeholder = "Write or dictate a memo..."
	editor.ShowLineNumbers = false
	editor.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = listeningStyle

	m := &model{
		ctx:       ctx,
		cache:     c,
		dictation: d,
		log:       log,
		spinner:   sp,
		search:    search,
		editor:    editor,
		viewport:  viewport.New(80, 20),
		state:     c.State(),
		dict:      speech.Snapshot{Supported: d != nil},
		sort:      memo.DefaultSort,
	}
	if d != nil {
		m.dict = d.Snapshot()
	}
	return m
}

// visible returns the memos shown in the list: filtered by the search
// query, then sorted.
func (m *model) visible() []memo.Memo {
	return memo.Sort(memo.Filter(m.state.Memos, m.search.Value()), m.sort)
}

// selected returns the memo under the cursor.
func (m *model) selected() (memo.Memo, bool) {
	memos := m.visible()
	if len(memos) == 0 {
		return memo.Memo{}, false
	}
	if m.cursor >= len(memos) {
		m.cursor = len(memos) - 1
	}
	return memos[m.cursor], true
}

func (m *model) clampCursor() {
	n := len(m.visible())
	switch {
	case n == 0:
		m.cursor = 0
	case m.cursor >= n:
		m.cursor = n - 1
	case m.cursor < 0:
		m.cursor = 0
	}
}

func (m *model) canDictate() bool {
	return m.dictation != nil && m.dict.Supported
}
