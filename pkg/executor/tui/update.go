package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/memos/pkg/memo"
)

// Init starts the spinner and loads memos.
func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.activateCmd(), textarea.Blink)
}

// Update handles all state updates for the TUI model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleWindowResize(msg)
		return m, nil

	case stateMsg:
		m.state = msg.state
		m.clampCursor()
		return m, nil

	case dictationMsg:
		return m.handleDictation(msg)

	case memoLoadedMsg:
		return m.handleMemoLoaded(msg)

	case savedMsg:
		return m.handleSaved(msg)

	case deletedMsg:
		if msg.ok {
			m.toast = "Memo deleted"
			if m.current != nil && m.current.ID == msg.id {
				m.current = nil
			}
		}
		m.clampCursor()
		return m, nil

	case toastMsg:
		m.toast = msg.text
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, m.quit()
		}
		m.toast = ""
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m *model) handleWindowResize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	m.search.Width = max(msg.Width-8, 10)
	m.editor.SetWidth(max(msg.Width-6, 10))
	m.editor.SetHeight(max(msg.Height-10, 3))
	m.viewport.Width = max(msg.Width-4, 10)
	m.viewport.Height = max(msg.Height-10, 3)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeDetail:
		return m.handleDetailKey(msg)
	case modeEdit:
		return m.handleEditKey(msg)
	case modeConfirmDelete:
		return m.handleConfirmKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m *model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, m.quit()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case "/":
		m.mode = modeSearch
		return m, m.search.Focus()
	case "s":
		m.sort = m.sort.Next()
		m.toast = "Sorted by " + m.sort.String()
	case "r":
		return m, m.reloadCmd()
	case "n":
		return m, m.openEditor(nil)
	case "enter":
		if sel, ok := m.selected(); ok {
			return m, m.loadMemoCmd(sel.ID)
		}
	case "e":
		if sel, ok := m.selected(); ok {
			return m, m.openEditor(&sel)
		}
	case "d":
		if sel, ok := m.selected(); ok {
			m.current = &sel
			m.returnTo = modeList
			m.mode = modeConfirmDelete
		}
	case "c":
		if sel, ok := m.selected(); ok {
			return m, copyCmd(sel)
		}
	}
	return m, nil
}

func (m *model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.search.SetValue("")
		fallthrough
	case tea.KeyEnter:
		m.search.Blur()
		m.mode = modeList
		m.cursor = 0
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.cursor = 0
	return m, cmd
}

func (m *model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.mode = modeList
		m.current = nil
		return m, nil
	case "e":
		if m.current != nil {
			return m, m.openEditor(m.current)
		}
	case "d":
		if m.current != nil {
			m.returnTo = modeDetail
			m.mode = modeConfirmDelete
		}
	case "c":
		if m.current != nil {
			return m, copyCmd(*m.current)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		cmd := m.endDictation()
		m.closeEditor()
		return m, cmd
	case tea.KeyCtrlS:
		text := m.editor.Value()
		if strings.TrimSpace(text) == "" {
			m.toast = "Nothing to save"
			return m, nil
		}
		cmd := m.endDictation()
		return m, tea.Batch(cmd, m.saveCmd(m.editingID, text))
	case tea.KeyCtrlR:
		return m, m.toggleDictation()
	}

	if m.dictating {
		// The transcript owns the editor while dictating.
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m *model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		target := m.current
		m.mode = modeList
		m.current = nil
		if target == nil {
			return m, nil
		}
		return m, m.deleteCmd(target.ID)
	case "n", "N", "esc":
		m.mode = m.returnTo
		if m.mode == modeList {
			m.current = nil
		}
	}
	return m, nil
}

func (m *model) handleMemoLoaded(msg memoLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.memo == nil {
		if m.state.Error == nil {
			m.toast = fmt.Sprintf("Memo %s not found", msg.id)
		}
		return m, m.reloadCmd()
	}

	m.current = msg.memo
	m.viewport.SetContent(msg.memo.Text)
	m.viewport.GotoTop()
	m.mode = modeDetail
	return m, nil
}

func (m *model) handleSaved(msg savedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.log.Errorf("Save failed: %v", msg.err)
		m.toast = fmt.Sprintf("Save failed: %v", msg.err)
		return m, nil
	}

	m.closeEditor()
	m.toast = "Memo saved"
	for i, mm := range m.visible() {
		if mm.ID == msg.memo.ID {
			m.cursor = i
		}
	}
	return m, nil
}

func (m *model) handleDictation(msg dictationMsg) (tea.Model, tea.Cmd) {
	wasListening := m.dict.IsListening
	m.dict = msg.snap

	if !m.dictating {
		return m, nil
	}
	if m.mode == modeEdit {
		m.editor.SetValue(joinTranscript(m.dictBase, msg.snap.Transcript))
		m.editor.CursorEnd()
	}
	if !msg.snap.IsListening && (wasListening || msg.snap.Error != "") {
		m.dictating = false
	}
	return m, nil
}

// openEditor switches to the editor for mm, or for a new memo when mm is
// nil.
func (m *model) openEditor(mm *memo.Memo) tea.Cmd {
	m.mode = modeEdit
	m.editor.Reset()
	m.editingID = ""
	if mm != nil {
		m.editingID = mm.ID
		m.current = mm
		m.editor.SetValue(mm.Text)
	}
	return m.editor.Focus()
}

func (m *model) closeEditor() {
	m.editor.Blur()
	m.editor.Reset()
	m.editingID = ""
	m.current = nil
	m.mode = modeList
}

func (m *model) toggleDictation() tea.Cmd {
	if m.dictating {
		return m.endDictation()
	}
	if !m.canDictate() {
		m.toast = "Dictation is not available"
		return nil
	}
	m.dictating = true
	m.dictBase = m.editor.Value()
	return m.startDictationCmd()
}

func (m *model) endDictation() tea.Cmd {
	if !m.dictating {
		return nil
	}
	m.dictating = false
	return m.stopDictationCmd()
}

func (m *model) quit() tea.Cmd {
	return tea.Sequence(m.endDictation(), tea.Quit)
}

// joinTranscript appends a dictated transcript to existing editor text.
func joinTranscript(base, transcript string) string {
	transcript = strings.TrimSpace(transcript)
	switch {
	case transcript == "":
		return base
	case base == "" || strings.HasSuffix(base, " ") || strings.HasSuffix(base, "\n"):
		return base + transcript
	default:
		return base + " " + transcript
	}
}
