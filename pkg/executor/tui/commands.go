package tui

import (
	"fmt"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/memos/pkg/memo"
)

// Store and dictation calls run inside commands so the event loop never
// blocks on them. Resulting cache changes arrive as stateMsg.

var (
	defaultClipboard = clipboard.WriteAll
	writeClipboard   = defaultClipboard
)

func (m *model) activateCmd() tea.Cmd {
	c, ctx := m.cache, m.ctx
	return func() tea.Msg {
		c.Activate(ctx)
		return stateMsg{state: c.State()}
	}
}

func (m *model) reloadCmd() tea.Cmd {
	c, ctx := m.cache, m.ctx
	return func() tea.Msg {
		c.GetAllMemos(ctx)
		return stateMsg{state: c.State()}
	}
}

func (m *model) loadMemoCmd(id string) tea.Cmd {
	c, ctx := m.cache, m.ctx
	return func() tea.Msg {
		return memoLoadedMsg{id: id, memo: c.GetMemoByID(ctx, id)}
	}
}

func (m *model) saveCmd(id, text string) tea.Cmd {
	c, ctx := m.cache, m.ctx
	return func() tea.Msg {
		if id == "" {
			created, err := c.CreateMemo(ctx, text)
			return savedMsg{memo: created, err: err}
		}
		updated := c.UpdateMemo(ctx, id, text)
		if updated == nil {
			err := c.State().Error
			if err == nil {
				err = fmt.Errorf("memo %s no longer exists", id)
			}
			return savedMsg{err: err}
		}
		return savedMsg{memo: updated}
	}
}

func (m *model) deleteCmd(id string) tea.Cmd {
	c, ctx := m.cache, m.ctx
	return func() tea.Msg {
		return deletedMsg{id: id, ok: c.DeleteMemo(ctx, id)}
	}
}

func copyCmd(mm memo.Memo) tea.Cmd {
	return func() tea.Msg {
		if err := writeClipboard(mm.Text); err != nil {
			return toastMsg{text: fmt.Sprintf("Copy failed: %v", err)}
		}
		return toastMsg{text: "Copied to clipboard"}
	}
}

func (m *model) startDictationCmd() tea.Cmd {
	d := m.dictation
	return func() tea.Msg {
		d.Reset()
		d.Start()
		return nil
	}
}

func (m *model) stopDictationCmd() tea.Cmd {
	d := m.dictation
	return func() tea.Msg {
		d.Stop()
		return nil
	}
}
