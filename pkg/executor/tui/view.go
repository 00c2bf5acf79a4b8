package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/memos/pkg/memo"
)

// View renders the entire TUI interface.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{m.buildHeader(), m.buildTips()}
	if banner := m.buildErrorBanner(); banner != "" {
		sections = append(sections, banner)
	}

	switch m.mode {
	case modeDetail:
		sections = append(sections, m.buildDetail())
	case modeEdit:
		sections = append(sections, m.buildEditor())
	case modeConfirmDelete:
		sections = append(sections, m.buildConfirm())
	default:
		sections = append(sections, m.buildSearchBox(), m.buildList())
	}

	sections = append(sections, m.buildStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *model) buildHeader() string {
	return headerStyle.Render("  memos")
}

// buildTips renders context-sensitive key hints.
func (m *model) buildTips() string {
	var tips string
	switch m.mode {
	case modeSearch:
		tips = "Type to filter • Enter to keep • Esc to clear"
	case modeDetail:
		tips = "e edit • d delete • c copy • ↑/↓ scroll • Esc back"
	case modeEdit:
		tips = "Ctrl+S save • Esc cancel"
		if m.canDictate() {
			tips += " • Ctrl+R dictate"
		}
	case modeConfirmDelete:
		tips = "y confirm • n cancel"
	default:
		tips = "n new • Enter open • e edit • d delete • c copy • / search • s sort • r reload • q quit"
	}
	return tipsStyle.Render("  " + tips)
}

func (m *model) buildErrorBanner() string {
	if m.state.Error == nil {
		return ""
	}
	return errorBannerStyle.Width(max(m.width-2, 10)).Render("Error: " + m.state.Error.Error())
}

func (m *model) buildSearchBox() string {
	return inputBoxStyle.Width(max(m.width-4, 10)).Render(m.search.View())
}

func (m *model) buildList() string {
	memos := m.visible()
	if len(memos) == 0 {
		if m.state.Loading {
			return "  " + m.spinner.View() + " Loading memos..."
		}
		if m.search.Value() != "" {
			return tipsStyle.Render("  No memos match your search.")
		}
		return tipsStyle.Render("  No memos yet. Press n to write one.")
	}

	rows := make([]string, 0, len(memos))
	for i, mm := range memos {
		rows = append(rows, m.renderRow(i, mm))
	}

	// Keep the cursor on screen.
	height := max(m.height-9, 3)
	start := 0
	if m.cursor >= height {
		start = m.cursor - height + 1
	}
	end := min(start+height, len(rows))
	return strings.Join(rows[start:end], "\n")
}

func (m *model) renderRow(i int, mm memo.Memo) string {
	preview := memo.Truncate(strings.Join(strings.Fields(mm.Text), " "), listPreviewLength)
	date := dateStyle.Render(memo.FormatDate(mm.UpdatedAt))
	if i == m.cursor {
		return selectedStyle.Render("▸ "+preview) + "  " + date
	}
	return "  " + itemStyle.Render(preview) + "  " + date
}

func (m *model) buildDetail() string {
	if m.current == nil {
		return ""
	}
	meta := dateStyle.Render(fmt.Sprintf("Created %s • Updated %s",
		memo.FormatDate(m.current.CreatedAt), memo.FormatDate(m.current.UpdatedAt)))
	return lipgloss.JoinVertical(lipgloss.Left,
		"  "+meta,
		detailBoxStyle.Width(max(m.width-4, 10)).Render(m.viewport.View()),
	)
}

func (m *model) buildEditor() string {
	title := "New memo"
	if m.editingID != "" {
		title = "Editing memo"
	}

	var status string
	switch {
	case m.dictating && m.dict.IsListening:
		status = listeningStyle.Render(m.spinner.View() + " Listening...")
	case m.dictating:
		status = tipsStyle.Render("Starting dictation...")
	case m.dictation != nil && !m.dict.Supported:
		status = tipsStyle.Render("Dictation unavailable")
	}
	if m.dict.Error != "" && m.dictation != nil {
		status = strings.TrimSpace(status + " " + errorStyle.Render(m.dict.Error))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		"  "+headerStyle.Render(title)+"  "+status,
		inputBoxStyle.Width(max(m.width-4, 10)).Render(m.editor.View()),
	)
}

func (m *model) buildConfirm() string {
	if m.current == nil {
		return ""
	}
	preview := memo.Truncate(m.current.Text, listPreviewLength)
	return errorStyle.Render(fmt.Sprintf("  Delete %q? (y/n)", preview))
}

func (m *model) buildStatusBar() string {
	left := fmt.Sprintf("%d memos", len(m.state.Memos))
	if q := m.search.Value(); q != "" {
		left = fmt.Sprintf("%d of %d memos", len(m.visible()), len(m.state.Memos))
	}
	left += " • " + m.sort.String()

	var right string
	switch {
	case m.state.Loading:
		right = m.spinner.View() + " Working..."
	case m.toast != "":
		right = toastStyle.Render(m.toast)
	}

	return statusBarStyle.Width(m.width).Render(left + "   " + right)
}
