package tui

import (
	"fmt"
	"strings"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/internal/render"
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "再见!\n"
	}

	if !m.ready {
		return fmt.Sprintf("\n  %s Loading...", m.spinner.View())
	}

	switch m.view {
	case ViewChat:
		return m.viewChat()
	case ViewSessions:
		return m.viewSessions()
	case ViewHelp:
		return m.viewHelp()
	default:
		return m.viewWelcome()
	}
}

func (m Model) viewWelcome() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("💬 qichat") + "\n\n")
	b.WriteString(infoStyle.Render("  开始输入以创建新对话") + "\n\n")
	b.WriteString("  " + m.input.View() + "\n")

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  "+m.err.Error()) + "\n")
	}

	b.WriteString(helpStyle.Render("  enter: send │ ctrl+s: history │ ctrl+h: help │ ctrl+c: quit"))
	return b.String()
}

func (m Model) viewChat() string {
	var b strings.Builder

	title := m.chat.Title
	if title == "" {
		title = "新对话"
	}
	b.WriteString(titleStyle.Render("💬 "+render.Truncate(title, 48)) + "\n")

	marker := infoStyle.Render("○ draft")
	if !m.chat.Ephemeral {
		marker = activeStyle.Render("● saved")
	}
	status := fmt.Sprintf("%s │ %d messages", marker, len(m.chat.Messages))
	if len(m.chat.Attachments) > 0 {
		status += fmt.Sprintf(" │ %d attachments", len(m.chat.Attachments))
	}
	b.WriteString(infoStyle.Render("  "+status) + "\n")

	b.WriteString(boxStyle.Width(m.width - 4).Render(m.viewport.View()) + "\n")

	if m.waiting {
		b.WriteString(fmt.Sprintf("  %s thinking...\n", m.spinner.View()))
	} else {
		b.WriteString("  " + m.input.View() + "\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("  "+m.err.Error()) + "\n")
	}

	b.WriteString(helpStyle.Render("  enter: send │ ctrl+n: new │ ctrl+s: history │ esc: close │ ctrl+c: quit"))
	return b.String()
}

func (m Model) viewSessions() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📋 History") + "\n\n")

	if len(m.sessions) == 0 {
		b.WriteString(infoStyle.Render("  No conversations yet\n"))
	} else {
		for i, c := range m.sessions {
			cursor := "  "
			style := infoStyle
			if i == m.selectedIdx {
				cursor = "▶ "
				style = activeStyle
			}

			title := c.Title
			if title == "" {
				title = "(untitled)"
			}
			line := fmt.Sprintf("%s%-24s %s (%d msgs)",
				cursor,
				render.Truncate(title, 24),
				c.UpdatedAt.Format("Jan 02 15:04"),
				len(c.Messages),
			)
			b.WriteString(style.Render(line) + "\n")
		}
	}

	b.WriteString(helpStyle.Render("\n  enter: open │ esc: back │ ctrl+j/ctrl+k: navigate"))
	return b.String()
}

func (m Model) viewHelp() string {
	help := `
  💬 qichat - Help

  CHAT
    enter          Send message
    /open <x>      Open a file, URL or text in a chat
    ctrl+n         New conversation
    esc            Close conversation

  HISTORY
    ctrl+s         Open history
    ctrl+j/ctrl+k  Navigate
    enter          Open selected conversation

  LIFECYCLE
    A new conversation is a draft until the first message or
    attachment; closing an untouched draft leaves no trace.

  COMMANDS
    qichat history      List saved conversations
    qichat send <msg>   One-shot message without the shell
`
	return titleStyle.Render("Help") + "\n" + infoStyle.Render(help) + helpStyle.Render("\n  esc: back")
}

func renderTranscript(c *domain.Conversation) string {
	var b strings.Builder

	for _, att := range c.Attachments {
		fmt.Fprintf(&b, "%s %s (%s)\n", infoStyle.Render("⎘"), att.OriginalName, att.HumanSize())
	}

	for _, msg := range c.Messages {
		var label string
		switch msg.Role {
		case domain.RoleUser:
			label = userStyle.Render("you")
		case domain.RoleAssistant:
			label = assistantStyle.Render("assistant")
		default:
			label = infoStyle.Render(string(msg.Role))
		}
		fmt.Fprintf(&b, "%s %s\n%s\n\n", label, infoStyle.Render(msg.Timestamp.Format("15:04:05")), msg.Content)
	}

	if b.Len() == 0 {
		return infoStyle.Render("(empty conversation)")
	}
	return b.String()
}
