package render

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/lin/qichat/internal/domain"
)

// Renderer formats conversations. With pretty off it emits plain
// machine-friendly lines for piping.
type Renderer struct {
	pretty bool
}

// New creates a renderer.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// ConversationList formats a history listing, newest first. Starred ids get
// a marker; a nil set renders every entry unmarked.
func (r *Renderer) ConversationList(chats []*domain.Conversation, starred map[string]bool) string {
	if len(chats) == 0 {
		return "No conversations yet"
	}

	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Conversation History\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}

	for _, c := range chats {
		r.formatListEntry(&sb, c, starred[c.ID])
	}

	return sb.String()
}

func (r *Renderer) formatListEntry(sb *strings.Builder, c *domain.Conversation, starred bool) {
	timeStr := c.UpdatedAt.Format("2006-01-02 15:04")
	title := c.Title
	if title == "" {
		title = "(untitled)"
	}

	if r.pretty {
		star := "  "
		if starred {
			star = color.YellowString("★ ")
		}
		counts := fmt.Sprintf("%d msg", len(c.Messages))
		if len(c.Attachments) > 0 {
			counts += fmt.Sprintf(", %d att", len(c.Attachments))
		}
		fmt.Fprintf(sb, "%s%s %s %s %s\n",
			star,
			color.HiBlackString(timeStr),
			color.YellowString(c.ID),
			Truncate(title, 40),
			color.HiBlackString("("+counts+")"))
	} else {
		mark := ""
		if starred {
			mark = "★"
		}
		fmt.Fprintf(sb, "%s\t%s\t%s\t%d\t%s\n", c.ID, timeStr, title, len(c.Messages), mark)
	}
}

// Conversation formats a full transcript.
func (r *Renderer) Conversation(c *domain.Conversation) string {
	var sb strings.Builder

	title := c.Title
	if title == "" {
		title = "(untitled)"
	}

	if r.pretty {
		sb.WriteString(color.CyanString(title) + "\n")
		fmt.Fprintf(&sb, "%s · created %s\n",
			color.YellowString(c.ID),
			color.HiBlackString(c.CreatedAt.Format("2006-01-02 15:04")))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	} else {
		fmt.Fprintf(&sb, "%s\t%s\n", c.ID, title)
	}

	for _, att := range c.Attachments {
		if r.pretty {
			fmt.Fprintf(&sb, "%s %s (%s)\n", color.MagentaString("⎘"), att.OriginalName, att.HumanSize())
		} else {
			fmt.Fprintf(&sb, "attachment\t%s\t%d\n", att.OriginalName, att.FileSize)
		}
	}

	for _, msg := range c.Messages {
		r.formatMessage(&sb, msg)
	}

	if !c.HasContent() {
		sb.WriteString("(empty conversation)\n")
	}

	return sb.String()
}

func (r *Renderer) formatMessage(sb *strings.Builder, msg domain.Message) {
	timeStr := msg.Timestamp.Format("15:04:05")

	if !r.pretty {
		fmt.Fprintf(sb, "[%s] %s: %s\n", timeStr, msg.Role, msg.Content)
		return
	}

	var label string
	switch msg.Role {
	case domain.RoleUser:
		label = color.GreenString("you")
	case domain.RoleAssistant:
		label = color.BlueString("assistant")
	default:
		label = color.HiBlackString(string(msg.Role))
	}

	fmt.Fprintf(sb, "\n%s %s\n%s\n", label, color.HiBlackString(timeStr), msg.Content)
}

// SearchResults formats matches, same line shape as the listing.
func (r *Renderer) SearchResults(query string, chats []*domain.Conversation, starred map[string]bool) string {
	if len(chats) == 0 {
		return fmt.Sprintf("No conversations matching %q", query)
	}

	var sb strings.Builder
	if r.pretty {
		fmt.Fprintf(&sb, "%s %q\n", color.CyanString("Matches for"), query)
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, c := range chats {
		r.formatListEntry(&sb, c, starred[c.ID])
	}
	return sb.String()
}
