package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dmitrijs2005/chatline/internal/client/chatlist"
	"github.com/dmitrijs2005/chatline/internal/models"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	selfStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	otherStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	metaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

func renderMessage(m models.Message, self, other *models.UserProfile) string {
	name, style := m.SenderID, otherStyle
	switch {
	case self != nil && m.SenderID == self.ID:
		name, style = "you", selfStyle
	case other != nil && m.SenderID == other.ID:
		name = other.Username
	}

	var b strings.Builder
	b.WriteString(metaStyle.Render(m.CreatedAt.Local().Format("15:04")))
	b.WriteString(" ")
	b.WriteString(style.Render(name))
	b.WriteString(": ")
	b.WriteString(m.Text)
	if m.Image != "" {
		b.WriteString(" ")
		b.WriteString(metaStyle.Render("[image " + m.Image + "]"))
	}
	if m.Audio != "" {
		b.WriteString(" ")
		b.WriteString(metaStyle.Render("[voice " + m.Audio + "]"))
	}
	return b.String()
}

func renderEntry(i int, e chatlist.Entry) string {
	name := "(deleted user)"
	if e.Counterpart != nil {
		name = e.Counterpart.Username
	}
	marker := " "
	if !e.IsSeen {
		marker = noticeStyle.Render("•")
	}
	last := e.LastMessage
	if last == "" {
		last = metaStyle.Render("no messages yet")
	}
	when := metaStyle.Render(time.UnixMilli(e.UpdatedAt).Local().Format("Jan 2 15:04"))
	return fmt.Sprintf("%2d %s %s  %s  %s", i+1, marker, otherStyle.Render(name), last, when)
}

func renderProfile(p *models.UserProfile, extra ...string) string {
	lines := []string{titleStyle.Render(p.Username)}
	if p.Email != "" {
		lines = append(lines, p.Email)
	}
	if p.Avatar != "" {
		lines = append(lines, metaStyle.Render("avatar "+p.Avatar))
	}
	lines = append(lines, extra...)
	return boxStyle.Render(strings.Join(lines, "\n"))
}
