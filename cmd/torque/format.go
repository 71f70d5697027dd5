package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harunnryd/torque/internal/store"
	"github.com/harunnryd/torque/internal/tool"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type tableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func newTableFormatter() *tableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &tableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *tableFormatter) striped(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

func (f *tableFormatter) FormatTools(defs []tool.Definition) string {
	if len(defs) == 0 {
		return "No tools registered"
	}

	t := f.striped("Name", "Description", "Required")
	for _, def := range defs {
		t.Row(def.Name, truncateString(def.Description, 60), strings.Join(requiredParams(def), ", "))
	}
	return t.String()
}

func (f *tableFormatter) FormatSessions(sessions []store.Summary) string {
	if len(sessions) == 0 {
		return "No archived sessions"
	}

	t := f.striped("ID", "Started", "Duration", "Customer", "Vehicle", "Items", "Ended by")
	for _, s := range sessions {
		t.Row(
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.EndedAt.Sub(s.StartedAt).Round(time.Second).String(),
			truncateString(s.Customer, 24),
			truncateString(s.Vehicle, 24),
			fmt.Sprintf("%d", s.Items),
			s.Reason,
		)
	}
	return t.String()
}

// FormatTranscript renders the header fields as a key/value table followed by the
// conversation items.
func (f *tableFormatter) FormatTranscript(tr *store.Transcript) string {
	if tr == nil {
		return "No transcript found"
	}

	header := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})
	header.Row("ID", tr.ID)
	header.Row("Started", tr.StartedAt.Local().Format(time.RFC1123))
	header.Row("Ended", tr.EndedAt.Local().Format(time.RFC1123))
	header.Row("Customer", tr.Customer)
	header.Row("Vehicle", tr.Vehicle)
	header.Row("Ended by", tr.Reason)

	keys := make([]string, 0, len(tr.Memory))
	for k := range tr.Memory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		header.Row("memory."+k, truncateString(tr.Memory[k], 60))
	}

	items := f.striped("Role", "Type", "Text")
	for _, it := range tr.Items {
		text := it.Text
		if it.Name != "" {
			text = it.Name + " " + text
		}
		items.Row(it.Role, it.Type, truncateString(strings.Join(strings.Fields(text), " "), 80))
	}

	return header.String() + "\n" + items.String()
}

func requiredParams(def tool.Definition) []string {
	switch req := def.Parameters["required"].(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
