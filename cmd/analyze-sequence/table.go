package main

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/aieou/sceneqc/internal/processing"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderSummary(s *processing.Summary, terminal bool) string {
	var b strings.Builder

	overview := newTable(terminal)
	overview.AppendRows([]table.Row{
		{"Sequence", s.SequenceID},
		{"State", s.State},
		{"Backend", s.Backend},
		{"Attempted", s.Attempted},
		{"Succeeded", s.Succeeded},
		{"Failed", s.Failed},
		{"Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()},
	})
	overview.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft},
	})
	b.WriteString(overview.Render())
	b.WriteString("\n")
	b.WriteString(s.Message)

	if len(s.Failures) > 0 {
		failures := newTable(terminal)
		failures.AppendHeader(table.Row{"Frame", "Kind", "Reason"})
		for _, f := range s.Failures {
			failures.AppendRow(table.Row{strconv.Itoa(f.FrameNumber), string(f.Kind), f.Reason})
		}
		failures.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight},
			{Number: 3, WidthMax: 80},
		})
		b.WriteString("\n\n")
		b.WriteString(failures.Render())
	}
	return b.String()
}

func newTable(terminal bool) table.Writer {
	tw := table.NewWriter()
	if terminal {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
	}
	return tw
}
