package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"

	"github.com/zulandar/flowguard/internal/models"
)

// useColor reports whether w is a terminal that accepts ANSI styling.
// NO_COLOR disables it.
func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// newTable returns a table writer that renders to w.
func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if useColor(w) {
		tw.SetStyle(table.StyleColoredBright)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	return tw
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatDate renders a due date as dd/mm/yyyy, or "-" when unset.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006")
}

// truncate shortens s to at most n runes, marking the cut with "…".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// commitmentFlags lists the instability markers for c.
func commitmentFlags(c models.Commitment, now time.Time) string {
	var flags []string
	if c.IsLive() && c.IsOverdue(now) {
		flags = append(flags, "vencido")
	}
	if c.HasImpedimento {
		flags = append(flags, "bloqueado")
	}
	if c.IsRecurrent() {
		flags = append(flags, "reincidente")
	}
	if c.HasOpenHighRisk() {
		flags = append(flags, "risco alto")
	}
	return strings.Join(flags, ", ")
}

// formatProgress renders checklist completion as "2/3 (67%)".
func formatProgress(p models.Progress) string {
	if p.Total == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d (%d%%)", p.Completed, p.Total, p.Percent)
}
