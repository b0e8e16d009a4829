package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/wippyai/watlink/linker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// styledOutput reports whether w is a terminal.
func styledOutput(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

func errorStyle(f *os.File) lipgloss.Style {
	if !isTerminal(f) {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
}

func newTable(styled bool, headers ...string) *table.Table {
	t := table.New().Headers(headers...)
	if !styled {
		return t.Border(lipgloss.HiddenBorder()).StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().PaddingRight(2)
		})
	}
	return t.Border(lipgloss.RoundedBorder()).
		BorderStyle(helpStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func sum(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}

// renderSummary renders one row per variant build.
func renderSummary(results []*linker.Result, paths []string, styled bool) string {
	t := newTable(styled, "variant", "artifact", "bytes", "funcs", "imports", "exports", "renames", "rewrites", "host imports", "placeholder")
	for i, res := range results {
		injected := "-"
		if res.Injected != nil {
			injected = res.Injected.String()
		}
		t.Row(
			res.Variant.String(),
			paths[i],
			strconv.Itoa(len(res.Binary)),
			strconv.Itoa(res.Funcs),
			strconv.Itoa(res.Imports),
			strconv.Itoa(res.Exports),
			strconv.Itoa(sum(res.Renames)),
			strconv.Itoa(sum(res.Rewrites)),
			injected,
			fmt.Sprintf("line %d", res.Placeholder),
		)
	}
	if !styled {
		return t.String()
	}
	return titleStyle.Render("watlink") + "\n" + t.String()
}
