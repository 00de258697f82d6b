package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/deps"
	"github.com/sausix/scriptycut/internal/preflight"
)

type checkState int

const (
	stateInfo checkState = iota
	stateOK
	stateWarn
	stateFail
)

var checkStates = [...]struct{ label, color string }{
	stateInfo: {"INFO", "\x1b[34m"},
	stateOK:   {"OK", "\x1b[32m"},
	stateWarn: {"WARN", "\x1b[33m"},
	stateFail: {"ERROR", "\x1b[31m"},
}

const ansiReset = "\x1b[0m"

// lowDiskRatio is the free-space share below which the cache disk line warns.
const lowDiskRatio = 0.05

// statusWriter prints the sections of the status command. Lines are colored
// by state only when writing to a terminal.
type statusWriter struct {
	out      io.Writer
	colorize bool
	sections int
}

func newStatusWriter(out io.Writer) *statusWriter {
	return &statusWriter{out: out, colorize: isTerminal(out)}
}

func (w *statusWriter) section(title string) {
	if w.sections > 0 {
		fmt.Fprintln(w.out)
	}
	w.sections++
	header := fmt.Sprintf("== %s ==", cases.Title(language.Und).String(strings.TrimSpace(title)))
	fmt.Fprintln(w.out, w.paint(checkStates[stateInfo].color, header))
	fmt.Fprintln(w.out, w.paint(checkStates[stateInfo].color, strings.Repeat("-", len(header))))
}

func (w *statusWriter) line(label string, state checkState, detail string) {
	text := "[" + checkStates[state].label + "]"
	if detail != "" {
		text += " " + detail
	}
	fmt.Fprintln(w.out, w.paint(checkStates[state].color, fmt.Sprintf("  %-20s %s", label+":", text)))
}

// tool reports a binary. A missing optional binary only warns.
func (w *statusWriter) tool(s deps.Status) {
	switch {
	case s.Available:
		w.line(s.Name, stateOK, s.Path)
	case s.Optional:
		w.line(s.Name, stateWarn, toolDetail(s))
	default:
		w.line(s.Name, stateFail, toolDetail(s))
	}
}

func toolDetail(s deps.Status) string {
	if s.Description == "" {
		return s.Detail
	}
	return fmt.Sprintf("%s; %s", s.Detail, strings.ToLower(s.Description))
}

func (w *statusWriter) check(r preflight.Result) {
	if r.Passed {
		w.line(r.Name, stateOK, r.Detail)
		return
	}
	w.line(r.Name, stateFail, r.Detail)
}

func (w *statusWriter) cache(stats cache.Stats, discardOrphans bool) {
	w.line("Entries", stateInfo, fmt.Sprintf("%d (%s)", stats.Entries, humanBytes(stats.TotalBytes)))
	disk := stateInfo
	if stats.TotalFSBytes > 0 && stats.FreeRatio < lowDiskRatio {
		disk = stateWarn
	}
	w.line("Disk", disk, fmt.Sprintf("%s free (%.1f%%)", humanBytes(int64(stats.FreeBytes)), stats.FreeRatio*100))
	w.line("Discard orphans", stateInfo, yesNo(discardOrphans))
}

func (w *statusWriter) paint(color, text string) string {
	if !w.colorize || color == "" {
		return text
	}
	return color + text + ansiReset
}

func isTerminal(out io.Writer) bool {
	file, ok := out.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
