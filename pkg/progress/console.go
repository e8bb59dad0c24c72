// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

var symbolColor = map[Symbol]string{
	SymbolSuccess: "\x1b[32m", // green
	SymbolFailure: "\x1b[31m", // red
	SymbolSkipped: "\x1b[90m", // gray
	SymbolRunning: "\x1b[36m", // cyan
	SymbolPending: "\x1b[90m", // gray
}

const colorReset = "\x1b[0m"

// ConsoleReporter writes one line per event: status symbol, step name,
// and (for StepOutput) the output line. Color is dropped under
// NO_COLOR or a non-terminal output, leaving the bare symbol.
type ConsoleReporter struct {
	out   io.Writer
	color bool
	mu    sync.Mutex
}

// NewConsoleReporter builds a reporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out, color: supportsColor(out)}
}

func supportsColor(out io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (r *ConsoleReporter) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbol := e.Symbol
	if symbol == 0 {
		symbol = defaultSymbol(e.Kind)
	}

	tag := symbol.String()
	if r.color {
		tag = symbolColor[symbol] + tag + colorReset
	}

	switch e.Kind {
	case StepOutput:
		fmt.Fprintf(r.out, "%s %s: %s\n", tag, e.StepName, e.Line)
	default:
		fmt.Fprintf(r.out, "%s %s\n", tag, e.StepName)
	}
}

func defaultSymbol(k Kind) Symbol {
	switch k {
	case StepStarted:
		return SymbolRunning
	case StepCompleted:
		return SymbolSuccess
	default:
		return SymbolPending
	}
}
