// SPDX-License-Identifier: AGPL-3.0-or-later

/*
PDK - a local pipeline execution engine.

Copyright (C) 2025  PDK contributors

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.
*/

package logging

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

// consoleFormatter renders a human-oriented line: a colored level tag,
// the correlation ID when present, the message, then any remaining
// fields as key=value pairs. Color is gated on NO_COLOR and terminal
// detection the same way progress reporting is.
type consoleFormatter struct {
	color bool
}

func newConsoleFormatter() *consoleFormatter {
	return &consoleFormatter{color: supportsColor()}
}

func supportsColor() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var levelColor = map[logrus.Level]string{
	logrus.DebugLevel: "\x1b[90m", // gray
	logrus.InfoLevel:  "\x1b[36m", // cyan
	logrus.WarnLevel:  "\x1b[33m", // yellow
	logrus.ErrorLevel: "\x1b[31m", // red
}

const colorReset = "\x1b[0m"

func (f *consoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var buf bytes.Buffer

	levelTag := entry.Level.String()
	if f.color {
		buf.WriteString(levelColor[entry.Level])
		buf.WriteString(levelTag)
		buf.WriteString(colorReset)
	} else {
		buf.WriteString(levelTag)
	}

	buf.WriteByte(' ')
	buf.WriteString(entry.Time.Format("15:04:05"))
	buf.WriteByte(' ')

	if id, ok := entry.Data["correlationId"]; ok {
		fmt.Fprintf(&buf, "[%v] ", id)
	}

	buf.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "correlationId" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Data[k])
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
